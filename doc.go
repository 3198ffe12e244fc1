// Package expconf materializes typed configuration objects from nested raw
// mappings and serializes them back, recursively.
//
// A schema is an ordinary Go struct. FromMap walks the struct's fields,
// materializing nested schema-typed fields from nested mappings, applying
// `default` tag values to absent scalars, and reporting required fields that
// the mapping does not supply. ToMap is the exact inverse; the mapping it
// produces can be handed to any YAML or JSON encoder without further
// transformation, and re-materializing it reproduces an equivalent object.
//
//	type Model struct {
//	    NumLayer int `yaml:"num_layer"`
//	}
//
//	type Experiment struct {
//	    Model     Model `yaml:"model"`
//	    BatchSize int   `yaml:"batch_size"`
//	}
//
//	exp, err := expconf.FromMap[Experiment](map[string]any{
//	    "model":      map[string]any{"num_layer": 3},
//	    "batch_size": 32,
//	})
//
// Fields whose declared type cannot identify a nested schema on its own
// (for example a field typed `any` that may hold one of several schema
// variants) are routed through the SubconfigResolver hook, which a schema
// type implements to special-case construction of a subset of its fields.
//
// FromYAML/ToYAML are thin adapters over the same two operations: YAML/JSON
// text is parsed into a raw mapping (or rendered from one) by extension;
// raw mappings are the only shape that crosses the text boundary.
//
// For managed lifecycle (user config directory persistence, factory
// defaults, optional github.com/ygrebnov/model integration) see Loader.
package expconf
