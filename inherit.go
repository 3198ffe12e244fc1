package expconf

// Inherit derives a new *T from an existing instance: the parent is
// dematerialized, the overrides are applied key by key (nested mappings and
// already-materialized instances are both accepted as override values), and
// the result is materialized again. The parent is not modified.
//
// Override application is shallow: an override for a nested field replaces
// that field's mapping wholesale.
func Inherit[T any](parent *T, overrides map[string]any) (*T, error) {
	base, err := ToMap(parent)
	if err != nil {
		return nil, err
	}
	for k, v := range overrides {
		base[k] = v
	}
	return FromMap[T](base)
}
