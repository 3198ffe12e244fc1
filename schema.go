package expconf

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	keyTagName     = "yaml"
	defaultTagName = "default"
)

// SubconfigResolver is the per-schema customization hook for fields whose
// declared type alone cannot identify a nested schema (a field typed any or
// map[string]any that should hold a particular config variant). It is
// consulted only after generic type introspection has failed to find one.
//
// Returning the raw mapping unchanged declines: the mapping is then assigned
// to the field as-is, the pass-through behavior schemas get when they do not
// implement the interface at all. Any other return value is assigned to the
// field after a structural compatibility check. The hook must be a pure
// function of its arguments.
type SubconfigResolver interface {
	ResolveSubconfig(name string, raw map[string]any) (any, error)
}

// fieldInfo is the per-field entry of a schema description table.
type fieldInfo struct {
	key        string // raw-mapping key
	index      int    // struct field index
	typ        reflect.Type
	nillable   bool   // kind can hold nil: pointer, interface, map, slice
	defaultTag string // parsed `default` tag, valid when hasDefault
	hasDefault bool
}

// schemaInfo is the description table of one schema type, built once and
// cached for the lifetime of the process.
type schemaInfo struct {
	name   string // type name, used in diagnostics
	fields []fieldInfo
}

// schemaCache maps reflect.Type to *schemaInfo. Populated on first use of a
// schema type, read-only afterwards; safe for unsynchronized concurrent reads.
var schemaCache sync.Map

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

func describe(t reflect.Type) *schemaInfo {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*schemaInfo)
	}

	info := &schemaInfo{name: t.Name()}
	if info.name == "" {
		info.name = t.String()
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		key := fieldKey(sf)
		if key == "" {
			continue
		}
		dflt, hasDflt := sf.Tag.Lookup(defaultTagName)
		info.fields = append(info.fields, fieldInfo{
			key:        key,
			index:      i,
			typ:        sf.Type,
			nillable:   isNillable(sf.Type),
			defaultTag: dflt,
			hasDefault: hasDflt,
		})
	}

	actual, _ := schemaCache.LoadOrStore(t, info)
	return actual.(*schemaInfo)
}

// fieldKey resolves the raw-mapping key for a struct field: the yaml tag name
// when present, otherwise the field name in snake_case. Returns "" for fields
// excluded with `yaml:"-"`.
func fieldKey(sf reflect.StructField) string {
	tag := sf.Tag.Get(keyTagName)
	if tag == "-" {
		return ""
	}
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}
	if tag != "" {
		return tag
	}
	return toSnake(sf.Name)
}

func isNillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// schemaElem reports whether t denotes a nested schema, unwrapping one level
// of pointer. time.Time is a scalar on the wire, not a schema.
func schemaElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Struct && t != timeType {
		return t, true
	}
	return nil, false
}

// applyDefault sets a field to the value carried by its `default` tag.
// Pointer fields are allocated first, so a nullable field with a default
// materializes as a non-nil pointer to the default value.
func applyDefault(schema string, f fieldInfo, fv reflect.Value) error {
	tag := f.defaultTag
	t := fv.Type()
	if t.Kind() == reflect.Pointer {
		if fv.IsNil() {
			fv.Set(reflect.New(t.Elem()))
		}
		fv = fv.Elem()
		t = t.Elem()
	}

	if t == durationType {
		d, err := time.ParseDuration(strings.TrimSpace(tag))
		if err != nil {
			return fmt.Errorf("%s: field %q: bad default %q: %w", schema, f.key, tag, err)
		}
		fv.SetInt(int64(d))
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		fv.SetString(tag)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(tag))
		if err != nil {
			return fmt.Errorf("%s: field %q: bad default %q: %w", schema, f.key, tag, err)
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(tag), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: field %q: bad default %q: %w", schema, f.key, tag, err)
		}
		fv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(strings.TrimSpace(tag), 10, 64)
		if err != nil {
			return fmt.Errorf("%s: field %q: bad default %q: %w", schema, f.key, tag, err)
		}
		fv.SetUint(n)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(strings.TrimSpace(tag), 64)
		if err != nil {
			return fmt.Errorf("%s: field %q: bad default %q: %w", schema, f.key, tag, err)
		}
		fv.SetFloat(x)
	default:
		return fmt.Errorf("%s: field %q: default tag unsupported for %s", schema, f.key, t)
	}
	return nil
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && isBoundary(rune(s[i-1]), r) {
			b.WriteByte('_')
		}
		b.WriteRune(toLower(r))
	}
	return b.String()
}

func isBoundary(prev, curr rune) bool {
	// Split words only on lower→upper case transitions (e.g., BatchSize → batch_size).
	// Do NOT split between letters and digits so that Epsilon2Decay → epsilon2decay.
	return (prev >= 'a' && prev <= 'z') && (curr >= 'A' && curr <= 'Z')
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r - 'A' + 'a'
	}
	return r
}
