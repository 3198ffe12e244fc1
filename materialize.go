package expconf

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// FromMap materializes a *T from a raw nested mapping. T must be a struct
// type; its exported fields are the schema. For every declared field, the
// mapping must supply a structurally compatible value unless the field is
// nullable or carries a `default` tag. Keys in raw with no corresponding
// field are ignored. raw is never mutated.
//
// FromMap either returns a fully populated instance or an error; it never
// returns a partially constructed one. Absent keys and keys present with an
// explicit null are treated alike.
func FromMap[T any](raw map[string]any) (*T, error) {
	cfg := new(T)
	rv := reflect.ValueOf(cfg).Elem()
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %s", ErrNotStruct, rv.Type())
	}
	if err := materializeStruct(rv, raw); err != nil {
		return nil, err
	}
	return cfg, nil
}

// materializeStruct fills the addressable struct value v from raw, field by
// field, recursing into nested schema-typed fields.
func materializeStruct(v reflect.Value, raw map[string]any) error {
	info := describe(v.Type())
	resolver, _ := v.Addr().Interface().(SubconfigResolver)

	for _, f := range info.fields {
		fv := v.Field(f.index)
		rawVal, present := raw[f.key]

		if !present {
			switch {
			case f.hasDefault:
				if err := applyDefault(info.name, f, fv); err != nil {
					return err
				}
			case f.nillable:
				// stays nil
			default:
				return &MissingFieldError{Schema: info.name, Field: f.key}
			}
			continue
		}

		if rawVal == nil {
			// Explicit null is conflated with absence, except that a nullable
			// field with a default honors the null rather than the default.
			switch {
			case f.nillable:
				// stays nil
			case f.hasDefault:
				if err := applyDefault(info.name, f, fv); err != nil {
					return err
				}
			default:
				return &MissingFieldError{Schema: info.name, Field: f.key}
			}
			continue
		}

		if err := assignField(info.name, f, fv, rawVal, resolver); err != nil {
			return err
		}
	}
	return nil
}

// assignField routes one raw value into its field. A nested mapping aimed at
// a field whose type introspection cannot resolve to a schema is offered to
// the SubconfigResolver hook first; everything else goes straight to the
// structural converter.
func assignField(schema string, f fieldInfo, fv reflect.Value, rawVal any, resolver SubconfigResolver) error {
	if sub, ok := rawVal.(map[string]any); ok {
		if _, isSchema := schemaElem(f.typ); !isSchema && resolver != nil {
			res, err := resolver.ResolveSubconfig(f.key, sub)
			if err != nil {
				return fmt.Errorf("%s: field %q: %w", schema, f.key, err)
			}
			if res != nil {
				rawVal = res
			}
		}
	}
	return setValue(schema, f.key, fv, rawVal)
}

// setValue assigns val to the addressable value fv, converting only where the
// shapes already agree: nested mappings into schema structs, sequences into
// typed slices element-wise, numeric widening, durations from their string
// form. Anything else is a type mismatch; no scalar coercion is performed.
func setValue(schema, key string, fv reflect.Value, val any) error {
	t := fv.Type()
	rv := reflect.ValueOf(val)

	// Exact and interface targets, including values that are already
	// materialized instances of the field's type.
	if rv.Type().AssignableTo(t) {
		fv.Set(rv)
		return nil
	}

	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		if err := setValue(schema, key, p.Elem(), val); err != nil {
			return err
		}
		fv.Set(p)
		return nil
	}

	if t == durationType {
		switch d := val.(type) {
		case string:
			parsed, err := time.ParseDuration(strings.TrimSpace(d))
			if err != nil {
				return &TypeMismatchError{Schema: schema, Field: key, Want: t.String(), Got: fmt.Sprintf("%q", d)}
			}
			fv.SetInt(int64(parsed))
			return nil
		case int:
			fv.SetInt(int64(d))
			return nil
		case int64:
			fv.SetInt(d)
			return nil
		}
		return mismatch(schema, key, t, val)
	}

	switch t.Kind() {
	case reflect.Bool:
		if b, ok := val.(bool); ok {
			fv.SetBool(b)
			return nil
		}

	case reflect.String:
		if s, ok := val.(string); ok {
			fv.SetString(s)
			return nil
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := intValue(val); ok {
			if fv.OverflowInt(n) {
				return mismatch(schema, key, t, val)
			}
			fv.SetInt(n)
			return nil
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, ok := intValue(val); ok && n >= 0 {
			if fv.OverflowUint(uint64(n)) {
				return mismatch(schema, key, t, val)
			}
			fv.SetUint(uint64(n))
			return nil
		}

	case reflect.Float32, reflect.Float64:
		switch x := val.(type) {
		case float64:
			fv.SetFloat(x)
			return nil
		case float32:
			fv.SetFloat(float64(x))
			return nil
		case int:
			fv.SetFloat(float64(x))
			return nil
		case int64:
			fv.SetFloat(float64(x))
			return nil
		}

	case reflect.Struct:
		if sub, ok := val.(map[string]any); ok && t != timeType {
			return materializeStruct(fv, sub)
		}

	case reflect.Slice:
		if seq, ok := val.([]any); ok {
			out := reflect.MakeSlice(t, len(seq), len(seq))
			for i, item := range seq {
				if item == nil {
					if !isNillable(t.Elem()) && t.Elem().Kind() != reflect.Interface {
						return mismatch(schema, key, t, val)
					}
					continue
				}
				if err := setValue(schema, key, out.Index(i), item); err != nil {
					return err
				}
			}
			fv.Set(out)
			return nil
		}

	case reflect.Map:
		if m, ok := val.(map[string]any); ok && t.Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(t, len(m))
			for k, item := range m {
				ev := reflect.New(t.Elem()).Elem()
				if item != nil {
					if err := setValue(schema, key, ev, item); err != nil {
						return err
					}
				}
				out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
			}
			fv.Set(out)
			return nil
		}
	}

	return mismatch(schema, key, t, val)
}

// intValue extracts an integer from the dynamic types a YAML/JSON parser
// produces for whole numbers. Floats are not accepted: that would be
// coercion, not a structural match.
func intValue(val any) (int64, bool) {
	switch n := val.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func mismatch(schema, key string, want reflect.Type, got any) error {
	return &TypeMismatchError{Schema: schema, Field: key, Want: want.String(), Got: fmt.Sprintf("%T", got)}
}
