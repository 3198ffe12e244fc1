package expconf

import (
	"fmt"
	"reflect"
	"time"
)

// ToMap dematerializes a schema instance (a struct or pointer to struct) into
// a raw nested mapping: nested instances become nested mappings, nil nullable
// fields become explicit nil entries rather than being omitted, and durations
// are rendered in their string form. The result contains only values a YAML
// or JSON encoder can render directly, and feeding it back through FromMap
// reproduces an equivalent instance. The instance is not modified.
func ToMap(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w, got nil %T", ErrNotStruct, v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %T", ErrNotStruct, v)
	}
	return dematerializeStruct(rv)
}

func dematerializeStruct(v reflect.Value) (map[string]any, error) {
	info := describe(v.Type())
	out := make(map[string]any, len(info.fields))
	for _, f := range info.fields {
		val, err := dematerializeValue(info.name, f.key, v.Field(f.index))
		if err != nil {
			return nil, err
		}
		out[f.key] = val
	}
	return out, nil
}

func dematerializeValue(schema, key string, fv reflect.Value) (any, error) {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if fv.IsNil() {
			return nil, nil
		}
		return dematerializeValue(schema, key, fv.Elem())
	}

	t := fv.Type()
	if t == durationType {
		return fv.Interface().(time.Duration).String(), nil
	}

	switch fv.Kind() {
	case reflect.Struct:
		if t == timeType {
			return fv.Interface(), nil
		}
		return dematerializeStruct(fv)

	case reflect.Slice:
		if fv.IsNil() {
			return nil, nil
		}
		out := make([]any, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			item, err := dematerializeValue(schema, key, fv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil

	case reflect.Array:
		out := make([]any, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			item, err := dematerializeValue(schema, key, fv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil

	case reflect.Map:
		if fv.IsNil() {
			return nil, nil
		}
		if fv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: %s: field %q has non-string map keys (%s)", ErrFormat, schema, key, t)
		}
		out := make(map[string]any, fv.Len())
		iter := fv.MapRange()
		for iter.Next() {
			item, err := dematerializeValue(schema, key, iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = item
		}
		return out, nil

	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return nil, fmt.Errorf("%w: %s: field %q holds unrepresentable kind %s", ErrFormat, schema, key, fv.Kind())
	}

	return fv.Interface(), nil
}
