// Package output produces byte-deterministic JSON for the exported
// documents: stable key ordering, floats rounded to six decimals, empty
// fields omitted.
package output

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
)

// DeterministicEncode encodes v as compact JSON with sorted keys and
// normalized floats. Identical values always produce identical bytes.
func DeterministicEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalizeValue(v)); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// DeterministicEncodeIndented is DeterministicEncode with indentation.
func DeterministicEncodeIndented(v interface{}, indent string) ([]byte, error) {
	return json.MarshalIndent(normalizeValue(v), "", indent)
}

// normalizeValue recursively rewrites v into maps, slices, and rounded
// scalars. encoding/json sorts map keys, which gives the stable ordering.
func normalizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		return normalizeMap(val)
	case reflect.Slice, reflect.Array:
		return normalizeSlice(val)
	case reflect.Struct:
		return normalizeStruct(val)
	case reflect.Float32, reflect.Float64:
		return RoundFloat(val.Float())
	case reflect.Interface:
		if val.IsNil() {
			return nil
		}
		return normalizeValue(val.Interface())
	default:
		return v
	}
}

func normalizeMap(val reflect.Value) map[string]interface{} {
	if val.IsNil() {
		return nil
	}
	result := make(map[string]interface{})
	iter := val.MapRange()
	for iter.Next() {
		if norm := normalizeValue(iter.Value().Interface()); norm != nil {
			result[iter.Key().String()] = norm
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func normalizeSlice(val reflect.Value) interface{} {
	if val.Kind() == reflect.Slice && val.IsNil() {
		return nil
	}
	if val.Len() == 0 {
		return nil
	}
	result := make([]interface{}, val.Len())
	for i := range result {
		result[i] = normalizeValue(val.Index(i).Interface())
	}
	return result
}

func normalizeStruct(val reflect.Value) map[string]interface{} {
	result := make(map[string]interface{})
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, omitEmpty := parseJSONTag(tag)
		if name == "" {
			name = field.Name
		}
		norm := normalizeValue(val.Field(i).Interface())
		if omitEmpty && isZeroValue(norm) {
			continue
		}
		if norm != nil {
			result[name] = norm
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func parseJSONTag(tag string) (name string, omitEmpty bool) {
	if tag == "" {
		return "", false
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return parts[0], omitEmpty
}

func isZeroValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case int:
		return val == 0
	case int64:
		return val == 0
	case float64:
		return val == 0
	case string:
		return val == ""
	case []interface{}:
		return len(val) == 0
	case map[string]interface{}:
		return len(val) == 0
	default:
		return false
	}
}
