// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"strings"
)

// sensitiveKeywords contains keywords that indicate sensitive fields.
// Any field name containing these keywords (case-insensitive) will be masked.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"api_key",
	"credential",
}

// MaskSecrets returns a generic map/slice tree of data with sensitive fields replaced by "***".
// Struct fields are keyed by their yaml tag when present.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}
	return maskValue(reflect.ValueOf(data))
}

func maskValue(val reflect.Value) any {
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		result := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if isSensitiveKey(key) && !isContainer(iter.Value()) {
				result[key] = maskString(iter.Value())
				continue
			}
			result[key] = maskValue(iter.Value())
		}
		return result

	case reflect.Slice, reflect.Array:
		result := make([]any, val.Len())
		for i := range val.Len() {
			result[i] = maskValue(val.Index(i))
		}
		return result

	case reflect.Struct:
		if !hasExportedFields(val.Type()) {
			return val.Interface()
		}
		result := make(map[string]any)
		typ := val.Type()
		for i := range val.NumField() {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := fieldName(field)
			if name == "-" {
				continue
			}
			if (isSensitiveKey(name) || isSensitiveKey(field.Name)) && !isContainer(val.Field(i)) {
				result[name] = maskString(val.Field(i))
				continue
			}
			result[name] = maskValue(val.Field(i))
		}
		return result

	default:
		return val.Interface()
	}
}

// isContainer reports whether v holds a struct, map or slice. Sensitive names only
// mask leaves; containers such as the credentials section are walked.
func isContainer(v reflect.Value) bool {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return true
	default:
		return false
	}
}

// maskString hides non-empty strings so an unset secret still shows as "".
func maskString(v reflect.Value) any {
	if v.Kind() == reflect.String && v.Len() == 0 {
		return ""
	}
	return "***"
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

func hasExportedFields(t reflect.Type) bool {
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
