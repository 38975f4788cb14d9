package tools

import (
	"reflect"

	"github.com/pkg/errors"
)

// ValidateParameters checks a directive's parameters against a tool's
// declared schema. Checks run in a fixed order and the first failure wins:
// required fields present, then runtime type of each present field, then
// enum membership. The returned error names the offending field.
func ValidateParameters(schema *Schema, params map[string]any) error {
	if schema == nil {
		return nil
	}
	for _, name := range schema.Required {
		if _, ok := params[name]; !ok {
			return errors.Errorf("missing required parameter %q", name)
		}
	}
	for name, value := range params {
		prop, ok := schema.Properties[name]
		if !ok {
			continue
		}
		if prop.Type != "" && !typeMatches(prop.Type, value) {
			return errors.Errorf("parameter %q: expected %s, got %s", name, prop.Type, describeType(value))
		}
	}
	for name, value := range params {
		prop, ok := schema.Properties[name]
		if !ok || len(prop.Enum) == 0 {
			continue
		}
		if !enumMember(prop.Enum, value) {
			return errors.Errorf("parameter %q: value %v is not one of the allowed values", name, value)
		}
	}
	return nil
}

// typeMatches checks a decoded JSON value against a declared schema type.
// Arrays are detected via list-ness of the runtime value, not as a generic
// object.
func typeMatches(declared string, value any) bool {
	if value == nil {
		return declared == "null"
	}
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isNumeric(value)
	case "integer":
		f, ok := value.(float64)
		if ok {
			return f == float64(int64(f))
		}
		return isInt(value)
	case "array":
		k := reflect.ValueOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case "object":
		return reflect.ValueOf(value).Kind() == reflect.Map
	default:
		// Unknown declared type: do not reject what we cannot check.
		return true
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func isInt(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

func enumMember(enum []any, value any) bool {
	for _, allowed := range enum {
		if reflect.DeepEqual(allowed, value) {
			return true
		}
		// JSON decoding yields float64; enums loaded from YAML may hold ints.
		if fa, ok := toFloat(allowed); ok {
			if fv, ok := toFloat(value); ok && fa == fv {
				return true
			}
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func describeType(value any) string {
	if value == nil {
		return "null"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64:
		return "number"
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map:
		return "object"
	default:
		return reflect.TypeOf(value).String()
	}
}
