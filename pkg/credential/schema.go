package credential

// validateClaims checks claims against a schema: every required property
// must be present, and every present property's runtime type must match the
// declared type. Returns a SchemaValidationError naming the first offending
// property.
func validateClaims(schema *Schema, claims map[string]any) error {
	for name, prop := range schema.Properties {
		value, present := claims[name]
		if !present {
			if prop.Required {
				return &SchemaValidationError{Property: name, Reason: "is required but missing"}
			}
			continue
		}
		if !typeMatches(prop.Type, value) {
			return &SchemaValidationError{
				Property: name,
				Reason:   "has wrong type, expected " + prop.Type,
			}
		}
	}
	return nil
}

// typeMatches reports whether value's runtime type satisfies the declared
// schema type. JSON-decoded claims carry float64 for all numbers, but typed
// Go callers pass native ints, so numeric kinds are matched broadly.
func typeMatches(declared string, value any) bool {
	if value == nil {
		return false
	}
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []string, []float64, []int:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		// Unknown declared types never match; schema authors get a hard
		// failure instead of silently-accepted claims.
		return false
	}
}
