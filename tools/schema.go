package tools

// Schema helpers for building JSON Schema definitions.

// ObjectSchema creates an object schema with the given properties.
func ObjectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty creates a string property with optional description.
func StringProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

// WithThought adds a thought parameter to an existing schema.
// If requireThought is true, "thought" is added to the required array.
func WithThought(schema map[string]interface{}, requireThought bool) map[string]interface{} {
	result := make(map[string]interface{}, len(schema))
	for k, v := range schema {
		result[k] = v
	}

	// Copy properties so the caller's map is left alone
	props := make(map[string]interface{})
	if existing, ok := result["properties"].(map[string]interface{}); ok {
		for k, v := range existing {
			props[k] = v
		}
	}
	props["thought"] = StringProperty(
		"Why you are reading or writing repository memory and what you expect it to contain.",
	)
	result["properties"] = props

	if requireThought {
		required, _ := result["required"].([]string)
		result["required"] = append(append([]string(nil), required...), "thought")
	}

	return result
}

// BuildSchemaWithThought creates an ObjectSchema and adds thought support in one call.
func BuildSchemaWithThought(properties map[string]interface{}, requireThought bool, required ...string) map[string]interface{} {
	return WithThought(ObjectSchema(properties, required...), requireThought)
}
