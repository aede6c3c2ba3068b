package ir

import "testing"

func TestCleanJsonSchemaForAntigravity_EmptyObjectGetsReasonPlaceholder(t *testing.T) {
	schema := map[string]any{
		"type": "object",
	}

	result := CleanJsonSchemaForAntigravity(schema)

	props, ok := result["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties to be injected, got %v", result["properties"])
	}
	reason, ok := props["reason"].(map[string]any)
	if !ok {
		t.Fatalf("expected reason placeholder, got %v", props["reason"])
	}
	if reason["description"] != placeholderReasonDescription {
		t.Errorf("unexpected placeholder description: %v", reason["description"])
	}
	req, _ := result["required"].([]any)
	if len(req) != 1 || req[0] != "reason" {
		t.Errorf("required = %v, want [reason]", req)
	}
}

func TestCleanJsonSchemaForAntigravity_RootNeverGetsUnderscorePlaceholder(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}

	result := CleanJsonSchemaForAntigravity(schema)

	props := result["properties"].(map[string]any)
	if _, has := props["_"]; has {
		t.Error("schema root must never receive the underscore placeholder")
	}
	if _, has := result["required"]; has {
		t.Error("schema root with no explicit required should not gain one")
	}
}

func TestCleanJsonSchemaForAntigravity_NestedObjectGetsUnderscorePlaceholder(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"config": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
		},
	}

	result := CleanJsonSchemaForAntigravity(schema)

	props := result["properties"].(map[string]any)
	config := props["config"].(map[string]any)
	configProps := config["properties"].(map[string]any)
	if _, has := configProps["_"]; !has {
		t.Error("nested object with properties but no required should gain the underscore placeholder")
	}
	req, _ := config["required"].([]any)
	if len(req) != 1 || req[0] != "_" {
		t.Errorf("nested required = %v, want [_]", req)
	}
}

func TestCleanJsonSchemaForAntigravity_RenamesParametersJsonSchemaUnaffected(t *testing.T) {
	// CleanJsonSchemaForAntigravity only sanitizes the schema tree; the
	// parametersJsonSchema -> parameters rename is a request-translator
	// concern (C4), not the sanitizer's. This test documents that boundary.
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page": map[string]any{
				"type":             "integer",
				"exclusiveMinimum": 0,
			},
		},
	}

	result := CleanJsonSchemaForAntigravity(schema)
	props := result["properties"].(map[string]any)
	page := props["page"].(map[string]any)
	if _, has := page["exclusiveMinimum"]; has {
		t.Error("exclusiveMinimum should have been hoisted into description")
	}
}
