package llm

// ChatCompletionSchema describes the parts of a chat-completions response we rely on.
// Content may be a string or a list of typed parts.
func ChatCompletionSchema() map[string]any {
	part := map[string]any{
		"type":     "object",
		"required": []string{"type"},
		"properties": map[string]any{
			"type": map[string]any{"type": "string"},
			"text": map[string]any{"type": "string"},
		},
	}
	message := map[string]any{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]any{
			"role": map[string]any{"type": "string"},
			"content": map[string]any{
				"oneOf": []any{
					map[string]any{"type": "string"},
					map[string]any{"type": "array", "items": part},
				},
			},
		},
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"choices"},
		"properties": map[string]any{
			"id":    map[string]any{"type": "string"},
			"model": map[string]any{"type": "string"},
			"choices": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type":     "object",
					"required": []string{"message"},
					"properties": map[string]any{
						"message": message,
					},
				},
			},
			"usage": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt_tokens":     map[string]any{"type": "integer"},
					"completion_tokens": map[string]any{"type": "integer"},
				},
			},
		},
	}
}
