package ai

// Usage reports token counts for one completion call, when the provider
// supplies them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the normalized result of one LLM call.
type Completion struct {
	Content string
	Usage   *Usage
}

// UsageFromInfo extracts token counts from a provider's generation info
// map. Providers disagree on key names and numeric types; unknown shapes
// yield nil.
func UsageFromInfo(info map[string]any) *Usage {
	if info == nil {
		return nil
	}
	prompt, okPrompt := intValue(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	completion, okCompletion := intValue(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	if !okPrompt && !okCompletion {
		return nil
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion}
}

func intValue(info map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}
