package openrouter

// Message is a chat message in the completions API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the subset of a chat completions response the clinic reads.
type ChatResponse struct {
	Choices []Choice   `json:"choices"`
	Error   *APIError  `json:"error,omitempty"`
	Usage   *UsageInfo `json:"usage,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// APIError is reported in the body when an upstream provider fails.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// UsageInfo reports token counts.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Model is an entry of the models endpoint.
type Model struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	ContextLength int      `json:"context_length,omitempty"`
	Pricing       *Pricing `json:"pricing"`
}

// Pricing is per-token pricing, as decimal strings.
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

// ModelsResponse is the models endpoint response.
type ModelsResponse struct {
	Data []Model `json:"data"`
}
