// Package openaicompat is a clinic generation backend for any server that
// speaks the OpenAI chat completions API: OpenAI itself, llama.cpp, vLLM or
// text-generation-webui's OpenAI extension.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lorenzotomasdiez/chatbot-clinic/internal/clinic"
)

// ErrEmptyChoices is returned when the server answers without choices.
var ErrEmptyChoices = errors.New("openaicompat: empty choices")

// Settings configure a Backend.
type Settings struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// Backend implements clinic.Backend using the official openai-go SDK.
type Backend struct {
	client openai.Client
}

// New builds a backend. An API key is required by the SDK even for local
// servers that ignore it, so a placeholder is used when none is given.
func New(s Settings, extra ...option.RequestOption) *Backend {
	key := s.APIKey
	if key == "" {
		key = "none"
	}
	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(s.MaxRetries)}
	if s.BaseURL != "" {
		base := s.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, extra...)
	return &Backend{client: openai.NewClient(opts...)}
}

// Generate implements clinic.Backend.
func (b *Backend) Generate(ctx context.Context, req clinic.Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}
	extra := applyParameters(&params, req.Parameters)

	resp, err := b.client.Chat.Completions.New(ctx, params, extra...)
	if err != nil {
		return "", fmt.Errorf("openaicompat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(in []clinic.Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case clinic.RoleAssistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

// applyParameters sets the sampling parameters the SDK models as typed
// fields and returns request options carrying the rest as raw JSON fields,
// which is how servers like llama.cpp accept top_k or repetition_penalty.
func applyParameters(p *openai.ChatCompletionNewParams, params map[string]any) []option.RequestOption {
	var extra []option.RequestOption
	for key, v := range params {
		f, isNum := toFloat(v)
		switch {
		case key == "temperature" && isNum:
			p.Temperature = openai.Float(f)
		case key == "top_p" && isNum:
			p.TopP = openai.Float(f)
		case key == "presence_penalty" && isNum:
			p.PresencePenalty = openai.Float(f)
		case key == "frequency_penalty" && isNum:
			p.FrequencyPenalty = openai.Float(f)
		case (key == "max_tokens" || key == "max_new_tokens") && isNum:
			p.MaxTokens = openai.Int(int64(f))
		case key == "seed" && isNum:
			p.Seed = openai.Int(int64(f))
		case key == "model" || key == "messages":
			// owned by the request itself
		default:
			extra = append(extra, option.WithJSONSet(key, v))
		}
	}
	return extra
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
