// Package chatapi models the OpenAI chat-completions 2025-06-16 wire shape
// that flows through a Transaction's openai_request / openai_response
// variant. It is deliberately OpenAI-only: this proxy speaks one upstream
// dialect, so the provider-specific fields a multi-vendor gateway needs
// (native Google tools, Anthropic cache control) have no home here.
package chatapi

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/samber/lo"
)

// Request is the chat-completions request body.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	Logprobs            *bool           `json:"logprobs,omitempty"`
	TopLogprobs         *int64          `json:"top_logprobs,omitempty"`
	MaxCompletionTokens *int64          `json:"max_completion_tokens,omitempty"`
	MaxTokens           *int64          `json:"max_tokens,omitempty"`
	Seed                *int64          `json:"seed,omitempty"`
	Store               *bool           `json:"store,omitempty"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	User                *string         `json:"user,omitempty"`
	ServiceTier         *string         `json:"service_tier,omitempty"`
	Verbosity           *string         `json:"verbosity,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	LogitBias           map[string]int  `json:"logit_bias,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	Modalities          []string        `json:"modalities,omitempty"`
	Stop                *Stop           `json:"stop,omitempty"`
	Stream              *bool           `json:"stream,omitempty"`
	StreamOptions       *StreamOptions  `json:"stream_options,omitempty"`
	ParallelToolCalls   *bool           `json:"parallel_tool_calls,omitempty"`
	Tools               []Tool          `json:"tools,omitempty"`
	ToolChoice          *ToolChoice     `json:"tool_choice,omitempty"`
	ResponseFormat      *ResponseFormat `json:"response_format,omitempty"`
}

// IsStreaming reports the request's stream flag, defaulting to false.
func (r *Request) IsStreaming() bool {
	return r != nil && r.Stream != nil && *r.Stream
}

func (r *Request) IsImageGenerationRequest() bool {
	return r != nil && len(r.Modalities) > 0 && slices.Contains(r.Modalities, "image")
}

// ClearHelpFields drops any content this proxy does not forward upstream,
// mirroring the teacher's per-transformer hygiene pass before sending a
// request on.
func (r *Request) ClearHelpFields() {
	if r == nil {
		return
	}

	r.Tools = lo.Filter(r.Tools, func(t Tool, _ int) bool { return t.Type == "function" })
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Stop is either a single string or a list of strings on the wire.
type Stop struct {
	Single   *string
	Multiple []string
}

func (s Stop) MarshalJSON() ([]byte, error) {
	if s.Single != nil {
		return json.Marshal(s.Single)
	}

	if len(s.Multiple) > 0 {
		return json.Marshal(s.Multiple)
	}

	return []byte("null"), nil
}

func (s *Stop) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Single = &str
		return nil
	}

	var strs []string
	if err := json.Unmarshal(data, &strs); err == nil {
		s.Multiple = strs
		return nil
	}

	return errors.New("chatapi: invalid stop value")
}

// Message is a single chat message, request or response side.
type Message struct {
	Role       string         `json:"role,omitempty"`
	Content    MessageContent `json:"content,omitzero"`
	Name       *string        `json:"name,omitempty"`
	Refusal    string         `json:"refusal,omitempty"`
	ToolCallID *string        `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
}

// MessageContent is either plain text or a list of content parts on the
// wire; IncrementIntegers and LeakedApiKeyDetection both need to read and,
// for the former, rewrite the text form.
type MessageContent struct {
	Text  *string
	Parts []ContentPart
}

// Text returns the message's flattened text: the scalar form directly, or
// the concatenation of every text part for the multi-part form. Used by
// LeakedApiKeyDetection and IncrementIntegers to scan/rewrite content
// without caring which wire shape produced it.
func (c MessageContent) FlatText() string {
	if c.Text != nil {
		return *c.Text
	}

	var out string

	for _, p := range c.Parts {
		if p.Type == "text" && p.Text != nil {
			out += *p.Text
		}
	}

	return out
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}

	return json.Marshal(c.Text)
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		c.Text = &str
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		return nil
	}

	return errors.New("chatapi: invalid message content")
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     *string   `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string  `json:"url"`
	Detail *string `json:"detail,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ToolChoice is "auto" | "none" | "required" | {"type":"function","function":{"name":...}} on the wire.
type ToolChoice struct {
	Mode     string
	Function *Function
}

func (t ToolChoice) MarshalJSON() ([]byte, error) {
	if t.Function != nil {
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": t.Function.Name},
		})
	}

	return json.Marshal(t.Mode)
}

func (t *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		t.Mode = mode
		return nil
	}

	var obj struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	t.Mode = obj.Type
	t.Function = &Function{Name: obj.Function.Name}

	return nil
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function ToolCallFunc `json:"function"`
}

type ToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Response is the chat-completions response body, reused for both the
// buffered (object="chat.completion") and per-chunk streaming
// (object="chat.completion.chunk") shape, matching OpenAI's own wire
// convention.
type Response struct {
	ID                string  `json:"id"`
	Object            string  `json:"object"`
	Created           int64   `json:"created"`
	Model             string  `json:"model"`
	Choices           []Choice `json:"choices"`
	Usage             *Usage  `json:"usage,omitempty"`
	SystemFingerprint string  `json:"system_fingerprint,omitempty"`
	ServiceTier       string  `json:"service_tier,omitempty"`
	Error             *ResponseError `json:"error,omitempty"`
}

type Choice struct {
	Index        int              `json:"index"`
	Message      *Message         `json:"message,omitempty"`
	Delta        *Message         `json:"delta,omitempty"`
	FinishReason *string          `json:"finish_reason,omitempty"`
	Logprobs     *LogprobsContent `json:"logprobs,omitempty"`
}

type LogprobsContent struct {
	Content []TokenLogprob `json:"content"`
}

type TokenLogprob struct {
	Token       string       `json:"token"`
	Logprob     float64      `json:"logprob"`
	TopLogprobs []TopLogprob `json:"top_logprobs,omitempty"`
}

type TopLogprob struct {
	Token   string  `json:"token"`
	Logprob float64 `json:"logprob"`
}

type Usage struct {
	PromptTokens            int64                    `json:"prompt_tokens"`
	CompletionTokens        int64                    `json:"completion_tokens"`
	TotalTokens             int64                    `json:"total_tokens"`
	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details,omitempty"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details,omitempty"`
}

type CompletionTokensDetails struct {
	ReasoningTokens          int64 `json:"reasoning_tokens"`
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens"`
}

type PromptTokensDetails struct {
	CachedTokens int64 `json:"cached_tokens"`
}

type ResponseError struct {
	StatusCode int         `json:"-"`
	Detail     ErrorDetail `json:"error"`
}

func (e ResponseError) Error() string {
	return e.Detail.Message
}

type ErrorDetail struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Param     string `json:"param,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// DoneStreamEvent is the trailing SSE payload this implementation chooses to
// emit after the last real chunk (spec §9 Open Questions).
var DoneStreamEvent = []byte("[DONE]")
