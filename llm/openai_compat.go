// ABOUTME: OpenAI Chat Completions API adapter with base URL support for compatible providers.
// ABOUTME: Enables Cerebras, OpenRouter, Cloudflare AI Gateway, and other OpenAI-compatible services.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAICompatAdapter implements ProviderAdapter using the OpenAI Chat Completions
// API via the openai-go SDK. Unlike OpenAIAdapter (which talks to the Responses
// API at api.openai.com), this supports an arbitrary base URL, so it backs any
// provider exposing an OpenAI-compatible /v1/chat/completions endpoint.
type OpenAICompatAdapter struct {
	client openai.Client
	model  string
	name   string
}

// NewOpenAICompatAdapter creates a Chat Completions adapter labelled
// "openai-compat" in Response.Provider and error messages. An empty model
// defaults to "gpt-5.2"; an empty baseURL keeps the SDK's default endpoint.
func NewOpenAICompatAdapter(apiKey, model, baseURL string) *OpenAICompatAdapter {
	if model == "" {
		model = "gpt-5.2"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		name:   "openai-compat",
	}
}

// Name returns the provider name for this adapter.
func (a *OpenAICompatAdapter) Name() string {
	return a.name
}

// Close releases resources held by the adapter.
func (a *OpenAICompatAdapter) Close() error {
	return nil
}

// Complete sends a completion request via the Chat Completions endpoint.
func (a *OpenAICompatAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params := a.buildParams(req)

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &ServerError{ProviderError: ProviderError{
			SDKError: SDKError{Message: fmt.Sprintf("%s: chat completion failed: %v", a.name, err)},
		}}
	}

	return a.convertResponse(resp), nil
}

// Stream sends a streaming request and translates chunks into unified StreamEvents.
func (a *OpenAICompatAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	params := a.buildParams(req)
	stream := a.client.Chat.Completions.NewStreaming(ctx, params)

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- StreamEvent{Type: StreamErrorEvt, Error: fmt.Errorf("panic in openai-compat stream: %v", r)}
			}
		}()

		var acc openai.ChatCompletionAccumulator
		ch <- StreamEvent{Type: StreamStart}

		for stream.Next() {
			chunk := stream.Current()
			acc.AddChunk(chunk)

			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ch <- StreamEvent{Type: StreamTextDelta, Delta: chunk.Choices[0].Delta.Content}
			}

			if tc, ok := acc.JustFinishedToolCall(); ok {
				ch <- StreamEvent{
					Type: StreamToolEnd,
					ToolCall: &ToolCall{
						ID:           tc.ID,
						Name:         tc.Name,
						Arguments:    json.RawMessage(tc.Arguments),
						RawArguments: tc.Arguments,
					},
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- StreamEvent{Type: StreamErrorEvt, Error: err}
			return
		}

		response := a.convertResponse(&acc.ChatCompletion)
		ch <- StreamEvent{Type: StreamFinish, Response: response}
	}()

	return ch, nil
}

func (a *OpenAICompatAdapter) buildParams(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = a.model
	}

	params := openai.ChatCompletionNewParams{Model: model}

	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}

	systemText, rest := ExtractSystemMessages(req.Messages)

	var messages []openai.ChatCompletionMessageParamUnion
	if systemText != "" {
		messages = append(messages, openai.SystemMessage(systemText))
	}
	for _, msg := range rest {
		messages = append(messages, a.convertMessage(msg))
	}
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(rawToMap(t.Parameters)),
				},
			})
		}
		params.Tools = tools
	}

	return params
}

func (a *OpenAICompatAdapter) convertMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case RoleTool:
		for _, part := range msg.Content {
			if part.Kind == ContentToolResult && part.ToolResult != nil {
				return openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ToolCallID)
			}
		}
		return openai.ToolMessage("", msg.ToolCallID)
	case RoleAssistant:
		return a.convertAssistantMessage(msg)
	default:
		return openai.UserMessage(msg.TextContent())
	}
}

func (a *OpenAICompatAdapter) convertAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, tc := range msg.ToolCalls() {
		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		})
	}

	text := msg.TextContent()
	if len(toolCalls) > 0 {
		asst := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
		if text != "" {
			asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(text),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &asst}
	}
	return openai.AssistantMessage(text)
}

func (a *OpenAICompatAdapter) convertResponse(resp *openai.ChatCompletion) *Response {
	result := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.name,
		Usage: Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}

	if len(resp.Choices) == 0 {
		result.FinishReason = FinishReason{Reason: FinishOther}
		return result
	}

	choice := resp.Choices[0]
	result.FinishReason = convertFinishReason(string(choice.FinishReason))

	var parts []ContentPart
	if choice.Message.Content != "" {
		parts = append(parts, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, ToolCallPart(tc.ID, tc.Function.Name, json.RawMessage(tc.Function.Arguments)))
	}
	result.Message = Message{Role: RoleAssistant, Content: parts}

	return result
}

func convertFinishReason(raw string) FinishReason {
	switch raw {
	case "stop":
		return FinishReason{Reason: FinishStop, Raw: raw}
	case "tool_calls":
		return FinishReason{Reason: FinishToolCalls, Raw: raw}
	case "length":
		return FinishReason{Reason: FinishLength, Raw: raw}
	case "content_filter":
		return FinishReason{Reason: FinishContentFilter, Raw: raw}
	default:
		return FinishReason{Reason: FinishOther, Raw: raw}
	}
}

func rawToMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return m
}

var _ ProviderAdapter = (*OpenAICompatAdapter)(nil)
