package mcpadapter

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/models"
	"github.com/povarna/generative-ai-agents/tlm-agent/internal/tlm"
)

// Prompter is the dispatcher surface exposed as MCP tools.
type Prompter interface {
	PromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) ([]models.Response, error)
	TryPromptBatch(ctx context.Context, prompts []string, opts ...tlm.CallOption) []tlm.Result
}

// PromptInput is the input schema shared by both tools.
type PromptInput struct {
	Prompts        []string `json:"prompts" jsonschema:"prompts to send; answers come back in the same order"`
	TimeoutSeconds float64  `json:"timeout_seconds,omitempty" jsonschema:"per-prompt timeout in seconds, server default when omitted"`
}

type PromptOutput struct {
	Responses []models.Response `json:"responses" jsonschema:"one response per prompt, in input order"`
}

type TryPromptItem struct {
	Index    int              `json:"index" jsonschema:"position of the prompt in the input"`
	Response *models.Response `json:"response,omitempty" jsonschema:"the response, missing when the prompt failed"`
	Error    string           `json:"error,omitempty" jsonschema:"why no response was produced"`
}

type TryPromptOutput struct {
	Results []TryPromptItem `json:"results" jsonschema:"one result per prompt, in input order"`
	Absent  int             `json:"absent" jsonschema:"number of prompts without a response"`
}

var errNoPrompts = errors.New("prompts must not be empty")

// Register adds the tlm_prompt and tlm_try_prompt tools to server.
func Register(server *mcp.Server, prompter Prompter) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "tlm_prompt",
		Description: "Ask the trustworthy language model one or more prompts. Fails if any prompt fails or times out.",
	}, NewPromptHandler(prompter))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tlm_try_prompt",
		Description: "Ask the trustworthy language model one or more prompts. Failed or timed out prompts are reported per item.",
	}, NewTryPromptHandler(prompter))
}

// NewPromptHandler returns a tool handler for strict prompting.
// Pass the returned function to mcp.AddTool.
func NewPromptHandler(prompter Prompter) func(context.Context, *mcp.CallToolRequest, PromptInput) (*mcp.CallToolResult, PromptOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PromptInput) (*mcp.CallToolResult, PromptOutput, error) {
		if len(input.Prompts) == 0 {
			return nil, PromptOutput{}, errNoPrompts
		}

		responses, err := prompter.PromptBatch(ctx, input.Prompts, callOptions(input)...)
		if err != nil {
			return nil, PromptOutput{}, err
		}
		return nil, PromptOutput{Responses: responses}, nil
	}
}

// NewTryPromptHandler returns a tool handler for tolerant prompting.
func NewTryPromptHandler(prompter Prompter) func(context.Context, *mcp.CallToolRequest, PromptInput) (*mcp.CallToolResult, TryPromptOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input PromptInput) (*mcp.CallToolResult, TryPromptOutput, error) {
		if len(input.Prompts) == 0 {
			return nil, TryPromptOutput{}, errNoPrompts
		}

		results := prompter.TryPromptBatch(ctx, input.Prompts, callOptions(input)...)

		output := TryPromptOutput{Results: make([]TryPromptItem, len(results))}
		for i, r := range results {
			item := TryPromptItem{Index: i, Response: r.Response}
			if r.Absent() {
				output.Absent++
				if r.Err != nil {
					item.Error = r.Err.Error()
				}
			}
			output.Results[i] = item
		}
		return nil, output, nil
	}
}

func callOptions(input PromptInput) []tlm.CallOption {
	if input.TimeoutSeconds <= 0 {
		return nil
	}
	return []tlm.CallOption{tlm.WithTimeout(tlm.Seconds(input.TimeoutSeconds))}
}
