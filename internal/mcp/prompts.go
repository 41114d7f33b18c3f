package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type promptArgument struct {
	Name        string
	Description string
	Required    bool
}

type prompt struct {
	Name        string
	Description string
	Arguments   []promptArgument

	render func(ctx context.Context, args map[string]string) (string, error)
}

func (p prompt) definition() *sdk.Prompt {
	def := &sdk.Prompt{Name: p.Name, Description: p.Description}
	for _, a := range p.Arguments {
		def.Arguments = append(def.Arguments, &sdk.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return def
}

func (s *Server) registerPrompts() {
	s.prompts = []prompt{
		{
			Name:        "analyze_project_context",
			Description: "Review stored contexts: high priority items, then each tag.",
			render: func(ctx context.Context, _ map[string]string) (string, error) {
				return s.rt.AnalyzeProject(ctx)
			},
		},
		{
			Name:        "suggest_next_actions",
			Description: "Prioritize stored TODOs and technical debt.",
			render: func(ctx context.Context, _ map[string]string) (string, error) {
				return s.rt.SuggestNextActions(ctx)
			},
		},
		{
			Name:        "context_for_feature",
			Description: "Gather decisions and patterns relevant to implementing a feature.",
			Arguments: []promptArgument{
				{Name: "feature_name", Description: "Name or description of the feature", Required: true},
			},
			render: func(ctx context.Context, args map[string]string) (string, error) {
				return s.rt.ContextForFeature(ctx, args["feature_name"])
			},
		},
	}
}

func (s *Server) promptHandler(p prompt) sdk.PromptHandler {
	return func(ctx context.Context, req *sdk.GetPromptRequest) (*sdk.GetPromptResult, error) {
		var args map[string]string
		if req.Params != nil {
			args = req.Params.Arguments
		}
		for _, arg := range p.Arguments {
			if arg.Required && args[arg.Name] == "" {
				return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "missing argument: " + arg.Name}
			}
		}
		text, err := p.render(ctx, args)
		if err != nil {
			return nil, err
		}
		return &sdk.GetPromptResult{
			Description: p.Description,
			Messages: []*sdk.PromptMessage{{
				Role:    "user",
				Content: &sdk.TextContent{Text: text},
			}},
		}, nil
	}
}
