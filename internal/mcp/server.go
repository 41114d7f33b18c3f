// Package mcp exposes the context store to AI assistants as a Model Context
// Protocol server over stdio. Tools are kept in a ToolRegistry and mounted
// on the go-sdk server, which owns framing, the handshake and dispatch.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/brainrot/internal/events"
	"github.com/felixgeelhaar/brainrot/internal/guard"
	"github.com/felixgeelhaar/brainrot/internal/memory"
	"github.com/felixgeelhaar/brainrot/internal/observe"
	"github.com/felixgeelhaar/brainrot/internal/runtime"
	"github.com/felixgeelhaar/brainrot/internal/store"
)

const (
	ServerName = "brainrot"

	summaryURI = "context://summary"
)

// Server adapts the runtime to an MCP server.
type Server struct {
	rt        *runtime.Runtime
	tools     *ToolRegistry
	prompts   []prompt
	bus       *events.Bus
	obs       *observe.Observer
	version   string
	limit     int
	threshold float64

	sdk *sdk.Server
}

type Option func(*Server)

// WithSearchDefaults sets the limit and threshold used when a search tool
// call omits them.
func WithSearchDefaults(limit int, threshold float64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.limit = limit
		}
		s.threshold = threshold
	}
}

func WithObserver(o *observe.Observer) Option {
	return func(s *Server) {
		if o != nil {
			s.obs = o
		}
	}
}

func WithBus(b *events.Bus) Option {
	return func(s *Server) { s.bus = b }
}

func NewServer(rt *runtime.Runtime, version string, opts ...Option) *Server {
	s := &Server{
		rt:        rt,
		tools:     NewToolRegistry(),
		obs:       observe.Nop(),
		version:   version,
		limit:     memory.DefaultLimit,
		threshold: memory.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerPrompts()

	s.sdk = sdk.NewServer(&sdk.Implementation{Name: ServerName, Version: version}, nil)
	s.mount()
	return s
}

// mount hands tools, prompts and the summary resource to the SDK server.
func (s *Server) mount() {
	for _, def := range s.tools.List() {
		s.sdk.AddTool(&sdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.toolHandler(def.Name))
	}
	for _, p := range s.prompts {
		s.sdk.AddPrompt(p.definition(), s.promptHandler(p))
	}
	s.sdk.AddResource(&sdk.Resource{
		URI:         summaryURI,
		Name:        "summary",
		Title:       "Stored contexts summary",
		Description: "All stored context keys grouped by tag",
		MIMEType:    "text/markdown",
	}, s.readSummary)
}

// Tools exposes the registry, mainly for inspection.
func (s *Server) Tools() *ToolRegistry {
	return s.tools
}

// Connect starts a session on t and returns without waiting for it to end.
func (s *Server) Connect(ctx context.Context, t sdk.Transport) (*sdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Serve runs one session of newline-delimited JSON-RPC over in and out until
// in is exhausted or ctx is done. out is never closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.obs.Log().Info().Str("version", s.version).Msg("mcp server listening on stdio")

	rc, ok := in.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(in)
	}
	err := s.sdk.Run(ctx, &sdk.IOTransport{Reader: rc, Writer: nopWriteCloser{out}})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp session failed: %w", err)
	}
	return nil
}

func (s *Server) toolHandler(name string) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (*sdk.CallToolResult, error) {
		var args json.RawMessage
		if req.Params != nil {
			args = req.Params.Arguments
		}
		return s.callTool(ctx, name, args)
	}
}

func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) (_ *sdk.CallToolResult, err error) {
	ctx, span := s.obs.StartSpan(ctx, "mcp.ToolCall")
	span.SetAttributes(attribute.String("tool", name))
	defer func() { observe.EndSpan(span, err) }()

	result, execErr := s.tools.Execute(ctx, name, args)
	s.bus.Publish(events.Event{
		Type: events.EventToolCall,
		Data: map[string]any{"tool": name, "ok": execErr == nil},
	})

	if execErr != nil {
		var perr *ParamsError
		if errors.As(execErr, &perr) {
			return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: perr.Error()}
		}
		s.obs.Log().Warn().Str("tool", name).Err(execErr).Msg("tool call failed")
		return toolError(execErr), nil
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(text)}}}, nil
}

// toolError reports a failed call in-band so the assistant can react.
func toolError(err error) *sdk.CallToolResult {
	body := map[string]any{"success": false, "error": err.Error()}
	switch {
	case errors.Is(err, store.ErrNotFound):
		body["suggestion"] = "Use list_contexts to see available context keys"
	case errors.Is(err, guard.ErrViolation):
		body["error"] = "Policy violation: " + err.Error()
	case errors.Is(err, memory.ErrInvalidQuery):
		body["error"] = "Query cannot be empty"
	}
	text, _ := json.MarshalIndent(body, "", "  ")
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(text)}},
		IsError: true,
	}
}

func (s *Server) readSummary(ctx context.Context, _ *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	text, err := s.rt.Summary(ctx)
	if err != nil {
		return nil, err
	}
	return &sdk.ReadResourceResult{Contents: []*sdk.ResourceContents{{
		URI:      summaryURI,
		MIMEType: "text/markdown",
		Text:     text,
	}}}, nil
}
