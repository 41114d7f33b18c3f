package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ToolDefinition describes a tool as advertised by tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolExecutor runs a tool call with its raw JSON arguments and returns a
// JSON-encodable result.
type ToolExecutor func(ctx context.Context, args json.RawMessage) (any, error)

// ToolRegistry manages available tools and their execution.
type ToolRegistry struct {
	mu        sync.RWMutex
	tools     map[string]ToolDefinition
	executors map[string]ToolExecutor
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:     make(map[string]ToolDefinition),
		executors: make(map[string]ToolExecutor),
	}
}

// Register adds a tool to the registry.
func (tr *ToolRegistry) Register(tool ToolDefinition, executor ToolExecutor) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if _, exists := tr.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}

	tr.tools[tool.Name] = tool
	tr.executors[tool.Name] = executor
	return nil
}

func (tr *ToolRegistry) Unregister(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	delete(tr.tools, name)
	delete(tr.executors, name)
}

func (tr *ToolRegistry) Get(name string) (ToolDefinition, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tool, ok := tr.tools[name]
	return tool, ok
}

// List returns all registered tool definitions ordered by name.
func (tr *ToolRegistry) List() []ToolDefinition {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	tools := make([]ToolDefinition, 0, len(tr.tools))
	for _, tool := range tr.tools {
		tools = append(tools, tool)
	}
	slices.SortFunc(tools, func(a, b ToolDefinition) int { return strings.Compare(a.Name, b.Name) })
	return tools
}

// Execute runs a tool and returns its result.
func (tr *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tr.mu.RLock()
	executor, ok := tr.executors[name]
	tr.mu.RUnlock()

	if !ok || executor == nil {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	return executor(ctx, args)
}

func (tr *ToolRegistry) HasTool(name string) bool {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	_, ok := tr.tools[name]
	return ok
}

func (tr *ToolRegistry) Count() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	return len(tr.tools)
}
