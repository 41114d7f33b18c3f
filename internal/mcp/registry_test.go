package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestToolRegistry_Register(t *testing.T) {
	tr := NewToolRegistry()

	tool := ToolDefinition{
		Name:        "test_tool",
		Description: "A test tool",
		InputSchema: map[string]any{"type": "object"},
	}
	executor := func(ctx context.Context, args json.RawMessage) (any, error) {
		return "executed", nil
	}

	if err := tr.Register(tool, executor); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if err := tr.Register(tool, executor); err == nil {
		t.Error("expected error when registering duplicate tool")
	}
	if tr.Count() != 1 {
		t.Errorf("expected count 1, got %d", tr.Count())
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "test_tool"}, nil)

	if !tr.HasTool("test_tool") {
		t.Error("tool should exist before unregister")
	}
	tr.Unregister("test_tool")
	if tr.HasTool("test_tool") {
		t.Error("tool should not exist after unregister")
	}
}

func TestToolRegistry_Get(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "test_tool", Description: "A test tool"}, nil)

	retrieved, ok := tr.Get("test_tool")
	if !ok {
		t.Fatal("expected tool to be found")
	}
	if retrieved.Description != "A test tool" {
		t.Errorf("expected description 'A test tool', got %q", retrieved.Description)
	}
	if _, ok := tr.Get("nonexistent"); ok {
		t.Error("expected tool not to be found")
	}
}

func TestToolRegistry_ListSorted(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "tool_c"}, nil)
	tr.Register(ToolDefinition{Name: "tool_a"}, nil)
	tr.Register(ToolDefinition{Name: "tool_b"}, nil)

	tools := tr.List()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	for i, want := range []string{"tool_a", "tool_b", "tool_c"} {
		if tools[i].Name != want {
			t.Errorf("tools[%d] = %q, want %q", i, tools[i].Name, want)
		}
	}
}

func TestToolRegistry_Execute(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "echo"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		return "output: " + string(args), nil
	})
	tr.Register(ToolDefinition{Name: "failing"}, func(ctx context.Context, args json.RawMessage) (any, error) {
		return nil, errors.New("execution failed")
	})
	tr.Register(ToolDefinition{Name: "no_executor"}, nil)

	t.Run("Success", func(t *testing.T) {
		result, err := tr.Execute(context.Background(), "echo", json.RawMessage(`"hello"`))
		if err != nil {
			t.Errorf("expected nil error, got %v", err)
		}
		if result != `output: "hello"` {
			t.Errorf("unexpected result %v", result)
		}
	})

	t.Run("Executor Error", func(t *testing.T) {
		if _, err := tr.Execute(context.Background(), "failing", nil); err == nil {
			t.Error("expected error from failing executor")
		}
	})

	t.Run("Unknown Tool", func(t *testing.T) {
		if _, err := tr.Execute(context.Background(), "unknown", nil); err == nil {
			t.Error("expected error for unknown tool")
		}
		if _, err := tr.Execute(context.Background(), "no_executor", nil); err == nil {
			t.Error("expected error for tool without executor")
		}
	})
}
