package openai

import (
	"testing"
	"time"

	"github.com/ilkoid/teplitsa-ai/pkg/config"
	"github.com/ilkoid/teplitsa-ai/pkg/llm"
	"github.com/ilkoid/teplitsa-ai/pkg/tools"
)

func TestNewClientDefaultsTimeout(t *testing.T) {
	// ModelDef без timeout: клиент обязан подставить дефолтный
	// sub-timeout, иначе зависший запрос блокирует цикл навсегда
	c := NewClient(config.ModelDef{ModelName: "gpt-4o-mini"})
	if c.timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s default", c.timeout)
	}

	c = NewClient(config.ModelDef{ModelName: "gpt-4o-mini", Timeout: config.Duration(5 * time.Second)})
	if c.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want explicit 5s", c.timeout)
	}
}

func TestMapToOpenAIText(t *testing.T) {
	msg := mapToOpenAI(llm.UserMessage("check the greenhouse"))
	if msg.Role != "user" {
		t.Errorf("Role = %s", msg.Role)
	}
	if msg.Content != "check the greenhouse" {
		t.Errorf("Content = %s", msg.Content)
	}
	if msg.MultiContent != nil {
		t.Error("text-only message must not use MultiContent")
	}
}

func TestMapToOpenAIToolMessage(t *testing.T) {
	msg := mapToOpenAI(llm.ToolMessage("call-42", `{"value": 21.0}`))
	if msg.Role != "tool" {
		t.Errorf("Role = %s", msg.Role)
	}
	if msg.ToolCallID != "call-42" {
		t.Errorf("ToolCallID = %s", msg.ToolCallID)
	}
}

func TestMapToOpenAIAssistantToolCalls(t *testing.T) {
	msg := mapToOpenAI(llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []tools.Call{
			{ID: "c1", Name: "read_sensor", Args: `{"sensor":"air_temp"}`},
			{ID: "c2", Name: "set_actuator", Args: `{"actuator":"fan","state":true}`},
		},
	})
	if len(msg.ToolCalls) != 2 {
		t.Fatalf("ToolCalls count = %d", len(msg.ToolCalls))
	}
	if msg.ToolCalls[0].Function.Name != "read_sensor" {
		t.Errorf("first call name = %s", msg.ToolCalls[0].Function.Name)
	}
	if msg.ToolCalls[1].Function.Arguments != `{"actuator":"fan","state":true}` {
		t.Errorf("second call args = %s", msg.ToolCalls[1].Function.Arguments)
	}
}

func TestMapToOpenAIVision(t *testing.T) {
	msg := mapToOpenAI(llm.Message{
		Role:    llm.RoleUser,
		Content: "what do you see?",
		Images:  []string{"data:image/jpeg;base64,AAAA"},
	})
	if len(msg.MultiContent) != 2 {
		t.Fatalf("MultiContent parts = %d, want 2", len(msg.MultiContent))
	}
	if msg.MultiContent[0].Text != "what do you see?" {
		t.Errorf("text part = %s", msg.MultiContent[0].Text)
	}
	if msg.MultiContent[1].ImageURL == nil {
		t.Fatal("image part missing")
	}
}

func TestConvertToolsToOpenAI(t *testing.T) {
	defs := []tools.ToolDefinition{
		{
			Name:        "read_sensor",
			Description: "Read one sensor value",
			Parameters: tools.JSONSchema{
				"type": "object",
				"properties": map[string]any{
					"sensor": map[string]any{"type": "string"},
				},
				"required": []string{"sensor"},
			},
		},
	}

	converted := convertToolsToOpenAI(defs)
	if len(converted) != 1 {
		t.Fatalf("converted count = %d", len(converted))
	}
	if converted[0].Type != "function" {
		t.Errorf("Type = %s", converted[0].Type)
	}
	if converted[0].Function.Name != "read_sensor" {
		t.Errorf("Function.Name = %s", converted[0].Function.Name)
	}
}
