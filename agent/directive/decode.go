package directive

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://travel-concierge.local/directive/"

var argSchemas = mustCompileSchemas()

func mustCompileSchemas() map[string]*jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	names := []string{
		NameToHotelAgent,
		NameToFlightAgent,
		NameToTourAgent,
		NameToCustomerService,
		NameCompleteOrEscalate,
	}
	out := make(map[string]*jsonschema.Schema, len(names))
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schema/" + name + ".json")
		if err != nil {
			panic(fmt.Sprintf("directive: read schema %s: %v", name, err))
		}
		url := schemaBaseURL + name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			panic(fmt.Sprintf("directive: add schema %s: %v", name, err))
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			panic(fmt.Sprintf("directive: compile schema %s: %v", name, err))
		}
		out[name] = compiled
	}
	return out
}

// Decode converts a model tool call into a directive. ok is false when the call
// names an ordinary tool. A directive call without an id or with arguments
// that fail its schema is reported as ErrMalformedDirective.
func Decode(call schema.ToolCall) (d Directive, ok bool, err error) {
	name := strings.TrimSpace(call.Function.Name)
	if !IsDirectiveName(name) {
		return nil, false, nil
	}

	id := strings.TrimSpace(call.ID)
	if id == "" {
		return nil, true, fmt.Errorf("%w: %s has no id", contractx.ErrMalformedDirective, name)
	}

	rawArgs := strings.TrimSpace(call.Function.Arguments)
	if rawArgs == "" {
		rawArgs = "{}"
	}
	if err := validateArgs(name, rawArgs); err != nil {
		return nil, true, err
	}

	switch name {
	case NameToHotelAgent:
		var out ToHotelAgent
		if err := json.Unmarshal([]byte(rawArgs), &out); err != nil {
			return nil, true, malformedArgs(name, err)
		}
		out.CallID = id
		return out, true, nil
	case NameToFlightAgent:
		var out ToFlightAgent
		if err := json.Unmarshal([]byte(rawArgs), &out); err != nil {
			return nil, true, malformedArgs(name, err)
		}
		out.CallID = id
		return out, true, nil
	case NameToTourAgent:
		var out ToTourAgent
		if err := json.Unmarshal([]byte(rawArgs), &out); err != nil {
			return nil, true, malformedArgs(name, err)
		}
		out.CallID = id
		return out, true, nil
	case NameToCustomerService:
		var out ToCustomerService
		if err := json.Unmarshal([]byte(rawArgs), &out); err != nil {
			return nil, true, malformedArgs(name, err)
		}
		out.CallID = id
		return out, true, nil
	default:
		var raw struct {
			Cancel *bool  `json:"cancel"`
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal([]byte(rawArgs), &raw); err != nil {
			return nil, true, malformedArgs(name, err)
		}
		out := CompleteOrEscalate{CallID: id, Cancel: true, Reason: strings.TrimSpace(raw.Reason)}
		if raw.Cancel != nil {
			out.Cancel = *raw.Cancel
		}
		return out, true, nil
	}
}

func validateArgs(name, rawArgs string) error {
	dec := json.NewDecoder(strings.NewReader(rawArgs))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return malformedArgs(name, err)
	}
	if err := argSchemas[name].Validate(v); err != nil {
		return malformedArgs(name, err)
	}
	return nil
}

func malformedArgs(name string, err error) error {
	return fmt.Errorf("%w: invalid arguments for %s: %v", contractx.ErrMalformedDirective, name, err)
}

// Split separates the tool calls of msg into directives and ordinary calls.
func Split(msg *schema.Message) ([]Directive, []schema.ToolCall, error) {
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil, nil, nil
	}

	var (
		directives []Directive
		ordinary   []schema.ToolCall
	)
	for _, call := range msg.ToolCalls {
		d, ok, err := Decode(call)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			directives = append(directives, d)
			continue
		}
		if strings.TrimSpace(call.ID) == "" {
			return nil, nil, fmt.Errorf("%w: tool call %q has no id", contractx.ErrMalformedDirective, call.Function.Name)
		}
		ordinary = append(ordinary, call)
	}
	return directives, ordinary, nil
}

// NewFallbackEscalation builds the completion signal attached to a degraded
// reply so a failing specialist hands control back up the stack.
func NewFallbackEscalation(reason string) CompleteOrEscalate {
	return CompleteOrEscalate{
		CallID: "fallback_" + uuid.NewString(),
		Cancel: true,
		Reason: reason,
	}
}

// ToolCall renders d as a tool call that Decode accepts.
func ToolCall(d Directive) schema.ToolCall {
	args, _ := json.Marshal(d)
	return schema.ToolCall{
		ID:   d.ID(),
		Type: "function",
		Function: schema.FunctionCall{
			Name:      d.Name(),
			Arguments: string(args),
		},
	}
}
