package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	directivex "github.com/tanpawarit/travel-concierge/agent/directive"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
)

const timeLayout = "Mon, 02 Jan 2006 15:04 MST"

// Spec describes one agent before it is composed.
type Spec struct {
	Kind         statex.AgentID
	Model        einomodel.ToolCallingChatModel
	Tools        []einotool.BaseTool
	StaticPrompt string
	// Clock is read on every invocation. Defaults to time.Now.
	Clock func() time.Time
}

// Unit is an agent ready to be invoked: prompt template, bound model and the
// node that runs its ordinary tools.
type Unit struct {
	kind   statex.AgentID
	runner compose.Runnable[map[string]any, *schema.Message]
	tools  *compose.ToolsNode
	clock  func() time.Time
}

var _ contractx.AgentUnit = (*Unit)(nil)

// Build composes the unit. Nothing is invoked; every failure is a
// configuration error.
func Build(ctx context.Context, spec Spec) (*Unit, error) {
	if !spec.Kind.IsKnown() {
		return nil, fmt.Errorf("%w: unknown agent %q", contractx.ErrConfiguration, spec.Kind)
	}
	if spec.Model == nil {
		return nil, fmt.Errorf("%w: agent=%s has no model", contractx.ErrConfiguration, spec.Kind)
	}
	static := strings.TrimSpace(spec.StaticPrompt)
	if static == "" {
		return nil, fmt.Errorf("%w: agent=%s has an empty prompt", contractx.ErrConfiguration, spec.Kind)
	}
	if err := checkBraces(static); err != nil {
		return nil, fmt.Errorf("%w: agent=%s prompt: %v", contractx.ErrConfiguration, spec.Kind, err)
	}

	infos, err := toolInfos(ctx, spec.Tools)
	if err != nil {
		return nil, fmt.Errorf("%w: agent=%s: %v", contractx.ErrConfiguration, spec.Kind, err)
	}
	infos = append(infos, directivex.ToolInfos(spec.Kind)...)

	bound, err := spec.Model.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrConfiguration, spec.Kind, err)
	}

	runner, err := compileAgentGraph(ctx, spec.Kind, bound, static)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrConfiguration, err)
	}

	u := &Unit{
		kind:   spec.Kind,
		runner: runner,
		clock:  spec.Clock,
	}
	if u.clock == nil {
		u.clock = time.Now
	}

	if len(spec.Tools) > 0 {
		u.tools, err = compose.NewToolNode(ctx, &compose.ToolsNodeConfig{Tools: spec.Tools})
		if err != nil {
			return nil, fmt.Errorf("%w: tools node for agent=%s: %v", contractx.ErrConfiguration, spec.Kind, err)
		}
	}
	return u, nil
}

func (u *Unit) Kind() statex.AgentID {
	return u.kind
}

func (u *Unit) Invoke(ctx context.Context, in contractx.TurnInput) (*schema.Message, error) {
	in = in.Normalized()
	vars := map[string]any{
		"time":         u.clock().Format(timeLayout),
		"user_info":    formatUserContext(in.UserContext),
		"dialog_state": formatDialogState(in.DialogState),
		"messages":     in.Messages,
	}

	msg, err := u.runner.Invoke(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: agent=%s: %v", contractx.ErrModelInvoke, u.kind, err)
	}
	return msg, nil
}

func (u *Unit) RunTools(ctx context.Context, msg *schema.Message) ([]*schema.Message, error) {
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil, nil
	}
	if u.tools == nil {
		return nil, fmt.Errorf("%w: agent=%s has no tools", contractx.ErrToolInvocation, u.kind)
	}
	out, err := u.tools.Invoke(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: agent=%s: %v", contractx.ErrToolInvocation, u.kind, err)
	}
	return out, nil
}

func compileAgentGraph(
	ctx context.Context,
	kind statex.AgentID,
	chatModel einomodel.BaseChatModel,
	staticPrompt string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemTemplate(staticPrompt)),
		schema.MessagesPlaceholder("messages", false),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add agent prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add agent model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add agent edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add agent edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add agent edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("assistant."+string(kind)))
	if err != nil {
		return nil, fmt.Errorf("compile agent graph for %s: %w", kind, err)
	}
	return runner, nil
}

func systemTemplate(staticPrompt string) string {
	return staticPrompt +
		"\n\nCurrent time: {time}." +
		"\n\n<User>\n{user_info}\n</User>" +
		"\n\nDialog state: {dialog_state}"
}

// checkBraces rejects single braces; static prompts are formatted with
// FString so literal braces must be doubled.
func checkBraces(s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '{' && c != '}' {
			continue
		}
		if i+1 < len(s) && s[i+1] == c {
			i++
			continue
		}
		return fmt.Errorf("unescaped %q at offset %d", c, i)
	}
	return nil
}

func toolInfos(ctx context.Context, tools []einotool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		if t == nil {
			return nil, errors.New("nil tool")
		}
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		if directivex.IsDirectiveName(info.Name) {
			return nil, fmt.Errorf("tool %s shadows a routing directive", info.Name)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func formatUserContext(uc map[string]any) string {
	if len(uc) == 0 {
		return "No user information provided."
	}
	raw, err := json.Marshal(uc)
	if err != nil {
		return fmt.Sprintf("%v", uc)
	}
	return string(raw)
}

func formatDialogState(stack []statex.AgentID) string {
	if len(stack) == 0 {
		return string(statex.AgentSupervisor)
	}
	parts := make([]string, len(stack))
	for i, id := range stack {
		parts[i] = string(id)
	}
	return strings.Join(parts, " > ")
}
