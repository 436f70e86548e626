package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
	statex "github.com/tanpawarit/travel-concierge/agent/state"
	"gopkg.in/yaml.v3"
)

//go:embed template/prompts.yaml
var promptsRaw []byte

// AgentPrompt is the static part of one agent's system prompt.
type AgentPrompt struct {
	Description  string `yaml:"description"`
	Instructions string `yaml:"instructions"`
}

// PromptSet holds the loaded prompt of every agent.
type PromptSet map[statex.AgentID]AgentPrompt

// LoadPromptSet parses the embedded prompt catalog. Every known agent must
// have non-empty instructions.
func LoadPromptSet() (PromptSet, error) {
	return ParsePromptSet(promptsRaw)
}

func ParsePromptSet(raw []byte) (PromptSet, error) {
	var parsed map[string]AgentPrompt
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse prompt catalog: %v", contractx.ErrConfiguration, err)
	}

	set := make(PromptSet, len(statex.KnownAgents))
	for _, id := range statex.KnownAgents {
		p, ok := parsed[string(id)]
		if !ok || strings.TrimSpace(p.Instructions) == "" {
			return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, id)
		}
		set[id] = AgentPrompt{
			Description:  strings.TrimSpace(p.Description),
			Instructions: strings.TrimSpace(p.Instructions),
		}
	}
	return set, nil
}
