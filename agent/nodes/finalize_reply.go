package conciergenode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/travel-concierge/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Session == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := ""
	if in.Reply != nil {
		reply = strings.TrimSpace(in.Reply.Content)
	}
	if reply == "" {
		reply = contractx.DefaultApology
	}
	return GraphOutput{
		Reply:       reply,
		ActiveAgent: in.Session.ActiveAgent(),
		Outcome:     in.Outcome,
	}, nil
}
