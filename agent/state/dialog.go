package state

// PopSignal is the only signal that removes the top of the dialog stack.
const PopSignal = "pop"

// Push returns a signal that pushes agent onto the dialog stack.
func Push(agent AgentID) *string {
	s := string(agent)
	return &s
}

// Pop returns the pop signal.
func Pop() *string {
	s := PopSignal
	return &s
}

// UpdateDialogStack applies signal to stack and returns the resulting stack.
// The input slice is never modified.
//   - nil signal: unchanged
//   - "pop": last element removed; popping an empty stack yields an empty stack
//   - anything else: appended as-is, without validation
func UpdateDialogStack(stack []AgentID, signal *string) []AgentID {
	out := make([]AgentID, len(stack), len(stack)+1)
	copy(out, stack)

	if signal == nil {
		return out
	}
	if *signal == PopSignal {
		if len(out) == 0 {
			return out
		}
		return out[:len(out)-1]
	}
	return append(out, AgentID(*signal))
}

// ActiveAgent is the stack top, or the supervisor when the stack is empty.
func ActiveAgent(stack []AgentID) AgentID {
	if len(stack) == 0 {
		return AgentSupervisor
	}
	return stack[len(stack)-1]
}
