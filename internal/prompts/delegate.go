package prompts

import "strings"

// DelegateContext builds the context summary handed to a delegated child
// mission. The parent's free-text context, when present, follows a fixed
// framing line so the child knows it is working a sub-task.
func DelegateContext(objective, parentContext string) string {
	var sb strings.Builder
	sb.WriteString("You are working a delegated sub-task for another agent. Complete the objective and reply with a FINAL ANSWER the parent can use directly.\n\n")
	sb.WriteString("Objective: ")
	sb.WriteString(objective)
	if c := strings.TrimSpace(parentContext); c != "" {
		sb.WriteString("\n\nContext from the delegating agent:\n")
		sb.WriteString(c)
	}
	return sb.String()
}
