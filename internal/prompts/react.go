package prompts

import "fmt"

// reactTemplate is the system prompt seeded into every mission session.
// Format verbs: goal, tools description. The markers must stay in sync
// with internal/action.
const reactTemplate = `You are an AI assistant that uses the ReAct (Reasoning + Acting) pattern.

GOAL: %s

AVAILABLE TOOLS:
%s

INSTRUCTIONS:
1. Think step by step about what needs to be done
2. Use tools when needed by responding with ACTION
3. After receiving tool results, continue reasoning
4. When done, provide your FINAL ANSWER

RESPONSE FORMAT:
Use exactly one of these formats in each response:

For thinking/reasoning:
THOUGHT: <your reasoning here>

For tool calls:
ACTION: <tool_name>
ARGS: <json arguments>

For final answer (when task is complete):
FINAL ANSWER: <your complete answer>

Always think before acting. Be concise and focused on the goal.`

// ToolsPlaceholder stands in for the tool listing when tools are not
// described up front.
const ToolsPlaceholder = "Tools will be loaded when execution starts."

// ActionNudge is appended after a bare thought to push the model toward
// a tool call or a final answer.
const ActionNudge = "Please take an action using a tool, or provide your FINAL ANSWER if the task is complete."

// ReActSystemPrompt returns the mission system prompt for goal. An empty
// toolsDescription is replaced by [ToolsPlaceholder].
func ReActSystemPrompt(goal, toolsDescription string) string {
	if toolsDescription == "" {
		toolsDescription = ToolsPlaceholder
	}
	return fmt.Sprintf(reactTemplate, goal, toolsDescription)
}

// MockAnswer is the terminal answer produced when no reasoning backend
// is bound.
func MockAnswer(goal string) string {
	return fmt.Sprintf("Mock ReAct execution. Goal: %s. Configure LLM client for real execution.", goal)
}
