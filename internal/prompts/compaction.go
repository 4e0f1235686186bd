package prompts

import "fmt"

// compactionTemplate is the prompt sent to a model to summarize the older
// part of a mission transcript. The format verbs are the mission goal and
// the transcript text.
const compactionTemplate = `Summarize the earlier steps of this task transcript concisely so the work can continue in a smaller context. Focus on:
1. What the goal is and how far along it is
2. Tool calls made and the results they returned
3. Facts established and decisions taken
4. Anything still outstanding

Keep the summary under 300 words. Use bullet points. Do not invent results.

Goal: %s

Transcript:
%s

Summary:`

// CompactionPrompt returns the fully interpolated summarization prompt.
// The caller passes the formatted transcript (role: content pairs). An
// empty goal is rendered as "(unknown)".
func CompactionPrompt(goal, transcript string) string {
	if goal == "" {
		goal = "(unknown)"
	}
	return fmt.Sprintf(compactionTemplate, goal, transcript)
}
