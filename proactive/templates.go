// ABOUTME: templates supplies a per-type fallback utterance used when ModelClient generation
// ABOUTME: fails, and buildPlannerPrompt constructs the prompt sent to ModelClient otherwise.

package proactive

import "fmt"

var templates = map[ExpressionType]string{
	Greeting:    "Good morning. Hope you're off to a good start today.",
	Care:        "Just checking in — how have you been?",
	Share:       "I came across something I thought you might find interesting.",
	Suggestion:  "I had an idea that might help with what we discussed.",
	Reflection:  "I've been thinking about our last conversation.",
	Celebration: "Congratulations on your progress!",
	Farewell:    "Wishing you a good evening.",
	Reminder:    "Just a reminder about what we talked about.",
}

func templateFor(t ExpressionType) string {
	if text, ok := templates[t]; ok {
		return text
	}
	return templates[Share]
}

func buildPlannerPrompt(t ExpressionType, stage Stage, signals Signals) string {
	return fmt.Sprintf(
		"Compose a short, natural %s message to a user at relationship stage %s. Recent topic: %q. Respond with the message text only.",
		t, stage, signals.RecentTopic,
	)
}
