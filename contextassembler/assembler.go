// ABOUTME: Build converts prior turns, caller context, and new user text into a strictly
// ABOUTME: ordered message list: one system message, one per prior turn, one trailing user message.

package contextassembler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/2389-research/dialogued/llm"
	"github.com/2389-research/dialogued/store"
)

// defaultTokenBudget bounds how much caller-context material is folded into
// the system message, measured by the whitespace/rune heuristic in
// approxTokens.
const defaultTokenBudget = 1000

// continuationPhrases are short utterances that mean "keep going" rather than
// "start a new topic". Matched case-insensitively against the trimmed text.
var continuationPhrases = []string{
	"continue", "go on", "keep going", "please continue",
	"继续", "请继续",
}

// Options configures Build beyond its required arguments.
type Options struct {
	// TokenBudget overrides defaultTokenBudget when non-zero.
	TokenBudget int
}

// Build assembles the message list sent to the model for one turn. callerContext
// may be nil. priorTurns need not already be sorted; Build re-asserts
// ascending order by CreatedAt defensively.
func Build(priorTurns []*store.Turn, userText string, callerContext map[string]any, dialogueType store.DialogueType, opts Options) []llm.Message {
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = defaultTokenBudget
	}

	sorted := sortedByTime(priorTurns)

	messages := make([]llm.Message, 0, len(sorted)+2)
	messages = append(messages, llm.SystemMessage(buildSystemPrompt(sorted, userText, callerContext, dialogueType, budget)))
	for _, turn := range sorted {
		messages = append(messages, turnToMessage(turn))
	}
	messages = append(messages, llm.UserMessage(userText))
	return messages
}

func sortedByTime(turns []*store.Turn) []*store.Turn {
	sorted := make([]*store.Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

func turnToMessage(turn *store.Turn) llm.Message {
	switch turn.Role {
	case store.RoleAI:
		return llm.AssistantMessage(turn.Content)
	case store.RoleSystem:
		return llm.SystemMessage(turn.Content)
	case store.RoleTool:
		return llm.Message{Role: llm.RoleTool, Content: []llm.ContentPart{llm.TextPart(turn.Content)}}
	default:
		return llm.UserMessage(turn.Content)
	}
}

func buildSystemPrompt(priorTurns []*store.Turn, userText string, callerContext map[string]any, dialogueType store.DialogueType, budget int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are the assistant in a %s dialogue.", dialogueType)

	if clause := continuityClause(priorTurns, userText); clause != "" {
		b.WriteString(" ")
		b.WriteString(clause)
	}

	if len(callerContext) > 0 {
		block := processContext(callerContext)
		block = truncateToBudget(block, budget)
		b.WriteString("\n\n")
		b.WriteString(block)
	}

	return b.String()
}

// continuityClause instructs the model to continue the prior topic when
// userText is itself a continuation utterance, naming the topic when one can
// be extracted.
func continuityClause(priorTurns []*store.Turn, userText string) string {
	if !isContinuation(userText) {
		return "If the user's message is a short continuation like \"continue\" or \"go on\", continue the prior topic rather than starting a new one."
	}
	topic := extractTopic(priorTurns)
	if topic == "" {
		return "The user is asking you to continue; continue the prior topic."
	}
	return fmt.Sprintf("The user is asking you to continue; continue about: %s", topic)
}

func isContinuation(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range continuationPhrases {
		if trimmed == strings.ToLower(phrase) {
			return true
		}
	}
	return false
}

// extractTopic walks priorTurns newest-to-oldest and returns the content of
// the most recent human turn that is not itself a continuation utterance.
func extractTopic(priorTurns []*store.Turn) string {
	for i := len(priorTurns) - 1; i >= 0; i-- {
		turn := priorTurns[i]
		if turn.Role != store.RoleHuman {
			continue
		}
		if isContinuation(turn.Content) {
			continue
		}
		return turn.Content
	}
	return ""
}

// truncateToBudget trims s from the tail when it exceeds budget tokens,
// appending an ellipsis marker.
func truncateToBudget(s string, budget int) string {
	fields := strings.Fields(s)
	if len(fields) <= budget {
		return s
	}
	return strings.Join(fields[:budget], " ") + " …"
}

func approxTokens(s string) int {
	return len(strings.Fields(s))
}
