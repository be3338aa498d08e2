// ABOUTME: participantsOf and selectRecipient implement the minimal participant selection and
// ABOUTME: routing the three multi-party dialogue types require: a session's metadata carries an
// ABOUTME: ordered participant list, and each committed reply is addressed to one of them in turn.

package dialogue

import "github.com/2389-research/dialogued/store"

// aiPersonaInitiator and aiPersonaResponder tag which side of an AI_AI
// exchange authored a given turn.
const (
	aiPersonaInitiator = "initiator"
	aiPersonaResponder = "responder"
)

// personaPrompt returns the system-prompt clause distinguishing the two
// AI_AI personas, so the two alternating model calls do not simply repeat
// each other.
func personaPrompt(persona string) string {
	if persona == aiPersonaInitiator {
		return "You are the initiating voice in this AI-AI exchange. Introduce a new angle or question rather than only agreeing."
	}
	return "You are the responding voice in this AI-AI exchange. Build directly on what was just said."
}

// otherPersona swaps initiator and responder.
func otherPersona(persona string) string {
	if persona == aiPersonaInitiator {
		return aiPersonaResponder
	}
	return aiPersonaInitiator
}

// isGroupDialogue reports whether dt is one of the three multi-party types
// that select participants and route each committed reply to one of them.
func isGroupDialogue(dt store.DialogueType) bool {
	switch dt {
	case store.HumanHumanGroup, store.HumanAIGroup, store.AIMultiHumanGroup:
		return true
	default:
		return false
	}
}

// participantsOf reads the session's ordered participant list from its
// metadata under the "participants" key. A session with no such key, or a
// malformed one, resolves to an empty list and routing is skipped.
func participantsOf(session *store.Session) []string {
	raw, ok := session.Metadata["participants"]
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// selectRecipient round-robins the committed reply across participants by
// how many AI turns the session already carried before this one, so a group
// session with N participants cycles through all of them instead of always
// addressing the first.
func selectRecipient(participants []string, priorAITurnCount int) string {
	if len(participants) == 0 {
		return ""
	}
	return participants[priorAITurnCount%len(participants)]
}

// countAITurns counts the AI-authored turns already in history, used to
// index into the round-robin participant list.
func countAITurns(turns []*store.Turn) int {
	count := 0
	for _, t := range turns {
		if t.Role == store.RoleAI {
			count++
		}
	}
	return count
}
