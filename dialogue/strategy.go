// ABOUTME: turnStrategy is the per-dialogue-type role table: which role commits the incoming
// ABOUTME: utterance and which role commits the reply, plus the AI_AI turn-budget predicate.

package dialogue

import "github.com/2389-research/dialogued/store"

// turnStrategy resolves the human/AI role pair for one dialogue type and
// decides when a multi-turn exchange (AI_AI) should stop.
type turnStrategy interface {
	buildRoles() (humanRole, aiRole store.Role)
	shouldContinue(turnCount int) bool
}

// defaultMaxAIAITurns bounds an AI_AI exchange so two models alternating
// without human input cannot run unbounded.
const defaultMaxAIAITurns = 8

type standardStrategy struct{}

func (standardStrategy) buildRoles() (store.Role, store.Role) { return store.RoleHuman, store.RoleAI }
func (standardStrategy) shouldContinue(turnCount int) bool    { return false }

// selfReflectionStrategy replaces the human role with system, per
// AI_SELF_REFLECTION: the incoming utterance is a system-originated prompt
// and the reply is a recorded self-observation.
type selfReflectionStrategy struct{}

func (selfReflectionStrategy) buildRoles() (store.Role, store.Role) {
	return store.RoleSystem, store.RoleAI
}
func (selfReflectionStrategy) shouldContinue(turnCount int) bool { return false }

// aiAIStrategy alternates two model calls with distinct system prompts until
// a turn budget is reached.
type aiAIStrategy struct{ maxTurns int }

func (aiAIStrategy) buildRoles() (store.Role, store.Role) { return store.RoleAI, store.RoleAI }
func (s aiAIStrategy) shouldContinue(turnCount int) bool {
	max := s.maxTurns
	if max <= 0 {
		max = defaultMaxAIAITurns
	}
	return turnCount < max
}

// groupStrategy covers the three multi-party dialogue types and
// HUMAN_HUMAN_PRIVATE. The per-turn contract is identical to the standard
// strategy; for the three multi-party types, participant selection and
// routing happen above it, in participantsOf and selectRecipient.
type groupStrategy struct{}

func (groupStrategy) buildRoles() (store.Role, store.Role) { return store.RoleHuman, store.RoleAI }
func (groupStrategy) shouldContinue(turnCount int) bool    { return false }

func defaultStrategies() map[store.DialogueType]turnStrategy {
	return map[store.DialogueType]turnStrategy{
		store.HumanAIPrivate:    standardStrategy{},
		store.AISelfReflection:  selfReflectionStrategy{},
		store.AIAI:              aiAIStrategy{maxTurns: defaultMaxAIAITurns},
		store.HumanHumanPrivate: groupStrategy{},
		store.HumanHumanGroup:   groupStrategy{},
		store.HumanAIGroup:      groupStrategy{},
		store.AIMultiHumanGroup: groupStrategy{},
	}
}
