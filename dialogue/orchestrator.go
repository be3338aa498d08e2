// ABOUTME: Orchestrator runs the ProcessInput pipeline: resolve session, load
// ABOUTME: history, commit the human turn, assemble messages, decide/run a tool, generate a reply,
// ABOUTME: commit the tool turn (if any) then the AI turn, touch session activity, and return a
// ABOUTME: result. AI_AI sessions instead alternate two personas via processAIAIExchange until the
// ABOUTME: dialogue type's turn budget is spent.

package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389-research/dialogued/contextassembler"
	"github.com/2389-research/dialogued/llm"
	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/proactive"
	"github.com/2389-research/dialogued/store"
	"github.com/2389-research/dialogued/tools"
)

// fallbackReplyFormat is the deterministic reply substituted when the model
// is unavailable or times out, with text echoed back verbatim.
const fallbackReplyFormat = "I received your message but cannot generate an intelligent reply right now — echoing it back: %s"

// Result is the outcome of ProcessInput.
type Result struct {
	Reply         string
	SessionID     string
	TurnID        string
	Timestamp     time.Time
	ToolsUsed     []string
	ContextUsed   bool
	Fallback      bool
	ModelFallback bool
	Timeout       bool
}

// Orchestrator wires together the Store, ModelClient, ToolRegistry, ToolInvoker,
// and ContextAssembler into the ProcessInput pipeline. An optional
// ProactiveScheduler is notified of every committed human turn so it can
// dedup pending proactive expressions.
type Orchestrator struct {
	store     store.Store
	model     modelclient.Client
	registry  *tools.Registry
	invoker   *tools.Invoker
	scheduler *proactive.Scheduler

	contextOptions contextassembler.Options
	strategies     map[store.DialogueType]turnStrategy
}

// New builds an Orchestrator from its constructed dependencies, in the
// required construction order (Store, ModelClient, ToolRegistry, ToolInvoker,
// ContextAssembler is stateless, ProactiveScheduler, then the Orchestrator
// itself).
func New(st store.Store, model modelclient.Client, registry *tools.Registry, invoker *tools.Invoker, scheduler *proactive.Scheduler) *Orchestrator {
	return &Orchestrator{
		store:      st,
		model:      model,
		registry:   registry,
		invoker:    invoker,
		scheduler:  scheduler,
		strategies: defaultStrategies(),
	}
}

// ProcessInput runs the full pipeline for one user utterance and returns the
// reply plus the metadata the HTTP boundary surfaces to the caller. AI_AI
// sessions are dispatched to processAIAIExchange instead, since that
// dialogue type alternates two model-authored turns rather than replying to
// a single one.
func (o *Orchestrator) ProcessInput(ctx context.Context, userID, sessionID, text string, callerContext map[string]any) (*Result, error) {
	session, err := o.resolveSession(ctx, userID, sessionID, callerContext)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	strategy := o.strategyFor(session.DialogueType)

	if session.DialogueType == store.AIAI {
		return o.processAIAIExchange(ctx, session, text, callerContext, strategy)
	}

	history, err := o.store.GetTurns(ctx, session.ID, 0, "")
	if err != nil {
		history = nil
	}

	humanRole, aiRole := strategy.buildRoles()

	humanTurn, err := o.store.CreateTurn(ctx, session.ID, humanRole, text, nil)
	result := &Result{SessionID: session.ID, Timestamp: time.Now()}
	if err != nil || (humanTurn != nil && humanTurn.IsFallback()) {
		result.Fallback = true
	}
	if humanTurn == nil {
		humanTurn = &store.Turn{ID: store.NewID(), SessionID: session.ID, Role: humanRole, Content: text}
	}

	if o.scheduler != nil {
		o.scheduler.OnHumanTurn(session.UserID, session.ID)
	}

	messages := contextassembler.Build(append(history, humanTurn), text, callerContext, session.DialogueType, o.contextOptions)
	result.ContextUsed = len(callerContext) > 0

	reply, toolsUsed, toolResult, genErr := o.generateWithOptionalTool(ctx, messages, text)
	result.ToolsUsed = toolsUsed
	if genErr != nil {
		reply = fmt.Sprintf(fallbackReplyFormat, text)
		result.ModelFallback = true
		if isDeadlineErr(ctx, genErr) {
			result.Timeout = true
		}
	}
	result.Reply = reply

	// At most one tool turn is committed, between the human turn already
	// recorded above and the AI turn below that consumed its result.
	if len(toolsUsed) > 0 {
		toolMeta := map[string]any{"tool": toolsUsed[0]}
		if _, err := o.store.CreateTurn(ctx, session.ID, store.RoleTool, toolResult, toolMeta); err != nil {
			result.Fallback = true
		}
	}

	aiMeta := map[string]any{}
	if result.ContextUsed {
		aiMeta["contextUsed"] = true
	}
	if len(toolsUsed) > 0 {
		aiMeta["toolsUsed"] = toolsUsed
	}
	if isGroupDialogue(session.DialogueType) {
		if participants := participantsOf(session); len(participants) > 0 {
			aiMeta["recipient"] = selectRecipient(participants, countAITurns(history))
		}
	}
	aiTurn, err := o.store.CreateTurn(ctx, session.ID, aiRole, reply, aiMeta)
	if err != nil || (aiTurn != nil && aiTurn.IsFallback()) {
		result.Fallback = true
	}
	if aiTurn != nil {
		result.TurnID = aiTurn.ID
	} else {
		result.TurnID = store.NewID()
	}

	if err := o.store.UpdateSessionActivity(ctx, session.ID, time.Now()); err != nil {
		result.Fallback = true
	}

	return result, nil
}

// processAIAIExchange commits text as the opening turn of an AI_AI session,
// under the initiator persona, then alternates the initiator and responder
// personas — each a separate model call with its own system prompt —
// committing one AI turn per exchange until strategy.shouldContinue reports
// the turn budget is spent.
func (o *Orchestrator) processAIAIExchange(ctx context.Context, session *store.Session, text string, callerContext map[string]any, strategy turnStrategy) (*Result, error) {
	history, err := o.store.GetTurns(ctx, session.ID, 0, "")
	if err != nil {
		history = nil
	}

	result := &Result{SessionID: session.ID, Timestamp: time.Now()}

	seedTurn, err := o.store.CreateTurn(ctx, session.ID, store.RoleAI, text, map[string]any{"persona": aiPersonaInitiator})
	if err != nil || (seedTurn != nil && seedTurn.IsFallback()) {
		result.Fallback = true
	}
	if seedTurn == nil {
		seedTurn = &store.Turn{ID: store.NewID(), SessionID: session.ID, Role: store.RoleAI, Content: text}
	}

	if o.scheduler != nil {
		o.scheduler.OnHumanTurn(session.UserID, session.ID)
	}

	turns := append(history, seedTurn)
	persona := aiPersonaResponder
	var allTools []string
	turnCount := 0
	result.TurnID = seedTurn.ID
	result.Reply = seedTurn.Content

	for strategy.shouldContinue(turnCount) {
		promptText := lastTurnContent(turns)
		messages := contextassembler.Build(turns, promptText, callerContext, session.DialogueType, o.contextOptions)
		messages = append(messages, llm.SystemMessage(personaPrompt(persona)))

		reply, toolsUsed, toolResult, genErr := o.generateWithOptionalTool(ctx, messages, promptText)
		if genErr != nil {
			reply = fmt.Sprintf(fallbackReplyFormat, promptText)
			result.ModelFallback = true
			if isDeadlineErr(ctx, genErr) {
				result.Timeout = true
			}
		}

		if len(toolsUsed) > 0 {
			toolMeta := map[string]any{"tool": toolsUsed[0]}
			if _, err := o.store.CreateTurn(ctx, session.ID, store.RoleTool, toolResult, toolMeta); err != nil {
				result.Fallback = true
			}
			allTools = append(allTools, toolsUsed...)
		}

		aiTurn, err := o.store.CreateTurn(ctx, session.ID, store.RoleAI, reply, map[string]any{"persona": persona})
		if err != nil || (aiTurn != nil && aiTurn.IsFallback()) {
			result.Fallback = true
		}
		if aiTurn == nil {
			aiTurn = &store.Turn{ID: store.NewID(), SessionID: session.ID, Role: store.RoleAI, Content: reply}
		}
		turns = append(turns, aiTurn)
		result.Reply = reply
		result.TurnID = aiTurn.ID

		turnCount++
		persona = otherPersona(persona)
	}

	result.ToolsUsed = allTools
	result.ContextUsed = len(callerContext) > 0

	if err := o.store.UpdateSessionActivity(ctx, session.ID, time.Now()); err != nil {
		result.Fallback = true
	}

	return result, nil
}

// resolveSession returns the session for sessionID, or creates a new one
// owned by userID when sessionID is empty or does not resolve.
func (o *Orchestrator) resolveSession(ctx context.Context, userID, sessionID string, callerContext map[string]any) (*store.Session, error) {
	if sessionID != "" {
		if session, err := o.store.GetSession(ctx, sessionID); err == nil {
			return session, nil
		}
	}

	title := "New conversation"
	if t, ok := callerContext["title"].(string); ok && t != "" {
		title = t
	}
	return o.store.CreateSession(ctx, userID, title, store.DefaultDialogueType, nil)
}

var errNoModelClient = fmt.Errorf("no model client configured")

// generateWithOptionalTool runs the tool-decision step, then a single or
// re-prompted Generate call depending on whether a tool fired. Every model
// call is bounded by modelclient.DefaultDeadline, applied here at the call
// site rather than inside the client. toolResult is non-empty only when a
// tool actually ran, so the caller can commit it as a tool-role turn.
func (o *Orchestrator) generateWithOptionalTool(ctx context.Context, messages []llm.Message, userText string) (reply string, toolsUsed []string, toolResult string, err error) {
	if o.model == nil {
		return "", nil, "", errNoModelClient
	}

	generate := func(msgs []llm.Message) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, modelclient.DefaultDeadline)
		defer cancel()
		text, _, genErr := o.model.Generate(callCtx, msgs, modelclient.Options{})
		return text, genErr
	}

	if o.invoker == nil || o.registry == nil {
		reply, err = generate(messages)
		return reply, nil, "", err
	}

	decision, decideErr := o.invoker.Decide(ctx, userText, o.registry.List())
	if decideErr != nil || decision.Tool == "" {
		reply, err = generate(messages)
		return reply, nil, "", err
	}

	result, _ := o.invoker.Run(decision.Tool, "", decision.Args)
	extended := append(messages, llm.Message{Role: llm.RoleTool, Content: []llm.ContentPart{llm.TextPart(result)}})
	reply, err = generate(extended)
	return reply, []string{decision.Tool}, result, err
}

func (o *Orchestrator) strategyFor(dt store.DialogueType) turnStrategy {
	if s, ok := o.strategies[dt]; ok {
		return s
	}
	return o.strategies[store.DefaultDialogueType]
}

// isDeadlineErr reports whether err (from a model call) or ctx itself
// indicates a deadline was exceeded.
func isDeadlineErr(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded
}

func lastTurnContent(turns []*store.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].Content
}
