// ABOUTME: Scheduler runs a single-goroutine tick loop evaluating shouldExpress per enabled
// ABOUTME: user, plans/generates/queues a chosen expression, and fires it unless dedup-cancelled
// ABOUTME: by an intervening human turn on the same session.

package proactive

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/2389-research/dialogued/llm"
	"github.com/2389-research/dialogued/modelclient"
	"github.com/2389-research/dialogued/store"
)

// defaultTickPeriod is how often the scheduler scans enabled users.
const defaultTickPeriod = time.Minute

// dispatchQueueCapacity bounds the outbound push queue; a full queue drops
// the oldest pending item.
const dispatchQueueCapacity = 128

// Scheduler owns the proactive-expression pipeline: per-user settings, the
// tick loop, the bounded dispatch queue, and daily-cap bookkeeping.
type Scheduler struct {
	store store.Store
	model modelclient.Client

	settings sync.Map // userID -> UserSettings

	mu      sync.Mutex
	pending map[string]*Expression // sessionID -> queued expression, for dedup
	sentToday map[string]int       // userID+date -> count fired today

	fired chan Dispatch

	tickPeriod time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewScheduler constructs a Scheduler bound to st and model. Call Run to
// begin the tick loop.
func NewScheduler(st store.Store, model modelclient.Client) *Scheduler {
	return &Scheduler{
		store:      st,
		model:      model,
		pending:    make(map[string]*Expression),
		sentToday:  make(map[string]int),
		fired:      make(chan Dispatch, dispatchQueueCapacity),
		tickPeriod: defaultTickPeriod,
		stop:       make(chan struct{}),
	}
}

// Fired is the channel the HTTP boundary drains to push
// {type:"proactive_expression", ...} frames to subscribed websocket clients.
func (s *Scheduler) Fired() <-chan Dispatch {
	return s.fired
}

// SetSettings enables or reconfigures proactive behavior for userID.
func (s *Scheduler) SetSettings(userID string, settings UserSettings) {
	s.settings.Store(userID, settings)
}

// GetSettings returns the current settings for userID, or the zero value
// (Enabled: false) if none were ever set.
func (s *Scheduler) GetSettings(userID string) UserSettings {
	if v, ok := s.settings.Load(userID); ok {
		return v.(UserSettings)
	}
	return UserSettings{}
}

// Run starts the tick loop until ctx is cancelled or Stop is called.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickPeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop ends the tick loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// tick evaluates every user with settings registered.
func (s *Scheduler) tick(ctx context.Context) {
	s.settings.Range(func(key, value any) bool {
		userID := key.(string)
		settings := value.(UserSettings)
		if !settings.Enabled {
			return true
		}
		s.evaluateUser(ctx, userID, settings)
		return true
	})
}

func (s *Scheduler) evaluateUser(ctx context.Context, userID string, settings UserSettings) {
	sessions, err := s.store.ListSessionsByUser(ctx, userID, 1, 0)
	if err != nil || len(sessions) == 0 {
		return
	}
	session := sessions[0]

	signals := s.sampleSignals(ctx, session)
	today := dayKey(userID, signals.Now)

	s.mu.Lock()
	sentToday := s.sentToday[today]
	s.mu.Unlock()

	ok, expressionType, _ := shouldExpress(signals, settings, sentToday)
	if !ok {
		return
	}

	stage := StageForCount(signals.InteractionCount)
	content := s.planAndGenerate(ctx, expressionType, stage, signals)

	expr := &Expression{
		ID:          store.NewID(),
		UserID:      userID,
		SessionID:   session.ID,
		Type:        expressionType,
		Stage:       stage,
		Content:     content,
		State:       StateGenerated,
		ScheduledAt: time.Now(),
	}
	s.enqueue(expr)
}

// sampleSignals gathers the time/behavior/context/relationship signals for
// one session. Interaction count and silence duration are derived from the
// session's full turn history, read on every tick.
func (s *Scheduler) sampleSignals(ctx context.Context, session *store.Session) Signals {
	now := time.Now()
	turns, _ := s.store.GetTurns(ctx, session.ID, 0, "")

	lastHuman := session.CreatedAt
	topic := ""
	count := 0
	for _, t := range turns {
		if t.Role == store.RoleHuman {
			lastHuman = t.CreatedAt
			topic = t.Content
			count++
		}
	}

	return Signals{
		Now:              now,
		LastHumanTurnAt:  lastHuman,
		LocalHour:        now.Hour(),
		DialogueType:     string(session.DialogueType),
		RecentTopic:      topic,
		InteractionCount: count,
	}
}

// planAndGenerate builds the planner prompt and asks the model for the
// utterance text, falling back to a per-type template on any error.
func (s *Scheduler) planAndGenerate(ctx context.Context, t ExpressionType, stage Stage, signals Signals) string {
	if s.model == nil {
		return templateFor(t)
	}
	prompt := buildPlannerPrompt(t, stage, signals)
	text, _, err := s.model.Generate(ctx, []modelclient.Message{llm.UserMessage(prompt)}, modelclient.Options{})
	if err != nil || text == "" {
		return templateFor(t)
	}
	return text
}

// enqueue registers expr as the pending item for its session, dropping any
// prior pending item for that session and, if the queue is at capacity,
// dropping the oldest fired-channel entry before firing immediately.
func (s *Scheduler) enqueue(expr *Expression) {
	s.mu.Lock()
	if prev, ok := s.pending[expr.SessionID]; ok {
		prev.State = StateCancelled
	}
	expr.State = StateQueued
	s.pending[expr.SessionID] = expr
	s.mu.Unlock()

	s.fire(expr)
}

// OnHumanTurn cancels any pending proactive expression for sessionID,
// implementing the dedup rule: a human turn committed after queueing and
// before firing drops the queued utterance.
func (s *Scheduler) OnHumanTurn(userID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expr, ok := s.pending[sessionID]; ok && expr.State == StateQueued {
		expr.State = StateCancelled
		delete(s.pending, sessionID)
	}
}

// fire commits the AI turn and emits a Dispatch on the Fired channel, unless
// expr was cancelled between enqueue and this call.
func (s *Scheduler) fire(expr *Expression) {
	s.mu.Lock()
	current, ok := s.pending[expr.SessionID]
	cancelled := !ok || current != expr || current.State == StateCancelled
	if !cancelled {
		delete(s.pending, expr.SessionID)
	}
	s.mu.Unlock()

	if cancelled {
		return
	}

	ctx := context.Background()
	meta := map[string]any{"is_proactive": true, "expressionType": string(expr.Type)}
	if _, err := s.store.CreateTurn(ctx, expr.SessionID, store.RoleAI, expr.Content, meta); err != nil {
		log.Printf("component=proactive action=fire kind=commit_failed session_id=%s message=%q", expr.SessionID, err)
	}

	expr.State = StateFired
	s.mu.Lock()
	s.sentToday[dayKey(expr.UserID, time.Now())]++
	s.mu.Unlock()

	select {
	case s.fired <- Dispatch{UserID: expr.UserID, SessionID: expr.SessionID, Content: expr.Content, Type: expr.Type, Metadata: meta}:
	default:
		// Fired channel full: drop the oldest queued push and retry once.
		select {
		case <-s.fired:
		default:
		}
		select {
		case s.fired <- Dispatch{UserID: expr.UserID, SessionID: expr.SessionID, Content: expr.Content, Type: expr.Type, Metadata: meta}:
		default:
		}
	}
}

// Trigger forces an expression of the given type for (userID, sessionID),
// bypassing the tick decision but still enforcing the daily cap. Used by the
// explicit /api/frequency/trigger endpoint.
func (s *Scheduler) Trigger(ctx context.Context, userID, sessionID string, t ExpressionType) (*Dispatch, bool) {
	settings := s.GetSettings(userID)
	now := time.Now()
	today := dayKey(userID, now)

	s.mu.Lock()
	sentToday := s.sentToday[today]
	s.mu.Unlock()

	turns, _ := s.store.GetTurns(ctx, sessionID, 0, "")
	count := 0
	for _, turn := range turns {
		if turn.Role == store.RoleHuman {
			count++
		}
	}
	stage := StageForCount(count)
	if sentToday >= settings.dailyCap(stage) {
		return nil, false
	}

	content := s.planAndGenerate(ctx, t, stage, Signals{Now: now, InteractionCount: count})
	meta := map[string]any{"is_proactive": true, "expressionType": string(t), "triggered": true}
	if _, err := s.store.CreateTurn(ctx, sessionID, store.RoleAI, content, meta); err != nil {
		log.Printf("component=proactive action=trigger kind=commit_failed session_id=%s message=%q", sessionID, err)
	}

	s.mu.Lock()
	s.sentToday[today]++
	s.mu.Unlock()

	dispatch := Dispatch{UserID: userID, SessionID: sessionID, Content: content, Type: t, Metadata: meta}
	select {
	case s.fired <- dispatch:
	default:
		// Fired channel full: drop the oldest queued push and retry once.
		select {
		case <-s.fired:
		default:
		}
		select {
		case s.fired <- dispatch:
		default:
		}
	}
	return &dispatch, true
}

func dayKey(userID string, t time.Time) string {
	return userID + "|" + t.Format("2006-01-02")
}
