// Package session holds the per-user state container: the current step of
// the flow and the engine owning that user's plan and logs.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"adaptive-meal-planner/internal/engine"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
)

var (
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionNotFound = errors.New("session not found")
	// ErrNoProfile is returned by Regenerate before any profile was submitted.
	ErrNoProfile = errors.New("no profile submitted yet")
)

// Step is where the user currently is in the flow.
type Step string

const (
	StepProfile    Step = "profile"
	StepGenerating Step = "generating"
	StepPlan       Step = "plan"
)

// Session is created at session start and torn down by Close. A profile
// submission resets its plan and logs; nothing is persisted.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine *engine.Engine

	mu         sync.Mutex
	step       Step
	closed     bool
	lastAccess time.Time
	subs       map[int]chan State
	nextSub    int
}

// State is a point-in-time view of a session for display.
type State struct {
	ID               string    `json:"sessionId"`
	Step             Step      `json:"step"`
	HasPlan          bool      `json:"hasPlan"`
	LoggedDays       int       `json:"loggedDays"`
	HasAnalysis      bool      `json:"hasAnalysis"`
	AnalysisInFlight bool      `json:"analysisInFlight"`
	CreatedAt        time.Time `json:"createdAt"`
	LastAccess       time.Time `json:"lastAccess"`
}

func New(id string, gateway engine.Gateway, opts ...engine.Option) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         id,
		CreatedAt:  now,
		engine:     engine.New(gateway, opts...),
		step:       StepProfile,
		lastAccess: now,
		subs:       make(map[int]chan State),
	}
}

// Step returns the current step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SubmitProfile generates a fresh plan for p. On any failure the session
// goes back to the step it was on.
func (s *Session) SubmitProfile(ctx context.Context, p profile.Profile) (planner.WeeklyPlan, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return planner.WeeklyPlan{}, ErrSessionClosed
	}
	if s.step == StepGenerating {
		s.mu.Unlock()
		return planner.WeeklyPlan{}, engine.ErrGenerationInProgress
	}
	prev := s.step
	s.step = StepGenerating
	s.mu.Unlock()
	s.publish()

	// The engine owns the busy slot; a log analysis that got in first
	// rejects this call and the step is restored below.
	plan, err := s.engine.Generate(ctx, p)

	s.mu.Lock()
	if s.step == StepGenerating {
		if err != nil {
			s.step = prev
		} else {
			s.step = StepPlan
		}
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		return planner.WeeklyPlan{}, err
	}
	return plan, nil
}

// Regenerate asks for a new plan from the profile the current plan was built on.
func (s *Session) Regenerate(ctx context.Context) (planner.WeeklyPlan, error) {
	p, ok := s.engine.Profile()
	if !ok {
		return planner.WeeklyPlan{}, ErrNoProfile
	}
	return s.SubmitProfile(ctx, p)
}

// EditProfile returns to the profile step. The current plan stays until a
// new one is generated.
func (s *Session) EditProfile() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.step == StepGenerating {
		s.mu.Unlock()
		return engine.ErrGenerationInProgress
	}
	s.step = StepProfile
	s.mu.Unlock()
	s.publish()
	return nil
}

func (s *Session) SubmitLog(ctx context.Context, dayLog planner.DailyLog) (planner.AdjustmentResult, error) {
	if err := s.checkOpen(); err != nil {
		return planner.AdjustmentResult{}, err
	}
	adj, err := s.engine.SubmitLog(ctx, dayLog)
	if !errors.Is(err, engine.ErrAnalysisInProgress) {
		s.publish()
	}
	return adj, err
}

func (s *Session) DismissAnalysis() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.engine.DismissAnalysis()
	s.publish()
	return nil
}

// Engine exposes the read accessors of the session's engine.
func (s *Session) Engine() (*engine.Engine, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.engine, nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, hasPlan := s.engine.Plan()
	_, hasAnalysis := s.engine.PendingAnalysis()
	return State{
		ID:               s.ID,
		Step:             s.step,
		HasPlan:          hasPlan,
		LoggedDays:       len(s.engine.Logs()),
		HasAnalysis:      hasAnalysis,
		AnalysisInFlight: s.engine.AnalysisInFlight(),
		CreatedAt:        s.CreatedAt,
		LastAccess:       s.lastAccess,
	}
}

// Close tears the session down and ends every subscription. It is safe to
// call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Subscribe returns a channel receiving the session state after every
// change. Slow readers miss intermediate states. The channel is closed by
// cancel or when the session closes.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan State, 4)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) publish() {
	st := s.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now().UTC()
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}
