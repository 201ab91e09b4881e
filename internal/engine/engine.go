// Package engine owns the authoritative weekly plan and daily logs of a
// session and merges coach revisions into the plan.
package engine

import (
	"context"
	"errors"
	"log"
	"sync"

	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/shared"
)

var (
	// ErrNoPlan is returned by SubmitLog before any plan was generated.
	ErrNoPlan = errors.New("no meal plan generated yet")
	// ErrAnalysisInProgress is returned by SubmitLog while a generation call is outstanding.
	ErrAnalysisInProgress = errors.New("an analysis is already in progress")
	// ErrGenerationInProgress is returned by Generate while a generation call is outstanding.
	ErrGenerationInProgress = errors.New("a generation request is already in progress")
)

// Gateway is the generation backend as seen by the engine.
type Gateway interface {
	RequestWeeklyPlan(ctx context.Context, p profile.Profile) (planner.NutritionistResult, error)
	RequestDayAdjustment(ctx context.Context, p profile.Profile, plannedDay planner.DailyPlan, dayLog planner.DailyLog) (planner.CoachResult, error)
}

// UsageRecorder receives the metadata of every backend call.
type UsageRecorder interface {
	RecordMeta(meta shared.AgentMeta) error
}

type operation int

const (
	opNone operation = iota
	opGenerating
	opAnalyzing
)

// Engine is safe for concurrent use. At most one gateway call is
// outstanding at a time; the mutex is never held across that call.
type Engine struct {
	gateway  Gateway
	recorder UsageRecorder

	mu      sync.Mutex
	busy    operation
	plan    *planner.WeeklyPlan
	profile *profile.Profile
	logs    map[int]planner.DailyLog
	pending *planner.AdjustmentResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithUsageRecorder makes the engine report backend usage to r.
func WithUsageRecorder(r UsageRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func New(gateway Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway: gateway,
		logs:    make(map[int]planner.DailyLog),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate requests a new weekly plan for p. On success the plan replaces the
// current one and all logs and any pending analysis are discarded. On failure
// the engine state is left exactly as it was.
func (e *Engine) Generate(ctx context.Context, p profile.Profile) (planner.WeeklyPlan, error) {
	e.mu.Lock()
	if e.busy != opNone {
		e.mu.Unlock()
		return planner.WeeklyPlan{}, ErrGenerationInProgress
	}
	e.busy = opGenerating
	e.mu.Unlock()

	p = p.Clone()
	res, err := e.gateway.RequestWeeklyPlan(ctx, p)
	e.record(res.Meta)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = opNone
	if err != nil {
		return planner.WeeklyPlan{}, err
	}
	if res.Plan == nil {
		return planner.WeeklyPlan{}, planner.ErrMalformedResponse
	}

	plan := res.Plan.Clone()
	e.plan = &plan
	e.profile = &p
	e.logs = make(map[int]planner.DailyLog)
	e.pending = nil
	return plan.Clone(), nil
}

// SubmitLog records dayLog and asks the coach to analyze it against the plan
// entry currently stored for that day. The log is kept even when the analysis
// fails. A revision replaces the content of the following day, keeping its
// label; on the last day nothing in the plan changes.
func (e *Engine) SubmitLog(ctx context.Context, dayLog planner.DailyLog) (planner.AdjustmentResult, error) {
	e.mu.Lock()
	if e.busy != opNone {
		e.mu.Unlock()
		return planner.AdjustmentResult{}, ErrAnalysisInProgress
	}
	if e.plan == nil {
		e.mu.Unlock()
		return planner.AdjustmentResult{}, ErrNoPlan
	}
	if err := dayLog.Validate(len(e.plan.Days)); err != nil {
		e.mu.Unlock()
		return planner.AdjustmentResult{}, err
	}

	dayLog = dayLog.Clone()
	idx := dayLog.DayIndex
	e.logs[idx] = dayLog
	e.busy = opAnalyzing
	plannedDay := e.plan.Days[idx].Clone()
	p := e.profile.Clone()
	e.mu.Unlock()

	res, err := e.gateway.RequestDayAdjustment(ctx, p, plannedDay, dayLog.Clone())
	e.record(res.Meta)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.busy = opNone
	if err != nil {
		return planner.AdjustmentResult{}, err
	}
	if res.Adjustment == nil {
		return planner.AdjustmentResult{}, planner.ErrMalformedResponse
	}

	adj := res.Adjustment.Clone()
	e.pending = &adj
	if rev, ok := adj.Revision(); ok && idx+1 < len(e.plan.Days) {
		revised, err := e.plan.WithRevisedDay(idx+1, rev)
		if err != nil {
			return planner.AdjustmentResult{}, err
		}
		e.plan = &revised
	}
	return adj.Clone(), nil
}

// DismissAnalysis clears the pending analysis. Plan and logs are untouched.
func (e *Engine) DismissAnalysis() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// Plan returns a copy of the current plan.
func (e *Engine) Plan() (planner.WeeklyPlan, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plan == nil {
		return planner.WeeklyPlan{}, false
	}
	return e.plan.Clone(), true
}

// Logs returns a copy of every recorded log keyed by day index.
func (e *Engine) Logs() map[int]planner.DailyLog {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]planner.DailyLog, len(e.logs))
	for k, v := range e.logs {
		out[k] = v.Clone()
	}
	return out
}

// Log returns the log recorded for dayIndex, if any.
func (e *Engine) Log(dayIndex int) (planner.DailyLog, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.logs[dayIndex]
	if !ok {
		return planner.DailyLog{}, false
	}
	return l.Clone(), true
}

func (e *Engine) PendingAnalysis() (planner.AdjustmentResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return planner.AdjustmentResult{}, false
	}
	return e.pending.Clone(), true
}

// Profile returns the profile the current plan was generated from.
func (e *Engine) Profile() (profile.Profile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return profile.Profile{}, false
	}
	return e.profile.Clone(), true
}

// Busy reports whether any gateway call is outstanding.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy != opNone
}

// AnalysisInFlight reports whether a log analysis is outstanding.
func (e *Engine) AnalysisInFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy == opAnalyzing
}

func (e *Engine) record(meta shared.AgentMeta) {
	if e.recorder == nil || !meta.HasUsage() {
		return
	}
	if err := e.recorder.RecordMeta(meta); err != nil {
		log.Printf("failed to record metrics for %s: %v", meta.AgentName, err)
	}
}
