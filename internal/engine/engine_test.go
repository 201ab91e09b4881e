package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/shared"
)

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func samplePlan(tag string) *planner.WeeklyPlan {
	plan := &planner.WeeklyPlan{WeeklyAdvice: "advice " + tag}
	for i, label := range weekdays {
		plan.Days = append(plan.Days, planner.DailyPlan{
			DayLabel: label,
			DayContent: planner.DayContent{
				Breakfast: []planner.MealItem{{Name: fmt.Sprintf("%s breakfast %d", tag, i), Portion: "1 bowl"}},
				Lunch:     []planner.MealItem{{Name: fmt.Sprintf("%s lunch %d", tag, i), Portion: "1 plate"}},
				Dinner:    []planner.MealItem{},
				Snacks:    []planner.MealItem{},
				Summary:   fmt.Sprintf("%s summary %d", tag, i),
				Tip:       "tip",
			},
		})
	}
	return plan
}

func revision(tag string) *planner.DayContent {
	return &planner.DayContent{
		Breakfast: []planner.MealItem{{Name: tag + " yogurt", Portion: "200g"}},
		Lunch:     []planner.MealItem{},
		Dinner:    []planner.MealItem{{Name: tag + " soup", Portion: "1 bowl"}},
		Snacks:    []planner.MealItem{},
		Summary:   tag + " revised",
	}
}

func testProfile() profile.Profile {
	return profile.Profile{
		HeightCM: 180, WeightKG: 82, Age: 40, Gender: profile.GenderMale,
		MealsPerDay: 3, DiningStyle: "delivery", DietaryGoal: "build muscle",
	}
}

type adjustmentCall struct {
	plannedDay planner.DailyPlan
	dayLog     planner.DailyLog
}

// fakeGateway returns queued results in order.
type fakeGateway struct {
	mu          sync.Mutex
	plans       []*planner.WeeklyPlan
	planErr     error
	adjustments []*planner.AdjustmentResult
	adjustErr   error
	calls       []adjustmentCall
}

func (f *fakeGateway) RequestWeeklyPlan(ctx context.Context, p profile.Profile) (planner.NutritionistResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta := shared.AgentMeta{AgentName: "Nutritionist", Usage: shared.TokenUsage{PromptTokens: 10, CompletionTokens: 20}}
	if f.planErr != nil {
		return planner.NutritionistResult{Meta: meta}, f.planErr
	}
	plan := f.plans[0]
	if len(f.plans) > 1 {
		f.plans = f.plans[1:]
	}
	return planner.NutritionistResult{Plan: plan, Meta: meta}, nil
}

func (f *fakeGateway) RequestDayAdjustment(ctx context.Context, p profile.Profile, plannedDay planner.DailyPlan, dayLog planner.DailyLog) (planner.CoachResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, adjustmentCall{plannedDay: plannedDay, dayLog: dayLog})
	meta := shared.AgentMeta{AgentName: "Coach", Usage: shared.TokenUsage{PromptTokens: 5, CompletionTokens: 7}}
	if f.adjustErr != nil {
		return planner.CoachResult{Meta: meta}, f.adjustErr
	}
	adj := f.adjustments[0]
	if len(f.adjustments) > 1 {
		f.adjustments = f.adjustments[1:]
	}
	return planner.CoachResult{Adjustment: adj, Meta: meta}, nil
}

// blockingGateway parks every call until release is closed.
type blockingGateway struct {
	inner   *fakeGateway
	entered chan struct{}
	release chan struct{}
}

func newBlockingGateway(inner *fakeGateway) *blockingGateway {
	return &blockingGateway{inner: inner, entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingGateway) RequestWeeklyPlan(ctx context.Context, p profile.Profile) (planner.NutritionistResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.RequestWeeklyPlan(ctx, p)
}

func (b *blockingGateway) RequestDayAdjustment(ctx context.Context, p profile.Profile, plannedDay planner.DailyPlan, dayLog planner.DailyLog) (planner.CoachResult, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.RequestDayAdjustment(ctx, p, plannedDay, dayLog)
}

type recorderStub struct {
	metas []shared.AgentMeta
}

func (r *recorderStub) RecordMeta(meta shared.AgentMeta) error {
	r.metas = append(r.metas, meta)
	return nil
}

func generated(t *testing.T, gw Gateway, opts ...Option) *Engine {
	t.Helper()
	e := New(gw, opts...)
	_, err := e.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	return e
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("ReplacesPlanAndClearsTracking", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("first"), samplePlan("second")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s"}},
		}
		e := generated(t, gw)
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 2})
		require.NoError(t, err)

		plan, err := e.Generate(ctx, testProfile())
		require.NoError(t, err)

		assert.Len(t, plan.Days, planner.DaysPerWeek)
		assert.Equal(t, "advice second", plan.WeeklyAdvice)
		for _, d := range plan.Days {
			assert.NotEmpty(t, d.Summary)
		}
		assert.Empty(t, e.Logs())
		_, ok := e.PendingAnalysis()
		assert.False(t, ok)
	})

	t.Run("FailureLeavesStateIntact", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("first")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s", RevisedNextDay: revision("r")}},
		}
		e := generated(t, gw)
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0, Notes: "kept"})
		require.NoError(t, err)

		planBefore, _ := e.Plan()
		logsBefore := e.Logs()
		pendingBefore, _ := e.PendingAnalysis()

		gw.planErr = &planner.BackendError{Agent: "Nutritionist", Err: errors.New("503")}
		_, err = e.Generate(ctx, testProfile())
		require.ErrorIs(t, err, planner.ErrBackend)

		planAfter, _ := e.Plan()
		pendingAfter, ok := e.PendingAnalysis()
		assert.Equal(t, planBefore, planAfter)
		assert.Equal(t, logsBefore, e.Logs())
		assert.True(t, ok)
		assert.Equal(t, pendingBefore, pendingAfter)
		assert.False(t, e.Busy())
	})

	t.Run("Unavailable", func(t *testing.T) {
		e := New(planner.NewGateway(nil))
		_, err := e.Generate(ctx, testProfile())
		require.ErrorIs(t, err, planner.ErrGenerationUnavailable)
		_, ok := e.Plan()
		assert.False(t, ok)
	})

	t.Run("RecordsUsage", func(t *testing.T) {
		rec := &recorderStub{}
		generated(t, &fakeGateway{plans: []*planner.WeeklyPlan{samplePlan("x")}}, WithUsageRecorder(rec))
		require.Len(t, rec.metas, 1)
		assert.Equal(t, "Nutritionist", rec.metas[0].AgentName)
	})

	t.Run("ReturnedPlanIsACopy", func(t *testing.T) {
		e := New(&fakeGateway{plans: []*planner.WeeklyPlan{samplePlan("x")}})
		plan, err := e.Generate(ctx, testProfile())
		require.NoError(t, err)
		plan.Days[0].Summary = "mutated"

		stored, _ := e.Plan()
		assert.Equal(t, "x summary 0", stored.Days[0].Summary)
	})
}

func TestSubmitLog(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPlan", func(t *testing.T) {
		e := New(&fakeGateway{})
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
		require.ErrorIs(t, err, ErrNoPlan)
		assert.Empty(t, e.Logs())
	})

	t.Run("InvalidLog", func(t *testing.T) {
		e := generated(t, &fakeGateway{plans: []*planner.WeeklyPlan{samplePlan("x")}})
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 7})
		require.ErrorIs(t, err, planner.ErrInvalidLog)
		assert.Empty(t, e.Logs())
	})

	t.Run("RevisionReplacesOnlyNextDay", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s", RevisedNextDay: revision("r")}},
		}
		e := generated(t, gw)
		before, _ := e.Plan()

		adj, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
		require.NoError(t, err)
		assert.Equal(t, "a", adj.Analysis)

		after, _ := e.Plan()
		assert.Equal(t, "Tuesday", after.Days[1].DayLabel)
		assert.Equal(t, *revision("r"), after.Days[1].DayContent)
		for j := range after.Days {
			if j != 1 {
				assert.Equal(t, before.Days[j], after.Days[j], "day %d changed", j)
			}
		}
		assert.Equal(t, before.WeeklyAdvice, after.WeeklyAdvice)
	})

	t.Run("LastDayNeverMutatesPlan", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s", RevisedNextDay: revision("r")}},
		}
		e := generated(t, gw)
		before, _ := e.Plan()

		adj, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 6})
		require.NoError(t, err)
		_, hasRevision := adj.Revision()
		assert.True(t, hasRevision)

		after, _ := e.Plan()
		assert.Equal(t, before, after)
	})

	t.Run("NoRevisionLeavesPlan", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s"}},
		}
		e := generated(t, gw)
		before, _ := e.Plan()

		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 3})
		require.NoError(t, err)

		after, _ := e.Plan()
		assert.Equal(t, before, after)
		pending, ok := e.PendingAnalysis()
		require.True(t, ok)
		assert.Equal(t, "s", pending.Suggestions)
	})

	t.Run("LabelSurvivesRepeatedRevisions", func(t *testing.T) {
		gw := &fakeGateway{
			plans: []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{
				{Analysis: "a1", Suggestions: "s1", RevisedNextDay: revision("first")},
				{Analysis: "a2", Suggestions: "s2", RevisedNextDay: revision("second")},
			},
		}
		e := generated(t, gw)

		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 2})
		require.NoError(t, err)
		_, err = e.SubmitLog(ctx, planner.DailyLog{DayIndex: 2})
		require.NoError(t, err)

		plan, _ := e.Plan()
		assert.Equal(t, "Thursday", plan.Days[3].DayLabel)
		assert.Equal(t, "second revised", plan.Days[3].Summary)
	})

	t.Run("ReadsCurrentRevisedDay", func(t *testing.T) {
		gw := &fakeGateway{
			plans: []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{
				{Analysis: "a1", Suggestions: "s1", RevisedNextDay: revision("r")},
				{Analysis: "a2", Suggestions: "s2"},
			},
		}
		e := generated(t, gw)

		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
		require.NoError(t, err)
		_, err = e.SubmitLog(ctx, planner.DailyLog{DayIndex: 1})
		require.NoError(t, err)

		require.Len(t, gw.calls, 2)
		assert.Equal(t, "Tuesday", gw.calls[1].plannedDay.DayLabel)
		assert.Equal(t, "r revised", gw.calls[1].plannedDay.Summary)
	})

	t.Run("SecondLogReplacesFirst", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s"}},
		}
		e := generated(t, gw)
		sleep := 7.0

		_, err := e.SubmitLog(ctx, planner.DailyLog{
			DayIndex:     4,
			ActualLunch:  []planner.LoggedMealItem{{Name: "Burger", Quantity: 1, Unit: "piece"}},
			SleepHours:   &sleep,
			SleepQuality: "good",
			Notes:        "first",
		})
		require.NoError(t, err)
		second := planner.DailyLog{DayIndex: 4, WaterIntakeML: 2000, Notes: "second"}
		_, err = e.SubmitLog(ctx, second)
		require.NoError(t, err)

		logs := e.Logs()
		require.Len(t, logs, 1)
		assert.Equal(t, second, logs[4])
	})

	t.Run("FailureKeepsLog", func(t *testing.T) {
		gw := &fakeGateway{plans: []*planner.WeeklyPlan{samplePlan("x")}}
		e := generated(t, gw)
		before, _ := e.Plan()
		gw.adjustErr = &planner.ShapeError{Agent: "Coach", Path: "$.analysis", Problem: "is required"}

		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 1, Notes: "keep me"})
		require.ErrorIs(t, err, planner.ErrMalformedResponse)

		logged, ok := e.Log(1)
		require.True(t, ok)
		assert.Equal(t, "keep me", logged.Notes)
		_, ok = e.PendingAnalysis()
		assert.False(t, ok)
		after, _ := e.Plan()
		assert.Equal(t, before, after)
		assert.False(t, e.AnalysisInFlight())
	})

	t.Run("DismissAnalysis", func(t *testing.T) {
		gw := &fakeGateway{
			plans:       []*planner.WeeklyPlan{samplePlan("x")},
			adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s", RevisedNextDay: revision("r")}},
		}
		e := generated(t, gw)
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
		require.NoError(t, err)
		plan, _ := e.Plan()

		e.DismissAnalysis()

		_, ok := e.PendingAnalysis()
		assert.False(t, ok)
		after, _ := e.Plan()
		assert.Equal(t, plan, after)
		assert.Len(t, e.Logs(), 1)
	})
}

func TestBusyGuard(t *testing.T) {
	ctx := context.Background()
	gw := newBlockingGateway(&fakeGateway{
		plans:       []*planner.WeeklyPlan{samplePlan("x")},
		adjustments: []*planner.AdjustmentResult{{Analysis: "a", Suggestions: "s", RevisedNextDay: revision("r")}},
	})
	e := New(gw)

	// Let the initial generation through.
	go func() {
		<-gw.entered
		gw.release <- struct{}{}
	}()
	_, err := e.Generate(ctx, testProfile())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := e.SubmitLog(ctx, planner.DailyLog{DayIndex: 0, Notes: "first"})
		done <- err
	}()
	<-gw.entered

	assert.True(t, e.AnalysisInFlight())
	planBefore, _ := e.Plan()
	logsBefore := e.Logs()

	_, err = e.SubmitLog(ctx, planner.DailyLog{DayIndex: 3, Notes: "rejected"})
	require.ErrorIs(t, err, ErrAnalysisInProgress)
	_, err = e.Generate(ctx, testProfile())
	require.ErrorIs(t, err, ErrGenerationInProgress)

	planDuring, _ := e.Plan()
	assert.Equal(t, planBefore, planDuring)
	assert.Equal(t, logsBefore, e.Logs())

	close(gw.release)
	require.NoError(t, <-done)
	assert.False(t, e.Busy())
	_, ok := e.Log(3)
	assert.False(t, ok)
}
