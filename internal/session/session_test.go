package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adaptive-meal-planner/internal/engine"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
)

type stubGateway struct {
	planErr error
}

func (g *stubGateway) RequestWeeklyPlan(ctx context.Context, p profile.Profile) (planner.NutritionistResult, error) {
	if g.planErr != nil {
		return planner.NutritionistResult{}, g.planErr
	}
	plan := &planner.WeeklyPlan{WeeklyAdvice: p.DietaryGoal}
	for _, label := range []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"} {
		plan.Days = append(plan.Days, planner.DailyPlan{
			DayLabel:   label,
			DayContent: planner.DayContent{Summary: label + " summary"},
		})
	}
	return planner.NutritionistResult{Plan: plan}, nil
}

func (g *stubGateway) RequestDayAdjustment(ctx context.Context, p profile.Profile, plannedDay planner.DailyPlan, dayLog planner.DailyLog) (planner.CoachResult, error) {
	return planner.CoachResult{Adjustment: &planner.AdjustmentResult{Analysis: "ok", Suggestions: "more veg"}}, nil
}

// blockingGateway parks every call until release is closed.
type blockingGateway struct {
	stubGateway
	entered chan struct{}
	release chan struct{}
}

func newBlockingGateway() *blockingGateway {
	return &blockingGateway{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *blockingGateway) RequestWeeklyPlan(ctx context.Context, p profile.Profile) (planner.NutritionistResult, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.stubGateway.RequestWeeklyPlan(ctx, p)
}

func (g *blockingGateway) RequestDayAdjustment(ctx context.Context, p profile.Profile, plannedDay planner.DailyPlan, dayLog planner.DailyLog) (planner.CoachResult, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.stubGateway.RequestDayAdjustment(ctx, p, plannedDay, dayLog)
}

func validProfile(goal string) profile.Profile {
	return profile.Profile{
		HeightCM: 165, WeightKG: 60, Age: 28, Gender: profile.GenderOther,
		MealsPerDay: 4, DiningStyle: "cafeteria", DietaryGoal: goal,
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{}
	s := New("abc", gw)
	assert.Equal(t, StepProfile, s.Step())

	_, err := s.Regenerate(ctx)
	require.ErrorIs(t, err, ErrNoProfile)

	plan, err := s.SubmitProfile(ctx, validProfile("eat cleaner"))
	require.NoError(t, err)
	assert.Equal(t, "eat cleaner", plan.WeeklyAdvice)
	assert.Equal(t, StepPlan, s.Step())

	_, err = s.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
	require.NoError(t, err)
	st := s.State()
	assert.True(t, st.HasPlan)
	assert.True(t, st.HasAnalysis)
	assert.Equal(t, 1, st.LoggedDays)

	require.NoError(t, s.DismissAnalysis())
	assert.False(t, s.State().HasAnalysis)

	require.NoError(t, s.EditProfile())
	assert.Equal(t, StepProfile, s.Step())
	assert.True(t, s.State().HasPlan, "editing keeps the plan until regeneration")

	_, err = s.Regenerate(ctx)
	require.NoError(t, err)
	assert.Equal(t, StepPlan, s.Step())
	assert.Zero(t, s.State().LoggedDays)

	s.Close()
	_, err = s.SubmitProfile(ctx, validProfile("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.SubmitLog(ctx, planner.DailyLog{})
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.ErrorIs(t, s.EditProfile(), ErrSessionClosed)
	assert.ErrorIs(t, s.DismissAnalysis(), ErrSessionClosed)
	_, err = s.Engine()
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSubmitProfileFailureRestoresStep(t *testing.T) {
	ctx := context.Background()
	gw := &stubGateway{}
	s := New("abc", gw)

	gw.planErr = errors.New("boom")
	_, err := s.SubmitProfile(ctx, validProfile("x"))
	require.Error(t, err)
	assert.Equal(t, StepProfile, s.Step())

	gw.planErr = nil
	_, err = s.SubmitProfile(ctx, validProfile("x"))
	require.NoError(t, err)

	gw.planErr = errors.New("boom")
	_, err = s.Regenerate(ctx)
	require.Error(t, err)
	assert.Equal(t, StepPlan, s.Step())
	assert.True(t, s.State().HasPlan)
}

func TestSubmitProfileRejectedWhileAnalyzing(t *testing.T) {
	ctx := context.Background()
	gw := newBlockingGateway()
	s := New("abc", gw)

	go func() { <-gw.entered; gw.release <- struct{}{} }()
	_, err := s.SubmitProfile(ctx, validProfile("x"))
	require.NoError(t, err)
	require.Equal(t, StepPlan, s.Step())

	logDone := make(chan error, 1)
	go func() {
		_, err := s.SubmitLog(ctx, planner.DailyLog{DayIndex: 0})
		logDone <- err
	}()
	<-gw.entered

	_, err = s.SubmitProfile(ctx, validProfile("y"))
	require.ErrorIs(t, err, engine.ErrGenerationInProgress)
	assert.Equal(t, StepPlan, s.Step(), "a rejected submission must not leave the session generating")
	require.NoError(t, s.EditProfile())
	assert.Equal(t, StepProfile, s.Step())

	close(gw.release)
	require.NoError(t, <-logDone)
	assert.Equal(t, StepProfile, s.Step())
}

func TestSubmitProfileRejectedWhileGenerating(t *testing.T) {
	ctx := context.Background()
	gw := newBlockingGateway()
	s := New("abc", gw)

	genDone := make(chan error, 1)
	go func() {
		_, err := s.SubmitProfile(ctx, validProfile("first"))
		genDone <- err
	}()
	<-gw.entered
	require.Equal(t, StepGenerating, s.Step())

	_, err := s.SubmitProfile(ctx, validProfile("second"))
	require.ErrorIs(t, err, engine.ErrGenerationInProgress)
	assert.Equal(t, StepGenerating, s.Step())

	close(gw.release)
	require.NoError(t, <-genDone)
	assert.Equal(t, StepPlan, s.Step())
	p, ok := s.engine.Profile()
	require.True(t, ok)
	assert.Equal(t, "first", p.DietaryGoal)
}

func TestSubmitProfileUnavailable(t *testing.T) {
	s := New("abc", planner.NewGateway(nil))
	_, err := s.SubmitProfile(context.Background(), validProfile("x"))
	require.ErrorIs(t, err, planner.ErrGenerationUnavailable)
	assert.Equal(t, StepProfile, s.Step())
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	s := New("abc", &stubGateway{})
	updates, cancel := s.Subscribe()

	_, err := s.SubmitProfile(ctx, validProfile("energy"))
	require.NoError(t, err)
	assert.Equal(t, StepGenerating, (<-updates).Step)
	ready := <-updates
	assert.Equal(t, StepPlan, ready.Step)
	assert.True(t, ready.HasPlan)

	cancel()
	_, open := <-updates
	assert.False(t, open)
	cancel()

	updates, _ = s.Subscribe()
	s.Close()
	_, open = <-updates
	assert.False(t, open, "closing the session ends subscriptions")

	updates, _ = s.Subscribe()
	_, open = <-updates
	assert.False(t, open)
}

func TestStore(t *testing.T) {
	t.Run("CreateGetDelete", func(t *testing.T) {
		store := NewStore(10, time.Hour, &stubGateway{})
		s := store.Create()
		require.NotEmpty(t, s.ID)

		got, err := store.Get(s.ID)
		require.NoError(t, err)
		assert.Same(t, s, got)

		require.NoError(t, store.Delete(s.ID))
		assert.True(t, s.Closed())
		_, err = store.Get(s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.ErrorIs(t, store.Delete(s.ID), ErrSessionNotFound)
	})

	t.Run("CapacityEvictsOldest", func(t *testing.T) {
		store := NewStore(2, time.Hour, &stubGateway{})
		first := store.Create()
		second := store.Create()
		_, err := store.Get(first.ID)
		require.NoError(t, err)
		third := store.Create()

		assert.Equal(t, 2, store.Len())
		assert.True(t, second.Closed())
		_, err = store.Get(first.ID)
		assert.NoError(t, err)
		_, err = store.Get(third.ID)
		assert.NoError(t, err)
	})

	t.Run("IdleExpiry", func(t *testing.T) {
		store := NewStore(10, 20*time.Millisecond, &stubGateway{})
		s := store.Create()
		time.Sleep(50 * time.Millisecond)
		_, err := store.Get(s.ID)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("OpenIsStable", func(t *testing.T) {
		store := NewStore(10, time.Hour, &stubGateway{})
		id := ChatSessionID("telegram", 42)
		assert.Equal(t, id, ChatSessionID("telegram", 42))
		assert.NotEqual(t, id, ChatSessionID("telegram", 43))

		a := store.Open(id)
		b := store.Open(id)
		assert.Same(t, a, b)
	})
}
