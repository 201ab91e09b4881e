package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"maps"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/session"
)

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

type editProfileResponse struct {
	State   session.State    `json:"state"`
	Profile *profile.Profile `json:"profile,omitempty"`
}

type submitLogResponse struct {
	Adjustment planner.AdjustmentResult `json:"adjustment"`
	Plan       planner.WeeklyPlan       `json:"plan"`
}

func (a *API) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess := a.store.Create()
	token, err := a.tokens.Issue(sess.ID)
	if err != nil {
		log.Printf("failed to sign token for session %s: %v", sess.ID, err)
		_ = a.store.Delete(sess.ID)
		respondWithError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	respondWithJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.ID, Token: token})
}

func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, sessionFrom(r).State())
}

func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Delete(sessionFrom(r).ID); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) SubmitProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid profile body: %v", err))
		return
	}

	ctx, cancel := a.generationContext(r.Context())
	defer cancel()

	plan, err := sessionFrom(r).SubmitProfile(ctx, p)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

func (a *API) EditProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.EditProfile(); err != nil {
		respondWithDomainError(w, err)
		return
	}
	resp := editProfileResponse{State: sess.State()}
	if eng, err := sess.Engine(); err == nil {
		if p, ok := eng.Profile(); ok {
			resp.Profile = &p
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (a *API) RegeneratePlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.generationContext(r.Context())
	defer cancel()

	plan, err := sessionFrom(r).Regenerate(ctx)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

func (a *API) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := a.currentPlan(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, plan)
}

func (a *API) GetDay(w http.ResponseWriter, r *http.Request) {
	plan, ok := a.currentPlan(w, r)
	if !ok {
		return
	}
	idx, ok := dayIndexParam(w, r, len(plan.Days))
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, plan.Days[idx])
}

func (a *API) ListLogs(w http.ResponseWriter, r *http.Request) {
	eng, err := sessionFrom(r).Engine()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	logs := eng.Logs()
	out := make([]planner.DailyLog, 0, len(logs))
	for _, idx := range slices.Sorted(maps.Keys(logs)) {
		out = append(out, logs[idx])
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (a *API) GetLog(w http.ResponseWriter, r *http.Request) {
	eng, err := sessionFrom(r).Engine()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	idx, ok := dayIndexParam(w, r, planner.DaysPerWeek)
	if !ok {
		return
	}
	dayLog, ok := eng.Log(idx)
	if !ok {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("no log for day %d", idx))
		return
	}
	respondWithJSON(w, http.StatusOK, dayLog)
}

// SubmitLog stores the log for the day in the path and returns the coach's
// analysis together with the plan as it stands after the merge.
func (a *API) SubmitLog(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "dayIndex"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "dayIndex must be an integer")
		return
	}
	var dayLog planner.DailyLog
	if err := json.NewDecoder(r.Body).Decode(&dayLog); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid log body: %v", err))
		return
	}
	dayLog.DayIndex = idx

	ctx, cancel := a.generationContext(r.Context())
	defer cancel()

	sess := sessionFrom(r)
	adj, err := sess.SubmitLog(ctx, dayLog)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	resp := submitLogResponse{Adjustment: adj}
	if eng, err := sess.Engine(); err == nil {
		resp.Plan, _ = eng.Plan()
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (a *API) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	eng, err := sessionFrom(r).Engine()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	adj, ok := eng.PendingAnalysis()
	if !ok {
		respondWithError(w, http.StatusNotFound, "no pending analysis")
		return
	}
	respondWithJSON(w, http.StatusOK, adj)
}

func (a *API) DismissAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).DismissAnalysis(); err != nil {
		respondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) currentPlan(w http.ResponseWriter, r *http.Request) (planner.WeeklyPlan, bool) {
	eng, err := sessionFrom(r).Engine()
	if err != nil {
		respondWithDomainError(w, err)
		return planner.WeeklyPlan{}, false
	}
	plan, ok := eng.Plan()
	if !ok {
		respondWithError(w, http.StatusNotFound, "no meal plan generated yet")
		return planner.WeeklyPlan{}, false
	}
	return plan, true
}

func dayIndexParam(w http.ResponseWriter, r *http.Request, days int) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "dayIndex"))
	if err != nil || idx < 0 || idx >= days {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("dayIndex must be an integer in [0, %d)", days))
		return 0, false
	}
	return idx, true
}
