package httpapi

import (
	"context"
	"errors"
	"net/http"

	"adaptive-meal-planner/internal/engine"
	"adaptive-meal-planner/internal/planner"
	"adaptive-meal-planner/internal/profile"
	"adaptive-meal-planner/internal/session"
)

type fieldProblem struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

type errorBody struct {
	Error  string         `json:"error"`
	Fields []fieldProblem `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		return http.StatusNotFound
	case errors.Is(err, profile.ErrIncompleteProfile), errors.Is(err, planner.ErrInvalidLog):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrAnalysisInProgress),
		errors.Is(err, engine.ErrGenerationInProgress),
		errors.Is(err, engine.ErrNoPlan),
		errors.Is(err, session.ErrNoProfile):
		return http.StatusConflict
	case errors.Is(err, planner.ErrGenerationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, planner.ErrMalformedResponse), errors.Is(err, planner.ErrBackend):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithDomainError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	var verr *profile.ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			body.Fields = append(body.Fields, fieldProblem{Field: f.Field, Problem: f.Problem})
		}
	}
	respondWithJSON(w, statusFor(err), body)
}
