package planner

// AdjustmentResult is the coach's reading of a logged day.
// RevisedNextDay is absent when the backend declined to propose a revision.
type AdjustmentResult struct {
	Analysis       string      `json:"analysis"`
	Suggestions    string      `json:"suggestions"`
	RevisedNextDay *DayContent `json:"revisedNextDay,omitempty"`
}

// Revision returns the proposed content for the following day, if any.
func (r AdjustmentResult) Revision() (DayContent, bool) {
	if r.RevisedNextDay == nil {
		return DayContent{}, false
	}
	return r.RevisedNextDay.Clone(), true
}

// Clone returns a deep copy of the result.
func (r AdjustmentResult) Clone() AdjustmentResult {
	out := AdjustmentResult{Analysis: r.Analysis, Suggestions: r.Suggestions}
	if rev, ok := r.Revision(); ok {
		out.RevisedNextDay = &rev
	}
	return out
}
