package rob

import "encoding/json"

// StudyResult is one report row. Judgments and Support are indexed like
// Domains and always hold six entries; unanswered domains read N/A.
type StudyResult struct {
	Study     string
	Judgments [6]Label
	Support   [6]string
	Original  json.RawMessage
	Status    Status
	Attempts  int
	Err       string
}

// NewPlaceholder returns a row with every domain at N/A.
func NewPlaceholder(study string, status Status) StudyResult {
	r := StudyResult{Study: study, Status: status}
	for i := range r.Judgments {
		r.Judgments[i] = NA
	}
	return r
}

// ResultFrom builds a row from a parsed response. Status is complete for a
// Complete response and incomplete otherwise; callers override it when the
// row stands for an errored run.
func ResultFrom(study string, resp Response) StudyResult {
	r := StudyResult{Study: study, Original: resp.Original(), Status: StatusIncomplete}
	if _, ok := resp.(Complete); ok {
		r.Status = StatusComplete
	}
	for i, a := range resp.Assessments() {
		r.Judgments[i] = a.Judgment
		r.Support[i] = a.Support
	}
	return r
}

// Judgment returns the label for domain d.
func (r StudyResult) Judgment(d Domain) Label {
	i := d.Index()
	if i < 0 {
		return NA
	}
	return r.Judgments[i]
}

// HasNA reports whether any domain is still unanswered.
func (r StudyResult) HasNA() bool {
	for _, l := range r.Judgments {
		if l == NA || l == "" {
			return true
		}
	}
	return false
}
