// Package rob holds the RoB-2 domain model: the six assessed domains, the
// normalized judgment scale, the parsed model response and the per-study row.
package rob

import (
	"path/filepath"
	"strings"
)

// Domain is one of the six RoB-2 keys the model must answer.
type Domain string

const (
	D1      Domain = "D1"
	D2      Domain = "D2"
	D3      Domain = "D3"
	D4      Domain = "D4"
	D5      Domain = "D5"
	Overall Domain = "Overall"
)

// Domains lists every domain in report column order.
var Domains = [6]Domain{D1, D2, D3, D4, D5, Overall}

// Index returns the position of d in Domains, or -1.
func (d Domain) Index() int {
	for i, x := range Domains {
		if x == d {
			return i
		}
	}
	return -1
}

// Label is a normalized judgment.
type Label string

const (
	Low          Label = "Low"
	High         Label = "High"
	SomeConcerns Label = "Some concerns"
	NA           Label = "N/A"
)

// Status records how a study row came to be.
type Status string

const (
	StatusComplete         Status = "complete"
	StatusIncomplete       Status = "incomplete"
	StatusError            Status = "error"
	StatusExtractionFailed Status = "extraction_failed"
)

// StudyID derives the study identifier from an uploaded file name: the
// directory part is dropped and a trailing ".pdf" removed.
func StudyID(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	return base
}
