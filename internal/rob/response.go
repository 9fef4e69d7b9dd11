package rob

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrParse marks model output that is not a JSON object.
var ErrParse = errors.New("response is not a JSON object")

// Assessment is one domain's normalized judgment plus the text it came from.
type Assessment struct {
	Judgment Label
	Raw      string
	Support  string
}

// Response is a parsed model answer. It is either Complete, with all six
// domains resolved, or Partial, where at least one domain fell back to N/A.
type Response interface {
	Assessments() [6]Assessment
	Original() json.RawMessage
	isResponse()
}

// Complete is a response whose six judgments all normalized to a real label.
type Complete struct {
	Domains [6]Assessment
	Raw     json.RawMessage
}

func (c Complete) Assessments() [6]Assessment { return c.Domains }
func (c Complete) Original() json.RawMessage  { return c.Raw }
func (Complete) isResponse()                  {}

// Partial is a response that parsed but left one or more domains at N/A.
// Issues lists the shape problems found, when any.
type Partial struct {
	Domains [6]Assessment
	Raw     json.RawMessage
	Issues  []string
}

func (p Partial) Assessments() [6]Assessment { return p.Domains }
func (p Partial) Original() json.RawMessage  { return p.Raw }
func (Partial) isResponse()                  {}

// Missing lists the domains that normalized to N/A.
func (p Partial) Missing() []Domain {
	var out []Domain
	for i, a := range p.Domains {
		if a.Judgment == NA {
			out = append(out, Domains[i])
		}
	}
	return out
}

// responseSchema is a shallow shape check: every domain key present and
// holding an object. Field-level content is left to the normalizer.
const responseSchema = `{
  "type": "object",
  "required": ["D1", "D2", "D3", "D4", "D5", "Overall"],
  "properties": {
    "D1": {"type": "object"},
    "D2": {"type": "object"},
    "D3": {"type": "object"},
    "D4": {"type": "object"},
    "D5": {"type": "object"},
    "Overall": {"type": "object"}
  }
}`

var shapeSchema = jsonschema.MustCompileString("rob2-response.json", responseSchema)

// ParseResponse decodes raw model output and classifies it. Text that is not
// a JSON object returns an error wrapping ErrParse.
func ParseResponse(raw []byte) (Response, error) {
	trimmed := bytes.TrimSpace(raw)
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrParse, jsonKind(v))
	}

	var issues []string
	if err := shapeSchema.Validate(v); err != nil {
		issues = append(issues, shapeIssues(err)...)
	}

	var domains [6]Assessment
	complete := true
	for i, d := range Domains {
		a, _ := assess(obj, d)
		domains[i] = a
		if a.Judgment == NA {
			complete = false
		}
	}

	original := json.RawMessage(append([]byte(nil), trimmed...))
	if complete {
		return Complete{Domains: domains, Raw: original}, nil
	}
	return Partial{Domains: domains, Raw: original, Issues: issues}, nil
}

func shapeIssues(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range ve.BasicOutput().Errors {
		// the root entry only summarizes its causes
		if e.Error == "" || e.KeywordLocation == "" {
			continue
		}
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+e.Error)
	}
	if len(out) == 0 {
		out = append(out, ve.Message)
	}
	return out
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
