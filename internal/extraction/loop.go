// Package extraction runs the bounded generate-and-validate loop that turns
// one study's text into a RoB-2 row.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/robextract/internal/llm"
	"github.com/hyperifyio/robextract/internal/rob"
)

// DefaultMaxAttempts bounds the model calls made for one study.
const DefaultMaxAttempts = 3

// ErrNoChoices is returned when the model answers without any choice.
var ErrNoChoices = errors.New("model returned no choices")

// State is a position in the per-study state machine.
type State int

const (
	Attempting State = iota
	Complete
	ExhaustedIncomplete
	ExhaustedError
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Complete:
		return "complete"
	case ExhaustedIncomplete:
		return "exhausted_incomplete"
	case ExhaustedError:
		return "exhausted_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further attempt follows s.
func (s State) Terminal() bool { return s != Attempting }

// step is the transition out of Attempting after attempt n of budget.
// resp is nil whenever err is set.
func step(n, budget int, resp rob.Response, err error) State {
	if err == nil {
		if _, ok := resp.(rob.Complete); ok {
			return Complete
		}
	}
	if n < budget {
		return Attempting
	}
	if err != nil {
		return ExhaustedError
	}
	return ExhaustedIncomplete
}

// Phase tells whether an Attempt event opens or closes an attempt.
type Phase int

const (
	AttemptStarted Phase = iota
	AttemptFinished
)

// Attempt describes one model call for progress reporting.
type Attempt struct {
	Study  string
	Phase  Phase
	Number int
	Max    int
	// Next is the state entered after the attempt; set on AttemptFinished.
	Next    State
	Err     error
	Missing []rob.Domain
}

// Outcome is the terminal result for one study.
type Outcome struct {
	State    State
	Result   rob.StudyResult
	Attempts int
	Err      error
}

// Loop prompts the model until its answer covers all six domains or the
// attempt budget runs out.
type Loop struct {
	Client llm.Client
	Model  string
	// MaxAttempts <= 0 uses DefaultMaxAttempts.
	MaxAttempts int
	// SystemPrompt overrides ExpertSystemPrompt when non-empty.
	SystemPrompt string
	// Timeout bounds each model call; zero leaves calls unbounded.
	Timeout time.Duration
}

func (l *Loop) maxAttempts() int {
	if l.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return l.MaxAttempts
}

// Run drives the state machine for one study. It always returns a row:
// incomplete runs keep the last attempt's partial answer, and errored runs
// keep the last answer that parsed or fall back to all N/A. observe may be nil.
func (l *Loop) Run(ctx context.Context, study, text string, observe func(Attempt)) Outcome {
	if observe == nil {
		observe = func(Attempt) {}
	}
	budget := l.maxAttempts()
	prompt := BuildPrompt(l.SystemPrompt, text)

	state := Attempting
	n := 0
	var (
		last    rob.StudyResult
		parsed  bool
		lastErr error
	)
	for state == Attempting {
		if err := ctx.Err(); err != nil {
			lastErr = err
			state = ExhaustedError
			break
		}
		n++
		observe(Attempt{Study: study, Phase: AttemptStarted, Number: n, Max: budget})

		resp, err := l.call(ctx, prompt)
		var missing []rob.Domain
		if err == nil {
			last = rob.ResultFrom(study, resp)
			parsed = true
			if p, ok := resp.(rob.Partial); ok {
				missing = p.Missing()
			}
		}
		lastErr = err
		state = step(n, budget, resp, err)
		observe(Attempt{Study: study, Phase: AttemptFinished, Number: n, Max: budget, Next: state, Err: err, Missing: missing})

		switch {
		case state == Attempting && err != nil:
			log.Warn().Err(err).Str("study", study).Int("attempt", n).Int("max", budget).Msg("model call failed; retrying")
		case state == Attempting:
			log.Warn().Str("study", study).Int("attempt", n).Int("max", budget).Strs("missing", domainNames(missing)).Msg("incomplete judgments; retrying")
		}
	}

	out := Outcome{State: state, Attempts: n}
	switch state {
	case Complete:
		out.Result = last
		log.Info().Str("study", study).Int("attempts", n).Msg("judgments complete")
	case ExhaustedIncomplete:
		out.Result = last
		out.Result.Status = rob.StatusIncomplete
		out.Err = fmt.Errorf("incomplete after %d attempts: missing %s", n, strings.Join(domainNames(missingOf(last)), ", "))
		log.Error().Str("study", study).Int("attempts", n).Msg("could not retrieve full judgments")
	case ExhaustedError:
		if parsed {
			out.Result = last
		} else {
			out.Result = rob.NewPlaceholder(study, rob.StatusError)
		}
		out.Result.Status = rob.StatusError
		out.Err = lastErr
		log.Error().Err(lastErr).Str("study", study).Int("attempts", n).Msg("model extraction failed")
	}
	out.Result.Study = study
	out.Result.Attempts = n
	if out.Err != nil {
		out.Result.Err = out.Err.Error()
	}
	return out
}

// call performs one model round-trip and parses the answer.
func (l *Loop) call(ctx context.Context, prompt string) (rob.Response, error) {
	if l.Client == nil || strings.TrimSpace(l.Model) == "" {
		return nil, errors.New("extraction loop not configured")
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	resp, err := l.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		N:              1,
	})
	if err != nil {
		return nil, fmt.Errorf("model call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	parsed, err := rob.ParseResponse([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	return parsed, nil
}

func missingOf(r rob.StudyResult) []rob.Domain {
	var out []rob.Domain
	for i, l := range r.Judgments {
		if l == rob.NA || l == "" {
			out = append(out, rob.Domains[i])
		}
	}
	return out
}

func domainNames(ds []rob.Domain) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}
