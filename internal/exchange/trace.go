package exchange

import (
	"fmt"
	"strings"
	"time"
)

// TraceStep is one entry in the exchange debug trace
type TraceStep struct {
	Step      string `json:"step"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Detail    string `json:"detail,omitempty"`
}

// Trace accumulates a timestamped record of the exchange steps. It is
// returned alongside error responses only; success responses carry tokens
// and must never include trace data that could be mirrored into analytics.
// Details must already be redacted by the caller - never a token or password.
type Trace struct {
	start time.Time
	steps []TraceStep
}

// NewTrace starts a trace clock
func NewTrace() *Trace {
	return &Trace{start: time.Now()}
}

// Add records a step with optional detail
func (t *Trace) Add(step, detail string) {
	if t == nil {
		return
	}
	t.steps = append(t.steps, TraceStep{
		Step:      step,
		ElapsedMS: time.Since(t.start).Milliseconds(),
		Detail:    detail,
	})
}

// Addf records a step with formatted detail
func (t *Trace) Addf(step, format string, args ...any) {
	t.Add(step, fmt.Sprintf(format, args...))
}

// Steps returns the recorded steps in order
func (t *Trace) Steps() []TraceStep {
	if t == nil {
		return nil
	}
	return t.steps
}

// RedactEmail keeps the first character and the domain so operators can
// correlate without logging the full address
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***@" + email[at+1:]
}
