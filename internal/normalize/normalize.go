// Package normalize turns engine events into per-host results.
package normalize

import (
	"iter"

	"github.com/agent462/corral/internal/engine"
)

// Result is one host's outcome within a run.
//
// Stdout and Stderr are nil when the engine did not report them; a non-nil
// pointer to "" means the command printed nothing. Facts is set only for
// fact-gathering results.
type Result struct {
	Host        string
	OK          bool
	Unreachable bool
	Stdout      *string
	Stderr      *string
	RC          *int
	Msg         string
	Facts       map[string]any
	Summary     *FactSummary
}

// HasFacts reports whether r is a facts record.
func (r Result) HasFacts() bool {
	return r.Facts != nil
}

// StdoutString returns stdout, or "" when absent.
func (r Result) StdoutString() string {
	if r.Stdout == nil {
		return ""
	}
	return *r.Stdout
}

// StderrString returns stderr, or "" when absent.
func (r Result) StderrString() string {
	if r.Stderr == nil {
		return ""
	}
	return *r.Stderr
}

// Normalize converts events to results in arrival order. Events other than
// ok and failed results are dropped. An empty input yields an empty,
// non-nil slice.
func Normalize(events []engine.Event) []Result {
	results := make([]Result, 0, len(events))
	for r := range All(events) {
		results = append(results, r)
	}
	return results
}

// All yields the results for events lazily. The sequence can be ranged
// over any number of times; each pass walks events again from the start.
func All(events []engine.Event) iter.Seq[Result] {
	return func(yield func(Result) bool) {
		for _, ev := range events {
			r, ok := fromEvent(ev)
			if !ok {
				continue
			}
			if !yield(r) {
				return
			}
		}
	}
}

func fromEvent(ev engine.Event) (Result, bool) {
	switch e := ev.(type) {
	case *engine.OKEvent:
		r := Result{Host: e.Meta.Host, OK: true, RC: e.Payload.RC, Msg: e.Payload.Msg}
		if e.Payload.Facts != nil {
			r.Facts = e.Payload.Facts
			r.Summary = Summarize(e.Payload.Facts)
			return r, true
		}
		r.Stdout = e.Payload.Stdout
		r.Stderr = e.Payload.Stderr
		return r, true
	case *engine.FailedEvent:
		return Result{
			Host:        e.Meta.Host,
			OK:          false,
			Unreachable: e.Unreachable,
			RC:          e.Payload.RC,
			Msg:         e.Payload.Msg,
		}, true
	}
	return Result{}, false
}

// Collapse keeps one result per host: the last one reported, placed where the
// host first appeared. Fact-gathering playbooks report several ok events per
// host; callers that want a single row per host use this.
func Collapse(results []Result) []Result {
	index := make(map[string]int, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if i, seen := index[r.Host]; seen {
			out[i] = r
			continue
		}
		index[r.Host] = len(out)
		out = append(out, r)
	}
	return out
}

// Counts returns how many results are ok and how many failed.
func Counts(results []Result) (ok, failed int) {
	for _, r := range results {
		if r.OK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
