package pipeline

import (
	"strings"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
)

// Status of one stage as inferred from the trace.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Trace lines carrying one of these markers indicate the matched stage
// failed, provided the overall decision is a rejection.
var failureMarkers = []string{"rejected", "failed", "error"}

// StageStatus infers the status of a single stage from the trace lines
// accumulated so far, the in-flight flag, and the decision (empty until a
// terminal result arrives). It is a pure function: identical inputs yield
// identical output.
func (t *Topology) StageStatus(stageID string, trace []string, inFlight bool, decision string) Status {
	return t.evaluate(trace, inFlight, decision).status(stageID)
}

// Statuses infers the status of every stage in one pass.
func (t *Topology) Statuses(trace []string, inFlight bool, decision string) map[string]Status {
	e := t.evaluate(trace, inFlight, decision)
	out := make(map[string]Status, len(t.stages))
	for _, s := range t.stages {
		out[s.ID] = e.status(s.ID)
	}
	return out
}

// EdgeStatus derives a connector's status from its endpoints. Purely
// presentational; stage statuses remain authoritative.
func (t *Topology) EdgeStatus(from, to string, trace []string, inFlight bool, decision string) Status {
	e := t.evaluate(trace, inFlight, decision)
	a, b := e.status(from), e.status(to)
	switch {
	case b == StatusActive:
		return StatusActive
	case a == StatusCompleted && (b == StatusCompleted || b == StatusActive):
		return StatusCompleted
	case b == StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// evaluation caches the derived quantities shared by every per-stage rule:
// the lower-cased line set, which stages were found, and the highest rank
// reached.
type evaluation struct {
	topo     *Topology
	lines    []string
	inFlight bool
	decision string
	found    map[string]bool
	highest  int
}

func (t *Topology) evaluate(trace []string, inFlight bool, decision string) *evaluation {
	e := &evaluation{
		topo:     t,
		lines:    make([]string, len(trace)),
		inFlight: inFlight,
		decision: decision,
		found:    make(map[string]bool, len(t.stages)),
	}
	for i, line := range trace {
		e.lines[i] = strings.ToLower(line)
	}
	buffer := strings.Join(e.lines, "\n")

	for _, s := range t.stages {
		if s.Terminal {
			continue
		}
		for _, kw := range s.Keywords {
			if strings.Contains(buffer, kw) {
				e.found[s.ID] = true
				if s.Rank > e.highest {
					e.highest = s.Rank
				}
				break
			}
		}
	}
	return e
}

func (e *evaluation) status(stageID string) Status {
	stage, ok := e.topo.Stage(stageID)
	if !ok {
		return StatusPending
	}
	if stage.Terminal {
		return e.sentinelStatus(stage)
	}

	if !e.found[stage.ID] {
		if e.anyFoundAbove(stage.Rank) {
			// A later stage already ran, so this branch was bypassed.
			return StatusSkipped
		}
		if e.inFlight && stage.Rank == e.highest+1 {
			// The frontier: the stage the backend is presumably working on.
			return StatusActive
		}
		return StatusPending
	}

	if claims.Rejected(e.decision) && e.stageLineFailed(stage) {
		return StatusFailed
	}
	if e.inFlight && !e.anyFoundAbove(stage.Rank) {
		// Still being elaborated; more lines for it may arrive.
		return StatusActive
	}
	return StatusCompleted
}

// sentinelStatus handles the entry/exit sentinels, which carry no keywords.
// The entry sentinel completes as soon as any request has been sent; the
// exit sentinel mirrors the final decision once the request settles.
func (e *evaluation) sentinelStatus(stage Stage) Status {
	if stage.ID == e.topo.entry {
		if e.inFlight || e.decision != "" || len(e.lines) > 0 {
			return StatusCompleted
		}
		return StatusPending
	}
	if e.inFlight || e.decision == "" {
		return StatusPending
	}
	if claims.Rejected(e.decision) {
		return StatusFailed
	}
	return StatusCompleted
}

func (e *evaluation) anyFoundAbove(rank int) bool {
	return e.highest > rank
}

// stageLineFailed reports whether any trace line attributed to this stage
// carries a failure marker.
func (e *evaluation) stageLineFailed(stage Stage) bool {
	for _, line := range e.lines {
		matched := false
		for _, kw := range stage.Keywords {
			if strings.Contains(line, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, marker := range failureMarkers {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
