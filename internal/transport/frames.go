package transport

import (
	"encoding/json"
	"fmt"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
)

// Event is the tagged union delivered by Submit. A caller observes zero or
// more Progress/StatusUpdate events followed by exactly one Terminal or
// Failure.
type Event interface{ event() }

// Progress carries one new trace line, and optionally the stage label the
// backend reports as current.
type Progress struct {
	Line         string
	CurrentStage string
}

// StatusUpdate is a human-readable label with no trace line attached.
type StatusUpdate struct {
	Label string
}

// Terminal carries the final result of the request.
type Terminal struct {
	Result claims.Result
}

// Failure is the single fatal outcome of a request: an explicit error frame,
// or a fallback call that also failed.
type Failure struct {
	Err error
}

func (Progress) event()     {}
func (StatusUpdate) event() {}
func (Terminal) event()     {}
func (Failure) event()      {}

// Streaming frame types, as emitted by the adjudication service.
const (
	frameNodeUpdate = "node_update"
	frameStatus     = "status"
	frameResult     = "result"
	frameError      = "error"
)

type frameHeader struct {
	Type string `json:"type"`
}

type messageFrame struct {
	Message      string `json:"message"`
	CurrentAgent string `json:"current_agent"`
}

// decodeFrame maps one wire frame onto the event union.
//
// Returns (nil, false, nil) for frames to ignore: unknown types and
// non-terminal frames whose body does not parse. Returns an error only when
// the channel itself must be abandoned: bytes that are not JSON at all, or a
// terminal frame that cannot be decoded.
func decodeFrame(data []byte) (ev Event, terminal bool, err error) {
	var header frameHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, false, fmt.Errorf("undecodable frame: %w", err)
	}

	switch header.Type {
	case frameNodeUpdate:
		var f messageFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Message == "" {
			return nil, false, nil
		}
		return Progress{Line: f.Message, CurrentStage: f.CurrentAgent}, false, nil

	case frameStatus:
		var f messageFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Message == "" {
			return nil, false, nil
		}
		return StatusUpdate{Label: f.Message}, false, nil

	case frameResult:
		var res claims.Result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, false, fmt.Errorf("undecodable result frame: %w", err)
		}
		return Terminal{Result: res}, true, nil

	case frameError:
		var f messageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, false, fmt.Errorf("undecodable error frame: %w", err)
		}
		return Failure{Err: fmt.Errorf("adjudication service: %s", f.Message)}, true, nil

	default:
		// New or unknown frame kinds are explicitly ignored.
		return nil, false, nil
	}
}
