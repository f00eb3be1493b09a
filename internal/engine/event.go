package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Engine event names that map to typed events.
const (
	eventOK          = "runner_on_ok"
	eventFailed      = "runner_on_failed"
	eventUnreachable = "runner_on_unreachable"
)

// Event is one decoded engine event: *OKEvent, *FailedEvent or *OtherEvent.
type Event interface {
	EventMeta() Meta
}

// Meta is the data common to every event.
type Meta struct {
	UUID    string
	Counter int
	Name    string // raw engine event name
	Host    string
	Task    string
}

// Payload is the per-host result carried by ok and failed events.
// Stdout and Stderr are nil when the engine did not report them, which is
// different from reporting an empty string. Numbers inside Facts are
// json.Number.
type Payload struct {
	Stdout  *string
	Stderr  *string
	RC      *int
	Msg     string
	Changed bool
	Facts   map[string]any
}

// OKEvent is a successful task result on one host.
type OKEvent struct {
	Meta    Meta
	Payload Payload
}

// FailedEvent is a failed task result or an unreachable host.
type FailedEvent struct {
	Meta        Meta
	Payload     Payload
	Unreachable bool
}

// OtherEvent is any event corral does not interpret.
type OtherEvent struct {
	Meta Meta
}

func (e *OKEvent) EventMeta() Meta     { return e.Meta }
func (e *FailedEvent) EventMeta() Meta { return e.Meta }
func (e *OtherEvent) EventMeta() Meta  { return e.Meta }

type rawEvent struct {
	UUID      string `json:"uuid"`
	Counter   int    `json:"counter"`
	Event     string `json:"event"`
	EventData struct {
		Host string         `json:"host"`
		Task string         `json:"task"`
		Res  map[string]any `json:"res"`
	} `json:"event_data"`
}

// DecodeEvent decodes one job event document.
func DecodeEvent(data []byte) (Event, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw rawEvent
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	meta := Meta{
		UUID:    raw.UUID,
		Counter: raw.Counter,
		Name:    raw.Event,
		Host:    raw.EventData.Host,
		Task:    raw.EventData.Task,
	}

	switch raw.Event {
	case eventOK:
		return &OKEvent{Meta: meta, Payload: decodePayload(raw.EventData.Res)}, nil
	case eventFailed, eventUnreachable:
		return &FailedEvent{
			Meta:        meta,
			Payload:     decodePayload(raw.EventData.Res),
			Unreachable: raw.Event == eventUnreachable,
		}, nil
	}
	return &OtherEvent{Meta: meta}, nil
}

func decodePayload(res map[string]any) Payload {
	var p Payload
	if res == nil {
		return p
	}
	p.Stdout = optionalString(res, "stdout")
	p.Stderr = optionalString(res, "stderr")
	if n, ok := res["rc"].(json.Number); ok {
		if v, err := n.Int64(); err == nil {
			rc := int(v)
			p.RC = &rc
		}
	}
	if msg, ok := res["msg"].(string); ok {
		p.Msg = msg
	}
	if changed, ok := res["changed"].(bool); ok {
		p.Changed = changed
	}
	if facts, ok := res["ansible_facts"].(map[string]any); ok {
		p.Facts = facts
	}
	return p
}

func optionalString(m map[string]any, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	return &s
}
