// Package tracking ingests client-side analytics events, keeps live
// counters over them and persists them in batches.
package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEvent = errors.New("invalid analytics event")

type EventType string

const (
	PageView        EventType = "page_view"
	Action          EventType = "action"
	DrugSelected    EventType = "drug_selected"
	DrugRemoved     EventType = "drug_removed"
	WorkflowStarted EventType = "workflow_started"
	Error           EventType = "error"
	SessionStart    EventType = "session_start"
	SessionEnd      EventType = "session_end"
)

var eventTypes = []EventType{PageView, Action, DrugSelected, DrugRemoved, WorkflowStarted, Error, SessionStart, SessionEnd}

func (t EventType) Valid() bool {
	for _, v := range eventTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Event struct {
	ID         uuid.UUID       `json:"id"`
	Type       EventType       `json:"type"`
	Name       string          `json:"name,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Path       string          `json:"path,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (e *Event) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if (e.Type == SessionStart || e.Type == SessionEnd) && e.SessionID == "" {
		return fmt.Errorf("%w: %s requires session_id", ErrInvalidEvent, e.Type)
	}
	if len(e.Properties) > 0 && !json.Valid(e.Properties) {
		return fmt.Errorf("%w: properties is not valid JSON", ErrInvalidEvent)
	}
	return nil
}

// stamp fills in a missing ID and timestamp.
func (e *Event) stamp(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// drugKey names the drug a drug event refers to: properties.rxcui, then
// properties.name, then the event name.
func (e *Event) drugKey() string {
	var props struct {
		RxCUI string `json:"rxcui"`
		Name  string `json:"name"`
	}
	if len(e.Properties) > 0 {
		_ = json.Unmarshal(e.Properties, &props)
	}
	switch {
	case props.RxCUI != "":
		return props.RxCUI
	case props.Name != "":
		return props.Name
	}
	return e.Name
}
