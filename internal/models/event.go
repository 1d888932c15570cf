package models

import "encoding/json"

// EventType classifies a remote change notification
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one remote change notification received over the live
// channel. New/Old carry the raw row payloads; consumers re-fetch through the
// request coordinator instead of applying these directly, since the raw row
// may lack joined or derived fields.
type ChangeEvent struct {
	EventType EventType       `json:"eventType"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
}

// PageMeta is the page metadata block of a paginated list response
type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}
