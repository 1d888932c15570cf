package page

import (
	"encoding/json"

	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/models"
)

// Shape records which wire form a list response arrived in. The decision is
// made exactly once here; nothing downstream re-sniffs the payload.
type Shape int

const (
	// ShapeArray is a bare JSON array with no page metadata
	ShapeArray Shape = iota
	// ShapeEnvelope carries the array plus page metadata
	ShapeEnvelope
)

// Paged is the uniform view over either response shape
type Paged struct {
	shape Shape
	items []json.RawMessage
	meta  models.PageMeta
}

type envelope struct {
	Data       []json.RawMessage `json:"data"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
	HasNext    bool              `json:"hasNext"`
	HasPrev    bool              `json:"hasPrev"`
}

// Normalize accepts a bare array, an envelope, or anything else, and never
// fails: malformed payloads degrade to a single unpaginated page.
func Normalize(raw json.RawMessage) Paged {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return singlePage(ShapeArray, items)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return Paged{
			shape: ShapeEnvelope,
			items: env.Data,
			meta: models.PageMeta{
				Page:       env.Page,
				Limit:      env.Limit,
				Total:      env.Total,
				TotalPages: env.TotalPages,
				HasNext:    env.HasNext,
				HasPrev:    env.HasPrev,
			},
		}
	}

	// Unexpected shape: a lone object becomes a one-item page, garbage an
	// empty one
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil && len(obj) > 0 {
		return singlePage(ShapeArray, []json.RawMessage{raw})
	}
	return singlePage(ShapeArray, nil)
}

func singlePage(shape Shape, items []json.RawMessage) Paged {
	n := len(items)
	return Paged{
		shape: shape,
		items: items,
		meta: models.PageMeta{
			Page:       1,
			Limit:      n,
			Total:      n,
			TotalPages: 1,
			HasNext:    false,
			HasPrev:    false,
		},
	}
}

// Shape returns the detected wire form
func (p Paged) Shape() Shape {
	return p.shape
}

// Data returns the page's items
func (p Paged) Data() []json.RawMessage {
	return p.items
}

// Pagination returns the page metadata; for bare arrays it is synthesized
func (p Paged) Pagination() models.PageMeta {
	return p.meta
}
