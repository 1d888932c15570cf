package page

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("bare array synthesizes page metadata", func(t *testing.T) {
		p := Normalize(json.RawMessage(`[{"id":"a"},{"id":"b"},{"id":"c"}]`))

		assert.Equal(t, ShapeArray, p.Shape())
		assert.Len(t, p.Data(), 3)

		meta := p.Pagination()
		assert.Equal(t, 1, meta.Page)
		assert.Equal(t, 3, meta.Limit)
		assert.Equal(t, 3, meta.Total)
		assert.Equal(t, 1, meta.TotalPages)
		assert.False(t, meta.HasNext)
		assert.False(t, meta.HasPrev)
	})

	t.Run("empty array is a valid empty page", func(t *testing.T) {
		p := Normalize(json.RawMessage(`[]`))

		assert.Equal(t, ShapeArray, p.Shape())
		assert.Empty(t, p.Data())
		assert.Equal(t, 0, p.Pagination().Total)
		assert.Equal(t, 1, p.Pagination().Page)
	})

	t.Run("envelope passes metadata through", func(t *testing.T) {
		raw := json.RawMessage(`{
			"data": [{"id":"a"},{"id":"b"}],
			"page": 2, "limit": 2, "total": 7, "totalPages": 4,
			"hasNext": true, "hasPrev": true
		}`)
		p := Normalize(raw)

		assert.Equal(t, ShapeEnvelope, p.Shape())
		assert.Len(t, p.Data(), 2)

		meta := p.Pagination()
		assert.Equal(t, 2, meta.Page)
		assert.Equal(t, 7, meta.Total)
		assert.Equal(t, 4, meta.TotalPages)
		assert.True(t, meta.HasNext)
		assert.True(t, meta.HasPrev)
	})

	t.Run("envelope with empty data is still an envelope", func(t *testing.T) {
		p := Normalize(json.RawMessage(`{"data":[],"page":1,"limit":20,"total":0,"totalPages":0}`))

		assert.Equal(t, ShapeEnvelope, p.Shape())
		assert.Empty(t, p.Data())
	})

	t.Run("lone object degrades to a one item page", func(t *testing.T) {
		p := Normalize(json.RawMessage(`{"id":"only","name":"singleton"}`))

		require.Len(t, p.Data(), 1)
		assert.Equal(t, 1, p.Pagination().Total)
	})

	t.Run("garbage degrades to an empty page instead of failing", func(t *testing.T) {
		for _, raw := range []string{`null`, `"a string"`, `42`, `not even json`} {
			p := Normalize(json.RawMessage(raw))
			assert.Empty(t, p.Data(), "input %q", raw)
			assert.Equal(t, 1, p.Pagination().Page, "input %q", raw)
		}
	})
}

func TestPager(t *testing.T) {
	t.Run("starts at page one", func(t *testing.T) {
		p := NewPager(20)
		page, limit := p.State()
		assert.Equal(t, 1, page)
		assert.Equal(t, 20, limit)
	})

	t.Run("clamps pages below one", func(t *testing.T) {
		p := NewPager(20)
		p.SetPage(0)
		page, _ := p.State()
		assert.Equal(t, 1, page)

		p.SetPage(-3)
		page, _ = p.State()
		assert.Equal(t, 1, page)
	})

	t.Run("changing the limit resets to page one", func(t *testing.T) {
		p := NewPager(20)
		p.SetPage(5)
		p.SetLimit(50)

		page, limit := p.State()
		assert.Equal(t, 1, page)
		assert.Equal(t, 50, limit)
	})

	t.Run("re-setting the same limit keeps the page", func(t *testing.T) {
		p := NewPager(20)
		p.SetPage(5)
		p.SetLimit(20)

		page, _ := p.State()
		assert.Equal(t, 5, page)
	})

	t.Run("defaults a nonpositive limit", func(t *testing.T) {
		p := NewPager(0)
		_, limit := p.State()
		assert.Equal(t, 20, limit)
	})
}
