package coordinator

import (
	"sort"
	"strconv"
	"strings"
)

// Query describes one logical read: a table plus the filters, search text and
// pagination the UI currently wants. Its key is a deterministic serialization
// so identical intents collapse to identical keys.
type Query struct {
	Table   string
	Search  string
	Page    int
	Limit   int
	Filters map[string]string
}

// Key returns the canonical form of the query
func (q Query) Key() string {
	var b strings.Builder
	b.WriteString(q.Table)
	b.WriteString("|page=")
	b.WriteString(strconv.Itoa(q.Page))
	b.WriteString("|limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteString("|search=")
	b.WriteString(q.Search)

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("|")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(q.Filters[k])
	}
	return b.String()
}
