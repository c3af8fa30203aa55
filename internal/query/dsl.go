// Package query builds Elasticsearch query DSL documents from immutable
// values. Every builder method returns a modified copy; the receiver is never
// changed, so partially built queries can be shared and extended freely.
package query

import (
	"slices"
	"strconv"
)

// Query is a clause that renders itself as Elasticsearch JSON DSL.
type Query interface {
	Source() map[string]any
}

// Boost renders a field name with a query-time boost, e.g. "name^3".
func Boost(field string, boost float64) string {
	return field + "^" + strconv.FormatFloat(boost, 'f', -1, 64)
}

// ─── bool ────────────────────────────────────────────────────────────────────

// BoolQuery combines clauses with must / filter / should semantics.
type BoolQuery struct {
	must   []Query
	filter []Query
	should []Query
}

// NewBool returns an empty bool query.
func NewBool() BoolQuery {
	return BoolQuery{}
}

// Must adds scoring clauses that every hit has to match.
func (b BoolQuery) Must(q ...Query) BoolQuery {
	b.must = slices.Concat(b.must, q)
	return b
}

// Filter adds non-scoring clauses that every hit has to match.
func (b BoolQuery) Filter(q ...Query) BoolQuery {
	b.filter = slices.Concat(b.filter, q)
	return b
}

// Should adds optional clauses that raise the score of hits matching them.
func (b BoolQuery) Should(q ...Query) BoolQuery {
	b.should = slices.Concat(b.should, q)
	return b
}

func (b BoolQuery) Source() map[string]any {
	body := map[string]any{}
	if len(b.must) > 0 {
		body["must"] = sources(b.must)
	}
	if len(b.filter) > 0 {
		body["filter"] = sources(b.filter)
	}
	if len(b.should) > 0 {
		body["should"] = sources(b.should)
	}
	return map[string]any{"bool": body}
}

func sources(qs []Query) []any {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Source())
	}
	return out
}

// ─── multi_match ─────────────────────────────────────────────────────────────

// Multi-match types.
const (
	TypeBestFields = "best_fields"
	TypeBoolPrefix = "bool_prefix"
)

// FuzzinessAuto lets the engine pick the edit distance from the term length.
const FuzzinessAuto = "AUTO"

// MultiMatchQuery runs a full-text query over several fields.
type MultiMatchQuery struct {
	text      string
	fields    []string
	fuzziness string
	kind      string
}

// NewMultiMatch queries text over fields. Fields may carry a boost suffix.
func NewMultiMatch(text string, fields ...string) MultiMatchQuery {
	return MultiMatchQuery{text: text, fields: slices.Clone(fields)}
}

// Fuzziness sets the allowed edit distance, typically FuzzinessAuto.
func (m MultiMatchQuery) Fuzziness(f string) MultiMatchQuery {
	m.fuzziness = f
	return m
}

// Type sets the multi_match type, e.g. TypeBoolPrefix.
func (m MultiMatchQuery) Type(t string) MultiMatchQuery {
	m.kind = t
	return m
}

func (m MultiMatchQuery) Source() map[string]any {
	body := map[string]any{
		"query":  m.text,
		"fields": slices.Clone(m.fields),
	}
	if m.fuzziness != "" {
		body["fuzziness"] = m.fuzziness
	}
	if m.kind != "" {
		body["type"] = m.kind
	}
	return map[string]any{"multi_match": body}
}

// ─── term ────────────────────────────────────────────────────────────────────

// TermQuery matches an exact value on a keyword field.
type TermQuery struct {
	field string
	value any
}

// NewTerm matches documents whose field equals value exactly.
func NewTerm(field string, value any) TermQuery {
	return TermQuery{field: field, value: value}
}

func (t TermQuery) Source() map[string]any {
	return map[string]any{"term": map[string]any{t.field: t.value}}
}

// ─── range ───────────────────────────────────────────────────────────────────

// RangeQuery bounds a numeric field. Bounds are passed through as given, so
// an inverted range simply matches nothing.
type RangeQuery struct {
	field  string
	bounds map[string]any
}

// NewRange starts an unbounded range over field.
func NewRange(field string) RangeQuery {
	return RangeQuery{field: field}
}

func (r RangeQuery) with(op string, v any) RangeQuery {
	bounds := make(map[string]any, len(r.bounds)+1)
	for k, val := range r.bounds {
		bounds[k] = val
	}
	bounds[op] = v
	r.bounds = bounds
	return r
}

// Gte sets an inclusive lower bound.
func (r RangeQuery) Gte(v any) RangeQuery { return r.with("gte", v) }

// Gt sets an exclusive lower bound.
func (r RangeQuery) Gt(v any) RangeQuery { return r.with("gt", v) }

// Lte sets an inclusive upper bound.
func (r RangeQuery) Lte(v any) RangeQuery { return r.with("lte", v) }

// Lt sets an exclusive upper bound.
func (r RangeQuery) Lt(v any) RangeQuery { return r.with("lt", v) }

func (r RangeQuery) Source() map[string]any {
	bounds := make(map[string]any, len(r.bounds))
	for k, v := range r.bounds {
		bounds[k] = v
	}
	return map[string]any{"range": map[string]any{r.field: bounds}}
}

// ─── highlight ───────────────────────────────────────────────────────────────

// Highlight asks the engine to return marked-up fragments for fields.
type Highlight struct {
	fields  []string
	preTag  string
	postTag string
}

// NewHighlight highlights the given fields with the engine's default tags.
func NewHighlight(fields ...string) Highlight {
	return Highlight{fields: slices.Clone(fields)}
}

// Tags sets the markers placed around each matched term.
func (h Highlight) Tags(pre, post string) Highlight {
	h.preTag, h.postTag = pre, post
	return h
}

func (h Highlight) Source() map[string]any {
	fields := make(map[string]any, len(h.fields))
	for _, f := range h.fields {
		fields[f] = map[string]any{}
	}
	body := map[string]any{"fields": fields}
	if h.preTag != "" {
		body["pre_tags"] = []string{h.preTag}
	}
	if h.postTag != "" {
		body["post_tags"] = []string{h.postTag}
	}
	return body
}

// ─── request ─────────────────────────────────────────────────────────────────

// Request is a complete search request body.
type Request struct {
	query     Query
	from      int
	size      int
	highlight *Highlight
}

// NewRequest wraps q in a search request with from 0 and the engine default
// size.
func NewRequest(q Query) Request {
	return Request{query: q, size: -1}
}

// From sets the offset of the first hit.
func (r Request) From(n int) Request {
	r.from = n
	return r
}

// Size sets the maximum number of hits.
func (r Request) Size(n int) Request {
	r.size = n
	return r
}

// Highlight attaches a highlight section.
func (r Request) Highlight(h Highlight) Request {
	r.highlight = &h
	return r
}

func (r Request) Source() map[string]any {
	body := map[string]any{
		"query": r.query.Source(),
		"from":  r.from,
	}
	if r.size >= 0 {
		body["size"] = r.size
	}
	if r.highlight != nil {
		body["highlight"] = r.highlight.Source()
	}
	return body
}
