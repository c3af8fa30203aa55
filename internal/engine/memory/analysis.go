package memory

import (
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/utafrali/catalogsearch/internal/domain"
)

// span is a token's byte range in the original text plus its lowercased form.
type span struct {
	start, end int
	term       string
}

// analyze splits text on anything that is not a letter or digit and
// lowercases each run, like the standard analyzer.
func analyze(text string) []span {
	var out []span
	start := -1
	for i, r := range text {
		word := unicode.IsLetter(r) || unicode.IsDigit(r)
		switch {
		case word && start < 0:
			start = i
		case !word && start >= 0:
			out = append(out, span{start: start, end: i, term: strings.ToLower(text[start:i])})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start: start, end: len(text), term: strings.ToLower(text[start:])})
	}
	return out
}

func tokens(text string) []string {
	spans := analyze(text)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.term
	}
	return out
}

// allowedEdits returns the edit budget for a term. AUTO allows none below
// three characters, one up to five and two beyond.
func allowedEdits(term, fuzziness string) int {
	switch fuzziness {
	case "":
		return 0
	case "AUTO":
		n := utf8.RuneCountInString(term)
		switch {
		case n < 3:
			return 0
		case n < 6:
			return 1
		default:
			return 2
		}
	}
	n, err := strconv.Atoi(fuzziness)
	if err != nil || n < 0 {
		return 0
	}
	return min(n, 2)
}

// editDistance is the optimal string alignment distance: insertions,
// deletions, substitutions and adjacent transpositions each cost one.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(rb)]
}

// highlighter wraps matched tokens of the requested fields in tags. Only
// multi_match clauses that target the field itself contribute terms.
type highlighter struct {
	fields []string
	pre    string
	post   string
}

func parseHighlight(hl map[string]any) highlighter {
	h := highlighter{pre: "<em>", post: "</em>"}
	if fields, ok := hl["fields"].(map[string]any); ok {
		for f := range fields {
			h.fields = append(h.fields, f)
		}
		slices.Sort(h.fields)
	}
	if tags, ok := hl["pre_tags"].([]any); ok && len(tags) > 0 {
		if s, ok := tags[0].(string); ok {
			h.pre = s
		}
	}
	if tags, ok := hl["post_tags"].([]any); ok && len(tags) > 0 {
		if s, ok := tags[0].(string); ok {
			h.post = s
		}
	}
	return h
}

// apply returns one whole-value fragment per field with at least one match,
// or nil when nothing matched.
func (h highlighter) apply(q map[string]any, doc domain.SearchDocument) map[string][]string {
	var out map[string][]string
	for _, field := range h.fields {
		value, ok := textField(doc, field)
		if !ok {
			continue
		}
		matchers := collectMatchers(q, field)
		if len(matchers) == 0 {
			continue
		}
		frag, hit := h.markup(value, matchers)
		if !hit {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		out[field] = []string{frag}
	}
	return out
}

func (h highlighter) markup(value string, matchers []termMatcher) (string, bool) {
	var b strings.Builder
	hit := false
	last := 0
	for _, s := range analyze(value) {
		if !slices.ContainsFunc(matchers, func(m termMatcher) bool { return m.matches(s.term) }) {
			continue
		}
		hit = true
		b.WriteString(value[last:s.start])
		b.WriteString(h.pre)
		b.WriteString(value[s.start:s.end])
		b.WriteString(h.post)
		last = s.end
	}
	b.WriteString(value[last:])
	return b.String(), hit
}

// collectMatchers walks the query and returns the multi_match clauses that
// list field among their fields.
func collectMatchers(clause map[string]any, field string) []termMatcher {
	var out []termMatcher
	for kind, raw := range clause {
		body, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch kind {
		case "bool":
			for _, key := range []string{"must", "filter", "should"} {
				for _, c := range clauses(body[key]) {
					out = append(out, collectMatchers(c, field)...)
				}
			}
		case "multi_match":
			m, fields, err := parseMultiMatch(body)
			if err != nil || len(m.terms) == 0 {
				continue
			}
			if slices.ContainsFunc(fields, func(f string) bool {
				name, _ := splitBoost(f)
				return name == field
			}) {
				out = append(out, m)
			}
		}
	}
	return out
}
