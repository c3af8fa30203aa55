package memory

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/utafrali/catalogsearch/internal/domain"
	"github.com/utafrali/catalogsearch/internal/query"
)

// Scores given to a single query term. Fuzzy matches rank below exact ones.
const (
	exactScore = 1.0
	fuzzyScore = 0.5
)

// textField returns the analyzed text behind a field path. The
// search_as_you_type sub-fields of name all analyze the name itself.
func textField(doc domain.SearchDocument, path string) (string, bool) {
	switch {
	case path == query.FieldName, strings.HasPrefix(path, query.FieldNameAutoComplete):
		return doc.Name, true
	case path == query.FieldDescription:
		return doc.Description, true
	case path == query.FieldCategory:
		return doc.Category, true
	}
	return "", false
}

func keywordField(doc domain.SearchDocument, path string) (string, bool) {
	switch path {
	case query.FieldID:
		return doc.ID, true
	case query.FieldCategoryRaw:
		return doc.Category, true
	}
	return "", false
}

func numberField(doc domain.SearchDocument, path string) (float64, bool) {
	switch path {
	case query.FieldPrice:
		return float64(doc.Price), true
	case query.FieldRating:
		return doc.Rating, true
	}
	return 0, false
}

// evaluate reports whether doc matches the clause and with what score.
func evaluate(clause map[string]any, doc domain.SearchDocument) (bool, float64, error) {
	if len(clause) != 1 {
		return false, 0, fmt.Errorf("memory search: clause must have exactly one key, got %d", len(clause))
	}
	for kind, raw := range clause {
		body, ok := raw.(map[string]any)
		if !ok {
			return false, 0, fmt.Errorf("memory search: %s body is %T", kind, raw)
		}
		switch kind {
		case "bool":
			return evalBool(body, doc)
		case "multi_match":
			return evalMultiMatch(body, doc)
		case "term":
			return evalTerm(body, doc)
		case "range":
			return evalRange(body, doc)
		case "match_all":
			return true, exactScore, nil
		default:
			return false, 0, fmt.Errorf("memory search: unsupported clause %q", kind)
		}
	}
	return false, 0, nil
}

func clauses(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, c := range t {
			if m, ok := c.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func evalBool(body map[string]any, doc domain.SearchDocument) (bool, float64, error) {
	must, filter, should := clauses(body["must"]), clauses(body["filter"]), clauses(body["should"])

	var score float64
	for _, c := range must {
		ok, s, err := evaluate(c, doc)
		if err != nil || !ok {
			return false, 0, err
		}
		score += s
	}
	for _, c := range filter {
		ok, _, err := evaluate(c, doc)
		if err != nil || !ok {
			return false, 0, err
		}
	}

	matchedShould := 0
	for _, c := range should {
		ok, s, err := evaluate(c, doc)
		if err != nil {
			return false, 0, err
		}
		if ok {
			score += s
			matchedShould++
		}
	}
	if len(must) == 0 && len(filter) == 0 && len(should) > 0 && matchedShould == 0 {
		return false, 0, nil
	}
	return true, score, nil
}

// termMatcher is one multi_match clause reduced to its analyzed terms.
type termMatcher struct {
	terms     []string
	fuzziness string
	prefix    bool
}

func (m termMatcher) matchToken(i int, token string) float64 {
	term := m.terms[i]
	if m.prefix && i == len(m.terms)-1 {
		if strings.HasPrefix(token, term) {
			return exactScore
		}
		return 0
	}
	if token == term {
		return exactScore
	}
	if maxEdits := allowedEdits(term, m.fuzziness); maxEdits > 0 && editDistance(term, token) <= maxEdits {
		return fuzzyScore
	}
	return 0
}

// score sums, per query term, the best score over the field's tokens.
func (m termMatcher) score(tokens []string) float64 {
	var total float64
	for i := range m.terms {
		var best float64
		for _, tok := range tokens {
			best = max(best, m.matchToken(i, tok))
		}
		total += best
	}
	return total
}

func (m termMatcher) matches(token string) bool {
	for i := range m.terms {
		if m.matchToken(i, token) > 0 {
			return true
		}
	}
	return false
}

func parseMultiMatch(body map[string]any) (termMatcher, []string, error) {
	text, _ := body["query"].(string)
	kind, _ := body["type"].(string)
	fuzz, _ := body["fuzziness"].(string)

	switch kind {
	case "", query.TypeBestFields, query.TypeBoolPrefix:
	default:
		return termMatcher{}, nil, fmt.Errorf("memory search: unsupported multi_match type %q", kind)
	}

	rawFields, _ := body["fields"].([]any)
	fields := make([]string, 0, len(rawFields))
	for _, f := range rawFields {
		if s, ok := f.(string); ok {
			fields = append(fields, s)
		}
	}

	return termMatcher{
		terms:     tokens(text),
		fuzziness: fuzz,
		prefix:    kind == query.TypeBoolPrefix,
	}, fields, nil
}

// splitBoost separates "name^3" into its field and boost.
func splitBoost(field string) (string, float64) {
	name, boost, found := strings.Cut(field, "^")
	if !found {
		return field, 1
	}
	b, err := strconv.ParseFloat(boost, 64)
	if err != nil {
		return name, 1
	}
	return name, b
}

// evalMultiMatch scores the best matching field (best_fields semantics).
// Terms are OR-ed, so one matching term is enough.
func evalMultiMatch(body map[string]any, doc domain.SearchDocument) (bool, float64, error) {
	m, fields, err := parseMultiMatch(body)
	if err != nil {
		return false, 0, err
	}
	if len(m.terms) == 0 {
		return false, 0, nil
	}

	var best float64
	for _, f := range fields {
		name, boost := splitBoost(f)
		value, ok := textField(doc, name)
		if !ok {
			return false, 0, fmt.Errorf("memory search: multi_match on non-text field %q", name)
		}
		best = max(best, m.score(tokens(value))*boost)
	}
	return best > 0, best, nil
}

func evalTerm(body map[string]any, doc domain.SearchDocument) (bool, float64, error) {
	for field, raw := range body {
		if obj, ok := raw.(map[string]any); ok {
			raw = obj["value"]
		}
		if v, ok := keywordField(doc, field); ok {
			s, _ := raw.(string)
			return v == s, exactScore, nil
		}
		if v, ok := numberField(doc, field); ok {
			n, _ := raw.(float64)
			return v == n, exactScore, nil
		}
		if v, ok := textField(doc, field); ok {
			s, _ := raw.(string)
			return slices.Contains(tokens(v), s), exactScore, nil
		}
		return false, 0, fmt.Errorf("memory search: term on unknown field %q", field)
	}
	return false, 0, nil
}

func evalRange(body map[string]any, doc domain.SearchDocument) (bool, float64, error) {
	for field, raw := range body {
		v, ok := numberField(doc, field)
		if !ok {
			return false, 0, fmt.Errorf("memory search: range on non-numeric field %q", field)
		}
		bounds, _ := raw.(map[string]any)
		for op, b := range bounds {
			limit, ok := b.(float64)
			if !ok {
				return false, 0, fmt.Errorf("memory search: range bound %s on %q is %T", op, field, b)
			}
			var in bool
			switch op {
			case "gte":
				in = v >= limit
			case "gt":
				in = v > limit
			case "lte":
				in = v <= limit
			case "lt":
				in = v < limit
			default:
				return false, 0, fmt.Errorf("memory search: unsupported range operator %q", op)
			}
			if !in {
				return false, 0, nil
			}
		}
		return true, exactScore, nil
	}
	return false, 0, nil
}
