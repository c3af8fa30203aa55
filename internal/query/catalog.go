package query

// Index field names shared by the query builders and the index mapping.
const (
	FieldID                = "id"
	FieldName              = "name"
	FieldDescription       = "description"
	FieldPrice             = "price"
	FieldRating            = "rating"
	FieldCategory          = "category"
	FieldCategoryRaw       = "category.raw"
	FieldNameAutoComplete  = "name.auto_complete"
	FieldNameAutoComplete2 = FieldNameAutoComplete + "._2gram"
	FieldNameAutoComplete3 = FieldNameAutoComplete + "._3gram"
)

// Relevance tuning for full-text search.
const (
	nameBoost        = 3
	descriptionBoost = 1
	categoryBoost    = 2

	// Items rated above this threshold rank higher among equal matches.
	preferredRating = 4.0
)

// ItemSearch describes a full-text item search with resolved paging.
type ItemSearch struct {
	Text     string
	Category string
	MinPrice float64
	MaxPrice float64
	From     int
	Size     int
	PreTag   string
	PostTag  string
}

// SearchItems builds the ranked, filtered and highlighted item query:
//
//	bool:
//	  must:   multi_match(text, name^3 description^1 category^2, fuzziness AUTO)
//	  filter: term(category.raw) when a category is given, range(price)
//	  should: range(rating > 4.0)
func SearchItems(s ItemSearch) Request {
	match := NewMultiMatch(s.Text,
		Boost(FieldName, nameBoost),
		Boost(FieldDescription, descriptionBoost),
		Boost(FieldCategory, categoryBoost),
	).Fuzziness(FuzzinessAuto)

	b := NewBool().Must(match)
	if s.Category != "" {
		b = b.Filter(NewTerm(FieldCategoryRaw, s.Category))
	}
	b = b.
		Filter(NewRange(FieldPrice).Gte(s.MinPrice).Lte(s.MaxPrice)).
		Should(NewRange(FieldRating).Gt(preferredRating))

	return NewRequest(b).
		From(s.From).
		Size(s.Size).
		Highlight(NewHighlight(FieldName).Tags(s.PreTag, s.PostTag))
}

// SuggestNames builds the prefix autocomplete query over the
// search_as_you_type sub-fields of name.
func SuggestNames(prefix string, size int) Request {
	match := NewMultiMatch(prefix,
		FieldNameAutoComplete,
		FieldNameAutoComplete2,
		FieldNameAutoComplete3,
	).Type(TypeBoolPrefix)

	return NewRequest(match).From(0).Size(size)
}
