package validator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testItem struct {
	Name  string  `json:"name" validate:"required,notblank,max=20"`
	Price int64   `json:"price" validate:"gte=0"`
	Score float64 `json:"score" validate:"gte=0"`
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(testItem{Name: "Snack", Price: 10}))
}

func TestValidate_UsesJSONFieldNames(t *testing.T) {
	err := Validate(testItem{Price: -1})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be greater than or equal to 0", fields["price"])
}

func TestValidate_BlankString(t *testing.T) {
	err := Validate(testItem{Name: "   "})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must not be blank", valErr.Fields()["name"])
}

func TestValidate_StringTooLong(t *testing.T) {
	err := Validate(testItem{Name: strings.Repeat("x", 21)})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "must be at most 20 characters", valErr.Fields()["name"])
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Errors: []FieldError{{Field: "name", Message: "is required"}}}
	assert.Equal(t, "field 'name' is required", err.Error())
}

func TestValidateEach(t *testing.T) {
	err := ValidateEach([]testItem{
		{Name: "ok"},
		{Name: "", Price: -5},
	})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Len(t, fields, 2)
	assert.Contains(t, fields, "[1].name")
	assert.Contains(t, fields, "[1].price")
}

func TestValidateEach_Empty(t *testing.T) {
	err := ValidateEach([]testItem{})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "items")
}

func TestValidateEach_AllValid(t *testing.T) {
	assert.NoError(t, ValidateEach([]testItem{{Name: "a"}, {Name: "b"}}))
}

// ─── Decode ───────────────────────────────────────────────────────────────────

func TestDecode_Malformed(t *testing.T) {
	cases := map[string]string{
		"syntax":        `{"name":`,
		"unknown field": `{"name":"a","colour":"red"}`,
		"wrong type":    `{"name":"a","price":"ten"}`,
		"trailing":      `{"name":"a"} {}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			var dst testItem
			err := Decode(req, &dst)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedBody))
		})
	}
}

func TestDecodeAndValidate(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","price":1}`))
	var dst testItem

	err := DecodeAndValidate(req, &dst)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.False(t, errors.Is(err, ErrMalformedBody))
}
