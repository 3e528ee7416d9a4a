package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupRequest struct {
	ISBN  string      `json:"isbn" validate:"omitempty,isbn"`
	Limit int         `json:"limit" validate:"gte=0,lte=100"`
	Items []lookupRow `json:"items" validate:"dive"`
}

type lookupRow struct {
	Barcode string `json:"barcode" validate:"required,max=8"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.Nil(t, ValidateStruct(lookupRequest{ISBN: "978-2-07-040850-4", Limit: 10}))
		assert.Nil(t, ValidateStruct(lookupRequest{ISBN: "2-07-036822-x"}))
	})

	t.Run("bad isbn", func(t *testing.T) {
		details := ValidateStruct(lookupRequest{ISBN: "12345"})
		require.Len(t, details, 1)
		assert.Equal(t, "isbn", details[0].Field)
		assert.Contains(t, details[0].Message, "ISBN")
	})

	t.Run("nested field path", func(t *testing.T) {
		details := ValidateStruct(lookupRequest{Items: []lookupRow{{Barcode: "ok"}, {Barcode: ""}}})
		require.Len(t, details, 1)
		assert.Equal(t, "items[1].barcode", details[0].Field)
		assert.Equal(t, "barcode is required", details[0].Message)
	})

	t.Run("range", func(t *testing.T) {
		details := ValidateStruct(lookupRequest{Limit: 500})
		require.Len(t, details, 1)
		assert.Equal(t, "limit", details[0].Field)
	})
}
