package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Count int     `json:"count" validate:"gte=1"`
	Rate  float64 `json:"rate,omitempty" validate:"gte=0"`
	Name  string  `validate:"required"`
}

func TestValidateStructValid(t *testing.T) {
	assert.Empty(t, ValidateStruct(&sample{Count: 1, Name: "x"}))
	assert.NoError(t, Check(sample{Count: 1, Name: "x"}))
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	fields := ValidateStruct(&sample{Count: 0, Rate: -1})

	assert.Equal(t, "The field 'count' must be greater than or equal to 1.", fields["count"])
	assert.Equal(t, "The field 'rate' must be greater than or equal to 0.", fields["rate"])
	assert.Equal(t, "The field 'Name' is required.", fields["Name"])
}

func TestCheckReturnsError(t *testing.T) {
	err := Check(sample{Name: "x"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "count")
	assert.Contains(t, err.Error(), "'count'")
}
