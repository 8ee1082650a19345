package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("loading: %w", NotFound("portfolio %d not found", 4))

	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrInvalidState)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "portfolio 4 not found", NotFound("portfolio %d not found", 4).Error())
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to load prices")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestParseDateAndRange(t *testing.T) {
	d, err := ParseDate("dateStart", "2022-02-15")
	assert.NoError(t, err)
	assert.Equal(t, NewDate(2022, 2, 15), d)

	_, err = ParseDate("dateStart", "15/02/2022")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseDate("dateEnd", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "missing dateEnd")

	assert.NoError(t, ValidateRange(NewDate(2022, 1, 1), NewDate(2022, 1, 1)))
	assert.ErrorIs(t, ValidateRange(NewDate(2022, 1, 2), NewDate(2022, 1, 1)), ErrInvalidInput)
}
