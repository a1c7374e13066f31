package domainerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(Conflict("iccid %s duplicado", "89571")))
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("tx: %w", NotFound("lote"))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", State("la SIM ya fue vendida"))
	assert.ErrorIs(t, err, ErrState)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, State("otro mensaje"), "a target with a message is not a kind check")
}

func TestExternalKeepsCause(t *testing.T) {
	cause := errors.New("timeout")
	err := External(cause, "winred no responde")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "external: winred no responde: timeout", err.Error())
	assert.Equal(t, "capacity: lote lleno", Capacity("lote lleno").Error())
}
