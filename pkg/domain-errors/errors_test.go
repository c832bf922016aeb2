package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeConflict, "duplicate")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("walks wrapped domain errors", func(t *testing.T) {
		inner := New(CodeNotFound, "profile not found")
		outer := Wrap(inner, CodeInternal, "failed to load profile")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeNotFound))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeForbidden, "nope"))
		assert.True(t, Is(err, CodeForbidden))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInvalidTransition, CodeOf(New(CodeInvalidTransition, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "x", MessageOf(Wrap(errors.New("cause"), CodeValidation, "x")))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "load: boom", Wrap(errors.New("boom"), CodeInternal, "load").Error())
	assert.Equal(t, "missing 3 fields", Newf(CodeValidation, "missing %d fields", 3).Error())
}
