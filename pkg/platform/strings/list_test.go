package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanList(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, CleanList(nil))
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Equal(t, []string{}, CleanList([]string{}))
	})

	t.Run("trims drops blanks and duplicates in order", func(t *testing.T) {
		in := []string{"  2 reels ", "story", "", "   ", "2 reels", "story "}
		assert.Equal(t, []string{"2 reels", "story"}, CleanList(in))
	})

	t.Run("does not touch the input", func(t *testing.T) {
		in := []string{" a ", "a"}
		_ = CleanList(in)
		assert.Equal(t, []string{" a ", "a"}, in)
	})

	t.Run("comparison is case sensitive", func(t *testing.T) {
		assert.Equal(t, []string{"Logo", "logo"}, CleanList([]string{"Logo", "logo"}))
	})
}
