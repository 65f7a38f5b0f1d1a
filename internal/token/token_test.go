package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_LengthAndAlphabet(t *testing.T) {
	id := New(DefaultLen)
	assert.Len(t, id, DefaultLen)
	for _, r := range id {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		assert.True(t, ok, "unexpected character %q", r)
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New(DefaultLen)
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNew_CustomLength(t *testing.T) {
	assert.Len(t, New(8), 8)
	assert.Len(t, New(32), 32)
}
