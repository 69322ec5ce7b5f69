package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorForIsStable(t *testing.T) {
	first := ColorFor("11111111-2222-3333-4444-555555555555")
	second := ColorFor("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, first, second)
	assert.Contains(t, collaboratorPalette, first)
}

func TestColorForCoversPalette(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[ColorFor(id)] = true
	}
	// Not a distribution guarantee, just a sanity check that the hash does
	// not collapse onto one bucket.
	assert.Greater(t, len(seen), 1)
}
