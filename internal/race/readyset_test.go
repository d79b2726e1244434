package race

import (
	"testing"

	"github.com/keysprint/core/internal/ids"
	"github.com/stretchr/testify/assert"
)

func TestReadySetAllRespondedRequiresEveryMember(t *testing.T) {
	rs := NewReadySet()
	a, b := ids.NewPlayerId(), ids.NewPlayerId()

	assert.False(t, rs.AllResponded(2))

	assert.True(t, rs.MarkResponded(a))
	assert.False(t, rs.AllResponded(2))

	assert.True(t, rs.MarkResponded(b))
	assert.True(t, rs.AllResponded(2))
}

func TestReadySetDuplicateResponseIgnored(t *testing.T) {
	rs := NewReadySet()
	a := ids.NewPlayerId()

	assert.True(t, rs.MarkResponded(a))
	assert.False(t, rs.MarkResponded(a))
	assert.Equal(t, 1, rs.Count())
}

func TestReadySetResetClearsResponses(t *testing.T) {
	rs := NewReadySet()
	a := ids.NewPlayerId()
	rs.MarkResponded(a)
	rs.Reset()
	assert.Equal(t, 0, rs.Count())
}
