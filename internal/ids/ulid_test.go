package ids

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvocationID_SortableAndUnique(t *testing.T) {
	prev := NewInvocationID()
	for i := 0; i < 100; i++ {
		next := NewInvocationID()
		require.Len(t, next, 26)
		_, err := ulid.Parse(next)
		require.NoError(t, err)
		assert.Less(t, prev, next)
		prev = next
	}
}
