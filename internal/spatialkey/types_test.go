package spatialkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootIsLevelZero(t *testing.T) {
	r := Root()
	assert.Equal(t, 0, r.Level())
	_, ok := r.Parent()
	assert.False(t, ok, "root has no parent")
}

func TestChildParentRoundTrip(t *testing.T) {
	k := Root()
	for i := uint8(0); i < 5; i++ {
		var ok bool
		k, ok = k.Child(i % 8)
		require.True(t, ok)
	}
	assert.Equal(t, 5, k.Level())

	p, ok := k.Parent()
	require.True(t, ok)
	assert.Equal(t, 4, p.Level())

	c, ok := p.Child(4 % 8)
	require.True(t, ok)
	assert.Equal(t, k, c, "re-descending via the same child index reconstructs the original key")
}

func TestChildAtMaxDepthFails(t *testing.T) {
	k := Root()
	var ok bool
	for i := 0; i < MaxDepth; i++ {
		k, ok = k.Child(0)
		require.True(t, ok)
	}
	_, ok = k.Child(0)
	assert.False(t, ok)
}

func TestEqualityIsBitwise(t *testing.T) {
	a, _ := Root().Child(2)
	b, _ := Root().Child(2)
	assert.Equal(t, a, b)
	assert.True(t, a == b)

	c, _ := Root().Child(3)
	assert.NotEqual(t, a, c)
}

func TestBytesRoundTrip(t *testing.T) {
	k := Root()
	for _, idx := range []uint8{1, 2, 3, 4} {
		var ok bool
		k, ok = k.Child(idx)
		require.True(t, ok)
	}
	b := k.Bytes()
	parsed, err := ParseBytes(b)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestBytesDeterministicAcrossEqualKeys(t *testing.T) {
	a, _ := Root().Child(5)
	b, _ := Root().Child(5)
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestParseBytesRejectsMalformed(t *testing.T) {
	_, err := ParseBytes(nil)
	assert.Error(t, err)

	_, err = ParseBytes([]byte{3, 1, 2}) // claims level 3 but only 2 path bytes
	assert.Error(t, err)
}

func TestLessIsStrictOrder(t *testing.T) {
	root := Root()
	child, _ := root.Child(0)
	assert.True(t, root.Less(child))
	assert.False(t, child.Less(root))
	assert.False(t, root.Less(root))

	a, _ := Root().Child(1)
	b, _ := Root().Child(2)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
