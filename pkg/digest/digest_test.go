package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	raw := "file:xxh64:abcd1234"

	v, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, v.String())
}

func TestParseRejectsInvalidFormat(t *testing.T) {
	t.Parallel()

	_, err := Parse("file:sha256")
	assert.Error(t, err)
}

func TestParseRejectsUnknownAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := Parse("file:md5:abcd")
	assert.Error(t, err)
}

func TestParseEmptyIsZero(t *testing.T) {
	t.Parallel()

	v, err := Parse("")
	require.NoError(t, err)
	assert.True(t, v.IsZero())
}

func TestShort(t *testing.T) {
	t.Parallel()

	v, err := Parse("dir:sha256:0123456789abcdef0123")
	require.NoError(t, err)
	assert.Equal(t, "sha256:0123456789ab", v.Short())

	assert.Equal(t, "xxh64:01", Digest{Kind: KindFile, Algorithm: AlgorithmXXH64, Sum: "01"}.Short())
	assert.Empty(t, Digest{}.Short())
}

func TestEqualComparesAllFields(t *testing.T) {
	t.Parallel()

	a := Digest{Kind: KindFile, Algorithm: AlgorithmXXH64, Sum: "01"}
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(Digest{Kind: KindDir, Algorithm: AlgorithmXXH64, Sum: "01"}))
	assert.False(t, a.Equal(Digest{Kind: KindFile, Algorithm: AlgorithmSHA256, Sum: "01"}))
}
