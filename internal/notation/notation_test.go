package notation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	code, err := Encode(4, 2)
	require.NoError(t, err)
	assert.Equal(t, "C/NE", code)

	code, err = Encode(0, 8)
	require.NoError(t, err)
	assert.Equal(t, "NW/SE", code)
}

func TestRoundTrip(t *testing.T) {
	seen := make(map[string]struct{}, 81)

	for b := 0; b < 9; b++ {
		for c := 0; c < 9; c++ {
			// When: a pair is encoded and decoded
			code, err := Encode(b, c)
			require.NoError(t, err)

			gotB, gotC, err := Decode(code)

			// Then: the original pair comes back and no code is reused
			require.NoError(t, err)
			assert.Equal(t, b, gotB)
			assert.Equal(t, c, gotC)

			_, dup := seen[code]
			assert.False(t, dup, "code %s reused", code)
			seen[code] = struct{}{}
		}
	}
}

func TestInvalid(t *testing.T) {
	t.Run("Encode rejects out of range indices", func(t *testing.T) {
		for _, pair := range [][2]int{{-1, 0}, {0, -1}, {9, 0}, {0, 9}} {
			_, err := Encode(pair[0], pair[1])
			require.ErrorIs(t, err, ErrInvalidNotation)
		}
	})

	t.Run("Decode rejects unknown codes", func(t *testing.T) {
		for _, code := range []string{"", "C", "C/", "/C", "C/X", "c/ne", "C/NE/N", "C NE"} {
			_, _, err := Decode(code)
			require.ErrorIs(t, err, ErrInvalidNotation, code)
		}
	})
}
