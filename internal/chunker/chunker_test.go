package chunker

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.size, tt.overlap)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSplitTwentyFiveHundredCharacters(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 250)
	chunks := c.Split(text)

	require.Len(t, chunks, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{chunks[0].Index, chunks[1].Index, chunks[2].Index})
	assert.Len(t, chunks[0].Content, 1000)
	assert.Len(t, chunks[1].Content, 1000)
	assert.Len(t, chunks[2].Content, 900)
	assert.Equal(t, 1600, chunks[2].Start)
	assert.Equal(t, 2500, chunks[2].End)
	assert.Equal(t, 250, chunks[0].TokenCount)
}

func TestSplitShortTextYieldsOneChunk(t *testing.T) {
	c, err := New(1000, 200)
	require.NoError(t, err)

	chunks := c.Split("short filing note")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short filing note", chunks[0].Content)

	exact := strings.Repeat("x", 1000)
	require.Len(t, c.Split(exact), 1)
	assert.Empty(t, c.Split(""))
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	chunks := c.Split("日本語のテキスト")
	require.Len(t, chunks, 3)
	assert.Equal(t, "日本語の", chunks[0].Content)
	assert.Equal(t, "のテキス", chunks[1].Content)
	assert.Equal(t, "スト", chunks[2].Content)
}

func TestSplitProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []rune("abcdefghijklmnopqrstuvwxyz €£¥0123456789\n")

	for i := 0; i < 200; i++ {
		size := rng.Intn(60) + 2
		overlap := rng.Intn(size)
		length := rng.Intn(400)

		runes := make([]rune, length)
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		text := string(runes)

		c, err := New(size, overlap)
		require.NoError(t, err)

		first := c.Split(text)
		second := c.Split(text)
		require.Equal(t, first, second, "split must be deterministic")

		step := size - overlap
		maxSteps := length/step + 1
		require.LessOrEqual(t, len(first), maxSteps)

		contents := make([]string, len(first))
		for idx, ch := range first {
			assert.Equal(t, idx, ch.Index)
			assert.LessOrEqual(t, len([]rune(ch.Content)), size)
			contents[idx] = ch.Content

			if idx+1 < len(first) {
				cur := []rune(ch.Content)
				next := []rune(first[idx+1].Content)
				require.Len(t, cur, size, "only the final chunk may be short")
				assert.Equal(t, string(cur[len(cur)-overlap:]), string(next[:overlap]))
			}
		}

		assert.Equal(t, text, Reconstruct(contents, overlap))
	}
}

func TestSplitNearMaximalOverlapTerminates(t *testing.T) {
	c, err := New(100, 99)
	require.NoError(t, err)

	text := strings.Repeat("z", 1000)
	chunks := c.Split(text)
	assert.Len(t, chunks, 901)
	assert.Equal(t, text, Reconstruct(contentsOf(chunks), 99))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

func contentsOf(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
