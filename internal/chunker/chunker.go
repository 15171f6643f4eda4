// Package chunker splits document text into overlapping fixed-size windows.
//
// Sizes are counted in characters (Unicode code points), not bytes.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultSize is the default number of characters per chunk.
	DefaultSize = 1000
	// DefaultOverlap is the default number of characters shared by adjacent chunks.
	DefaultOverlap = 200

	charsPerToken = 4
)

// ErrInvalidConfig is returned by New for sizes that cannot make progress.
var ErrInvalidConfig = errors.New("chunker: invalid configuration")

// Chunk is one window of the source text.
type Chunk struct {
	Index      int
	Content    string
	Start      int
	End        int
	TokenCount int
}

// Chunker produces the same chunks for the same input every time.
type Chunker struct {
	size    int
	overlap int
}

// New validates the window parameters. overlap must be strictly smaller than
// size so that every step advances.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split cuts text into windows of at most Size characters. Each window after
// the first starts Overlap characters before the previous one ended; the last
// window ends exactly at the end of the text and may be shorter.
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		content := string(runes[start:end])
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Content:    content,
			Start:      start,
			End:        end,
			TokenCount: EstimateTokens(content),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reconstruct joins chunk contents in order, dropping the overlapping prefix
// of every chunk after the first.
func Reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, content := range chunks {
		if i == 0 {
			b.WriteString(content)
			continue
		}
		runes := []rune(content)
		if overlap < len(runes) {
			b.WriteString(string(runes[overlap:]))
		}
	}
	return b.String()
}

// EstimateTokens approximates a token count as one token per four characters.
func EstimateTokens(text string) int {
	n := len([]rune(text))
	return (n + charsPerToken - 1) / charsPerToken
}
