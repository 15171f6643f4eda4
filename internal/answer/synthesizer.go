// Package answer builds grounded answers from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finrag/internal/ai"
	"finrag/internal/chunker"
	"finrag/internal/retrieval"
)

const (
	NoResultsText  = "No relevant information found."
	fallbackPrefix = "Based on the available information:"

	DefaultMaxContextTokens = 3000

	systemPrompt = "You are a financial research assistant. Answer the question using only the numbered context passages. " +
		"Cite every passage you rely on with its number in square brackets, for example [1]. " +
		"If the context does not contain the answer, say that the documents do not cover it. Do not make up figures."
)

type ChatCompleter interface {
	Model() string
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type Citation struct {
	Number        int    `json:"number"`
	ChunkID       string `json:"chunkId"`
	DocumentID    string `json:"documentId"`
	DocumentTitle string `json:"documentTitle"`
	ChunkIndex    int    `json:"chunkIndex"`
}

// Answer is either model output (Fallback false, Model set) or a locally
// composed summary of the excerpts (Fallback true).
type Answer struct {
	Text      string
	Fallback  bool
	Citations []Citation
	Model     string
}

type Synthesizer struct {
	chat      ChatCompleter
	maxTokens int
	logger    *zap.Logger
}

// NewSynthesizer accepts a nil chat client; every answer is then composed
// locally.
func NewSynthesizer(chat ChatCompleter, maxContextTokens int, logger *zap.Logger) *Synthesizer {
	if maxContextTokens <= 0 {
		maxContextTokens = DefaultMaxContextTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{chat: chat, maxTokens: maxContextTokens, logger: logger}
}

// Enabled reports whether a chat backend is configured.
func (s *Synthesizer) Enabled() bool {
	return s != nil && s.chat != nil
}

// Answer never fails: no results yield NoResultsText without a backend call,
// and a backend error yields the local excerpt summary.
func (s *Synthesizer) Answer(ctx context.Context, query string, results []retrieval.Result) Answer {
	if len(results) == 0 {
		return Answer{Text: NoResultsText, Citations: []Citation{}}
	}

	passages, citations := s.window(results)
	if s.chat == nil {
		return local(passages, citations)
	}

	text, err := s.chat.Complete(ctx, buildMessages(query, passages))
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("empty completion")
	}
	if err != nil {
		s.logger.Warn("answer synthesis failed, composing local answer",
			zap.String("model", s.chat.Model()),
			zap.Int("passages", len(passages)),
			zap.Error(err))
		return local(passages, citations)
	}
	return Answer{Text: strings.TrimSpace(text), Citations: citations, Model: s.chat.Model()}
}

// window keeps results in rank order while they fit the token budget. Only
// the first result is ever truncated, so a lone oversized chunk still
// produces context.
func (s *Synthesizer) window(results []retrieval.Result) ([]string, []Citation) {
	var passages []string
	var citations []Citation
	used := 0
	for i, r := range results {
		content := r.Content
		tokens := chunker.EstimateTokens(content)
		if used+tokens > s.maxTokens {
			if i > 0 {
				break
			}
			content = truncateRunes(content, s.maxTokens*4)
			tokens = chunker.EstimateTokens(content)
		}
		used += tokens
		passages = append(passages, content)
		citations = append(citations, Citation{
			Number:        i + 1,
			ChunkID:       r.ChunkID,
			DocumentID:    r.DocumentID,
			DocumentTitle: r.DocumentTitle,
			ChunkIndex:    r.ChunkIndex,
		})
	}
	return passages, citations
}

func buildMessages(query string, passages []string) []ai.ChatMessage {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] %s\n", i+1, p)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\n\nAnswer:")

	return []ai.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func local(passages []string, citations []Citation) Answer {
	var b strings.Builder
	b.WriteString(fallbackPrefix)
	for i, p := range passages {
		fmt.Fprintf(&b, "\n\n[%d] %s", i+1, p)
	}
	return Answer{Text: b.String(), Fallback: true, Citations: citations}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
