package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"finrag/internal/ai"
	"finrag/internal/retrieval"
)

type fakeChat struct {
	reply    string
	err      error
	calls    int
	messages []ai.ChatMessage
}

func (f *fakeChat) Model() string { return "gpt-test" }

func (f *fakeChat) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func results(contents ...string) []retrieval.Result {
	out := make([]retrieval.Result, len(contents))
	for i, c := range contents {
		out[i] = retrieval.Result{ChunkID: "c" + string(rune('a'+i)), DocumentID: "d1", DocumentTitle: "10-K", ChunkIndex: i, Content: c}
	}
	return out
}

func TestAnswerNoResultsSkipsBackend(t *testing.T) {
	chat := &fakeChat{reply: "should not be used"}
	s := NewSynthesizer(chat, 0, nil)

	a := s.Answer(context.Background(), "what was revenue?", nil)
	assert.Equal(t, NoResultsText, a.Text)
	assert.False(t, a.Fallback)
	assert.Zero(t, chat.calls)
}

func TestAnswerFromModelWithNumberedContext(t *testing.T) {
	chat := &fakeChat{reply: " Revenue was $4.2B [1]. "}
	s := NewSynthesizer(chat, 0, nil)

	a := s.Answer(context.Background(), "What was revenue?", results("Revenue was $4.2B.", "Margins rose."))
	assert.Equal(t, "Revenue was $4.2B [1].", a.Text)
	assert.False(t, a.Fallback)
	assert.Equal(t, "gpt-test", a.Model)
	require.Len(t, a.Citations, 2)
	assert.Equal(t, 1, a.Citations[0].Number)
	assert.Equal(t, "ca", a.Citations[0].ChunkID)

	require.Len(t, chat.messages, 2)
	assert.Equal(t, "system", chat.messages[0].Role)
	assert.Contains(t, chat.messages[0].Content, "only the numbered context")
	assert.Contains(t, chat.messages[1].Content, "[1] Revenue was $4.2B.")
	assert.Contains(t, chat.messages[1].Content, "[2] Margins rose.")
	assert.Contains(t, chat.messages[1].Content, "Question: What was revenue?")
}

func TestAnswerBackendFailureComposesLocalAnswer(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	chat := &fakeChat{err: errors.New("502 bad gateway")}
	s := NewSynthesizer(chat, 0, zap.New(core))

	a := s.Answer(context.Background(), "revenue", results("Revenue was $4.2B.", "Margins rose."))
	assert.True(t, a.Fallback)
	assert.Empty(t, a.Model)
	assert.Equal(t, "Based on the available information:\n\n[1] Revenue was $4.2B.\n\n[2] Margins rose.", a.Text)
	assert.Len(t, a.Citations, 2)
	assert.Equal(t, 1, logs.Len())
}

func TestAnswerEmptyCompletionIsFailure(t *testing.T) {
	s := NewSynthesizer(&fakeChat{reply: "   "}, 0, nil)
	a := s.Answer(context.Background(), "q", results("x"))
	assert.True(t, a.Fallback)
}

func TestAnswerWithoutChatClient(t *testing.T) {
	s := NewSynthesizer(nil, 0, nil)
	assert.False(t, s.Enabled())
	a := s.Answer(context.Background(), "q", results("excerpt"))
	assert.True(t, a.Fallback)
	assert.Contains(t, a.Text, "[1] excerpt")
}

func TestWindowKeepsHighestRankedWithinBudget(t *testing.T) {
	s := NewSynthesizer(nil, 10, nil)

	passages, citations := s.window(results(strings.Repeat("a", 20), strings.Repeat("b", 28), strings.Repeat("c", 4)))
	require.Len(t, passages, 1, "second passage would exceed the budget")
	assert.Len(t, citations, 1)

	passages, _ = s.window(results(strings.Repeat("z", 100), "short"))
	require.Len(t, passages, 1)
	assert.Len(t, passages[0], 40, "an oversized first passage is truncated to the budget")
}
