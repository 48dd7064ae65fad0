package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkb/internal/domain"
	"ragkb/internal/service"
)

type fakeChat struct {
	question string
	answer   *service.Answer
	err      error
}

func (f *fakeChat) Ask(_ context.Context, question, _ string, _ int) (*service.Answer, error) {
	f.question = question
	return f.answer, f.err
}

func typed(m Model, s string) Model {
	m.input.SetValue(s)
	return m
}

func pressEnter(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestEnterSubmitsQuestion(t *testing.T) {
	chat := &fakeChat{answer: &service.Answer{
		Answer:       "42",
		Sources:      []domain.Source{{Filename: "doc.txt", ChunkIndex: 1, Score: 0.987}},
		SnippetCount: 1,
	}}
	m := New(chat, "kb", 5)

	m = pressEnter(t, typed(m, "  what is the answer  "))
	assert.Equal(t, "what is the answer", chat.question)
	assert.Empty(t, m.input.Value())

	transcript := m.renderTranscript()
	assert.Contains(t, transcript, "what is the answer")
	assert.Contains(t, transcript, "42")
	assert.Contains(t, transcript, "doc.txt#1 (0.987)")
	assert.Contains(t, m.status, "1 snippets")
}

func TestEnterWithEmptyInputDoesNothing(t *testing.T) {
	chat := &fakeChat{}
	m := pressEnter(t, New(chat, "kb", 5))
	assert.Empty(t, chat.question)
	assert.Empty(t, m.history)
}

func TestAskErrorGoesToStatus(t *testing.T) {
	chat := &fakeChat{err: errors.New("store unreachable")}
	m := pressEnter(t, typed(New(chat, "kb", 5), "hello there"))
	assert.True(t, strings.HasPrefix(m.status, "Error: "))
	assert.Contains(t, m.status, "store unreachable")
}

func TestCtrlCQuits(t *testing.T) {
	m := New(&fakeChat{}, "kb", 5)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
}
