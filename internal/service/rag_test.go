package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragkb/internal/domain"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls [][]domain.Message
	reply string
	err   error
}

func (f *fakeGenerator) Chat(_ context.Context, messages []domain.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) lastCall(t *testing.T) []domain.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func TestAskQuestionAnswering(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{reply: "the fox jumps over the dog"}
	rag := NewRAG(env.retrieval, gen, 600, testLogger())
	ctx := context.Background()

	_, err := env.ingestion.IngestFile(ctx, []byte("The quick brown fox jumps over the lazy dog."), "doc.txt", "kb", "")
	require.NoError(t, err)

	answer, err := rag.Ask(ctx, "where does the fox jump", "kb", 5)
	require.NoError(t, err)
	assert.Equal(t, "the fox jumps over the dog", answer.Answer)
	assert.Equal(t, "kb", answer.KBName)
	assert.Equal(t, 1, answer.SnippetCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "doc.txt", answer.Sources[0].Filename)

	messages := gen.lastCall(t)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "answers questions based on the provided context")
	assert.Equal(t, "user", messages[1].Role)
	assert.Contains(t, messages[1].Content, "[Context 1 from doc.txt]")
	assert.Contains(t, messages[1].Content, "Question: where does the fox jump")
}

func TestAskPlaceholderOnlyKB(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{reply: "please re-upload your documents"}
	rag := NewRAG(env.retrieval, gen, 600, testLogger())
	ctx := context.Background()

	// a degraded parse indexes only placeholder text
	_, err := env.ingestion.IngestFile(ctx, []byte("%PDF-1.4"), "report.pdf", "kb", "")
	require.NoError(t, err)

	answer, err := rag.Ask(ctx, "describe the report contents", "kb", 5)
	require.NoError(t, err)

	messages := gen.lastCall(t)
	require.Len(t, messages, 2)
	assert.Equal(t, "You are a helpful assistant.", messages[0].Content)
	assert.Contains(t, messages[1].Content, "could not retrieve any valid content")
	assert.Contains(t, messages[1].Content, `"describe the report contents"`)

	// provenance stays visible even for filtered chunks
	assert.Equal(t, 1, answer.SnippetCount)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "report.pdf", answer.Sources[0].Filename)
}

func TestAskEmptyKB(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{reply: "nothing indexed yet"}
	rag := NewRAG(env.retrieval, gen, 600, testLogger())

	answer, err := rag.Ask(context.Background(), "describe the report contents", "kb", 5)
	require.NoError(t, err)
	assert.Zero(t, answer.SnippetCount)
	assert.Empty(t, answer.Sources)

	messages := gen.lastCall(t)
	assert.Contains(t, messages[1].Content, "could not retrieve any valid content")
}

func TestBuildMessagesSummarizeIntent(t *testing.T) {
	messages := buildMessages("summarize the report", "some context", 1)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "expert at summarizing documents")
	assert.Contains(t, messages[1].Content, "comprehensive summary")
}

func TestBuildMessagesSummaryContextCap(t *testing.T) {
	long := strings.Repeat("x", maxSummaryContext+500)
	messages := buildMessages("give me an overview", long, 1)
	assert.Contains(t, messages[1].Content, summaryTruncNote)
	assert.NotContains(t, messages[1].Content, long)
}

func TestIsSummarizeIntent(t *testing.T) {
	assert.True(t, isSummarizeIntent("Summarize this document"))
	assert.True(t, isSummarizeIntent("what is the main topic"))
	assert.True(t, isSummarizeIntent("give me a brief overview"))
	assert.False(t, isSummarizeIntent("where does the fox jump"))
}

func TestAssembleContextTruncatesChunks(t *testing.T) {
	rag := NewRAG(nil, nil, 20, testLogger())
	retrieved := []domain.Retrieved{{
		Text:     strings.Repeat("abcde ", 10),
		Metadata: map[string]any{domain.KeyFilename: "doc.txt"},
	}}
	block, valid := rag.assembleContext(retrieved)
	assert.Equal(t, 1, valid)
	assert.Contains(t, block, "[Context 1 from doc.txt]")
	assert.Contains(t, block, "abcde abcde abcde ab...")
}

func TestAssembleContextTruncatesOnRuneBoundary(t *testing.T) {
	rag := NewRAG(nil, nil, 20, testLogger())
	retrieved := []domain.Retrieved{{
		Text:     strings.Repeat("é", 50),
		Metadata: map[string]any{domain.KeyFilename: "doc.txt"},
	}}
	block, valid := rag.assembleContext(retrieved)
	assert.Equal(t, 1, valid)
	assert.True(t, utf8.ValidString(block))
	assert.Contains(t, block, strings.Repeat("é", 20)+"...")
	assert.NotContains(t, block, strings.Repeat("é", 21))
}

func TestAskMultibyteContextStaysValidUTF8(t *testing.T) {
	env := newTestEnv(t)
	gen := &fakeGenerator{reply: "ok"}
	rag := NewRAG(env.retrieval, gen, 600, testLogger())
	ctx := context.Background()

	// 761 bytes but only 381 runes; a byte-based cut would split a rune
	content := "a" + strings.Repeat("é", 380)
	_, err := env.ingestion.IngestFile(ctx, []byte(content), "doc.txt", "kb", "")
	require.NoError(t, err)

	answer, err := rag.Ask(ctx, "where is the accent", "kb", 5)
	require.NoError(t, err)
	assert.Equal(t, "ok", answer.Answer)

	messages := gen.lastCall(t)
	require.Len(t, messages, 2)
	assert.True(t, utf8.ValidString(messages[1].Content))
	assert.Contains(t, messages[1].Content, strings.Repeat("é", 380))
}

func TestBuildMessagesSummaryCapOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxSummaryContext+100)
	messages := buildMessages("give me an overview", long, 1)
	assert.True(t, utf8.ValidString(messages[1].Content))
	assert.Contains(t, messages[1].Content, summaryTruncNote)
	assert.NotContains(t, messages[1].Content, long)
}

func TestUsableContext(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		metadata map[string]any
		want     bool
	}{
		{"normal text", "a perfectly usable chunk of document text", nil, true},
		{"empty", "", nil, false},
		{"too short", "tiny", nil, false},
		{"legacy mock placeholder", "Mock text extracted from report.pdf", nil, false},
		{"parser placeholder", "Could not extract text from report.pdf: file is empty.", nil, false},
		{"extraction hint", "Please install pypdf for real PDF extraction", nil, false},
		{"degraded tag", "text that otherwise looks fine", map[string]any{domain.KeyParseDegraded: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, usableContext(tc.text, tc.metadata))
		})
	}
}
