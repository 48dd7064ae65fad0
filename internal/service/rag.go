package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"ragkb/internal/domain"
)

// Context-assembly bounds.
const (
	minContextChunkChars = 10
	maxSummaryContext    = 4000
	summaryTruncNote     = "\n\n[... context truncated for efficiency ...]"
)

// Prompt templates keyed by query intent.
const (
	systemDefault = "You are a helpful assistant."

	systemQA = "You are a helpful assistant that answers questions based on the provided context. " +
		"Provide accurate, detailed answers using only the information from the context. " +
		"If the context doesn't contain enough information to fully answer the question, say so clearly."

	systemSummary = "You are an expert at summarizing documents. Provide clear, concise summaries " +
		"based on the provided context. Keep your response focused and well-organized."
)

var summarizeMarkers = []string{"summarize", "summary", "summarise", "brief", "overview", "what is", "what are"}

// Answer is the result of one RAG query.
type Answer struct {
	Answer       string          `json:"answer"`
	Sources      []domain.Source `json:"sources"`
	KBName       string          `json:"kb_name"`
	SnippetCount int             `json:"context_snippets"`
}

// RAG combines retrieval, context assembly and generation.
type RAG struct {
	retrieval        *Retrieval
	generator        domain.Generator
	ctxCharsPerChunk int
	logger           *logrus.Logger
}

// NewRAG creates the generation pipeline.
func NewRAG(retrieval *Retrieval, generator domain.Generator, ctxCharsPerChunk int, logger *logrus.Logger) *RAG {
	if logger == nil {
		logger = logrus.New()
	}
	if ctxCharsPerChunk <= 0 {
		ctxCharsPerChunk = 600
	}
	return &RAG{retrieval: retrieval, generator: generator, ctxCharsPerChunk: ctxCharsPerChunk, logger: logger}
}

// Ask retrieves context for the question, filters out unusable chunks,
// builds an intent-matched prompt and calls the generator. Sources list
// every retrieved chunk, including ones excluded from the prompt, so
// provenance stays visible for diagnostics.
func (s *RAG) Ask(ctx context.Context, question, kbName string, topK int) (*Answer, error) {
	log := s.logger.WithFields(logrus.Fields{"kb": kbName, "top_k": topK})
	log.Info("starting rag query")

	retrieved, err := s.retrieval.Retrieve(ctx, question, kbName, topK)
	if err != nil {
		return nil, fmt.Errorf("rag query in kb %q: %w", kbName, err)
	}

	contextBlock, validCount := s.assembleContext(retrieved)
	if validCount == 0 && len(retrieved) > 0 {
		log.Warnf("no valid context: all %d retrieved chunks were empty or placeholder text", len(retrieved))
	}

	messages := buildMessages(question, contextBlock, validCount)
	answer, err := s.generator.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("generate answer in kb %q: %w", kbName, err)
	}

	sources := make([]domain.Source, 0, len(retrieved))
	for _, r := range retrieved {
		sources = append(sources, domain.Source{
			DocID:      r.DocID,
			Filename:   domain.StringField(r.Metadata, domain.KeyFilename),
			Score:      r.Score,
			ChunkIndex: domain.IntField(r.Metadata, domain.KeyChunkIndex),
		})
	}
	log.WithFields(logrus.Fields{"answer_chars": len(answer), "sources": len(sources)}).
		Info("rag query complete")
	return &Answer{
		Answer:       answer,
		Sources:      sources,
		KBName:       kbName,
		SnippetCount: len(retrieved),
	}, nil
}

// assembleContext filters and truncates retrieved chunks and joins them
// into one labeled context block.
func (s *RAG) assembleContext(retrieved []domain.Retrieved) (string, int) {
	var parts []string
	for i, r := range retrieved {
		text := strings.TrimSpace(r.Text)
		source := domain.StringField(r.Metadata, domain.KeyFilename)
		if source == "" {
			source = "Unknown"
		}
		if !usableContext(text, r.Metadata) {
			s.logger.WithFields(logrus.Fields{"source": source, "rank": i + 1}).
				Debug("skipping empty or placeholder chunk")
			continue
		}
		if cut, truncated := truncateRunes(text, s.ctxCharsPerChunk); truncated {
			text = cut + "..."
		}
		parts = append(parts, fmt.Sprintf("[Context %d from %s]\n%s", i+1, source, text))
	}
	return strings.Join(parts, "\n\n"), len(parts)
}

// usableContext rejects chunks that would ground the answer in parser
// failure output rather than document content. The payload tag written at
// ingest is the primary signal; the text heuristic covers points indexed
// before the tag existed.
func usableContext(text string, metadata map[string]any) bool {
	if utf8.RuneCountInString(text) < minContextChunkChars {
		return false
	}
	if domain.BoolField(metadata, domain.KeyParseDegraded) {
		return false
	}
	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "mock text") || strings.HasPrefix(lower, "could not extract text") {
		return false
	}
	if strings.Contains(lower, "install") && strings.Contains(lower, "for real") {
		return false
	}
	return true
}

func buildMessages(question, contextBlock string, validCount int) []domain.Message {
	var system, user string
	switch {
	case validCount == 0:
		system = systemDefault
		user = fmt.Sprintf(`The user asked: %q

However, I could not retrieve any valid content from the documents in the knowledge base. This usually happens when:
1. Documents were indexed without working text extraction (only placeholder text was stored)
2. Documents need to be re-uploaded so real text can be extracted and indexed
3. The documents are empty or couldn't be parsed

Please inform the user that they need to re-upload their documents to get real content extracted and indexed.`, question)
	case isSummarizeIntent(question):
		system = systemSummary
		if cut, truncated := truncateRunes(contextBlock, maxSummaryContext); truncated {
			contextBlock = cut + summaryTruncNote
		}
		user = fmt.Sprintf(`Based on the following context from the documents, provide a comprehensive summary.

Context:
%s

Please provide a well-structured summary that covers the main points, key information, and important details. Keep it concise but comprehensive.`, contextBlock)
	default:
		system = systemQA
		user = fmt.Sprintf(`Context from documents:
%s

Question: %s

Please provide a detailed answer based on the context above. Use specific information from the documents when available. If the context doesn't contain enough information to answer the question completely, acknowledge what information is missing.`, contextBlock, question)
	}
	return []domain.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// truncateRunes cuts s to at most limit runes. Cutting by bytes could
// split a multibyte rune and send invalid UTF-8 to the generator.
func truncateRunes(s string, limit int) (string, bool) {
	if utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	return string([]rune(s)[:limit]), true
}

func isSummarizeIntent(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range summarizeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
