package chunker

import (
	"regexp"
	"strings"

	"ragkb/internal/domain"
)

// Mode selects the unit the sliding window operates on.
type Mode string

const (
	ModeChars     Mode = "chars"
	ModeWords     Mode = "words"
	ModeSentences Mode = "sentences"
)

// Chunker splits normalized document text into overlapping, order-preserving
// segments with positional metadata.
type Chunker struct {
	mode    Mode
	size    int
	overlap int
}

// New creates a chunker. Size is in units of the mode (characters, words or
// sentences); overlap is in the same units.
func New(mode Mode, size, overlap int) *Chunker {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{mode: mode, size: size, overlap: overlap}
}

// Chunk splits text and merges base metadata into every chunk's metadata
// alongside chunk_index and the positional bounds for the active mode.
func (c *Chunker) Chunk(text string, base map[string]any) []domain.Chunk {
	switch c.mode {
	case ModeWords:
		return SplitWords(text, c.size, c.overlap, base)
	case ModeSentences:
		return SplitSentences(text, c.size, c.overlap, base)
	default:
		return SplitChars(text, c.size, c.overlap, base)
	}
}

// SplitChars slides a character window of chunkSize with the given overlap.
// The final window extends to the end of the text, so concatenating the
// chunks with the overlap removed reconstructs the input exactly.
func SplitChars(text string, chunkSize, overlap int, base map[string]any) []domain.Chunk {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []domain.Chunk{{
			Text: text,
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: 0,
				"start_pos":          0,
				"end_pos":            len(runes),
			}),
		}}
	}

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + chunkSize
		if end >= len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Text: string(runes[start:end]),
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: idx,
				"start_pos":          start,
				"end_pos":            end,
			}),
		})
		if end == len(runes) {
			break
		}
		start = advance(start, end, overlap, chunkSize)
	}
	return chunks
}

// SplitWords applies the same sliding window over whitespace-separated words.
func SplitWords(text string, chunkSize, overlap int, base map[string]any) []domain.Chunk {
	words := strings.Fields(text)
	if len(words) <= chunkSize {
		return []domain.Chunk{{
			Text: text,
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: 0,
				"word_start":         0,
				"word_end":           len(words),
			}),
		}}
	}

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + chunkSize
		if end >= len(words) {
			end = len(words)
		}
		chunks = append(chunks, domain.Chunk{
			Text: strings.Join(words[start:end], " "),
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: idx,
				"word_start":         start,
				"word_end":           end,
			}),
		})
		if end == len(words) {
			break
		}
		start = advance(start, end, overlap, chunkSize)
	}
	return chunks
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]+\s+`)

// SplitSentences applies the sliding window over regex-delimited sentences.
func SplitSentences(text string, chunkSize, overlap int, base map[string]any) []domain.Chunk {
	raw := sentenceSplitRe.Split(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) <= chunkSize {
		return []domain.Chunk{{
			Text: text,
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: 0,
				"sentence_start":     0,
				"sentence_end":       len(sentences),
			}),
		}}
	}

	var chunks []domain.Chunk
	start := 0
	for idx := 0; ; idx++ {
		end := start + chunkSize
		if end >= len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Chunk{
			Text: strings.Join(sentences[start:end], ". ") + ".",
			Metadata: mergeMetadata(base, map[string]any{
				domain.KeyChunkIndex: idx,
				"sentence_start":     start,
				"sentence_end":       end,
			}),
		})
		if end == len(sentences) {
			break
		}
		start = advance(start, end, overlap, chunkSize)
	}
	return chunks
}

// advance moves the window start back by the overlap. When the overlap
// would not advance the window, force a single-unit step so chunking
// terminates.
func advance(start, end, overlap, chunkSize int) int {
	next := end - overlap
	if overlap >= chunkSize || next <= start {
		next = start + 1
	}
	return next
}

func mergeMetadata(base, pos map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(pos))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range pos {
		merged[k] = v
	}
	return merged
}
