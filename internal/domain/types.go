package domain

// Payload keys shared across the pipeline.
const (
	KeyText          = "text"
	KeyDocID         = "doc_id"
	KeyFilename      = "filename"
	KeyChunkIndex    = "chunk_index"
	KeySource        = "source"
	KeyParseDegraded = "parse_degraded"
)

// Chunk is a contiguous span of a document's parsed text.
type Chunk struct {
	Text     string
	Metadata map[string]any
}

// Point is the vector store's atomic storage unit. Point IDs are unique
// within a knowledge base; re-upserting an ID replaces vector and payload.
type Point struct {
	ID      string
	Vector  []float64
	Payload map[string]any
}

// QueryResult is a raw similarity-search hit.
type QueryResult struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Retrieved is a formatted retrieval result with the payload flattened
// into Metadata alongside filename, chunk_index and point_id.
type Retrieved struct {
	Text     string
	Score    float64
	DocID    string
	Metadata map[string]any
}

// Message is a role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source attributes an answer to one retrieved chunk.
type Source struct {
	DocID      string  `json:"doc_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	ChunkIndex int     `json:"chunk_index"`
}

// StringField returns a string payload field, or empty when absent.
func StringField(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

// IntField returns an int payload field, tolerating the float64 values
// JSON decoding produces. Returns -1 when absent.
func IntField(payload map[string]any, key string) int {
	if payload == nil {
		return -1
	}
	switch v := payload[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return -1
}

// BoolField returns a bool payload field, false when absent.
func BoolField(payload map[string]any, key string) bool {
	if payload == nil {
		return false
	}
	if v, ok := payload[key].(bool); ok {
		return v
	}
	return false
}
