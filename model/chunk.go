package model

// Chunk is a bounded slice of a document or of a pooled text.
// Offset is the rune offset of Text inside the text it was cut from.
// Degenerate marks a chunk that had to be cut without a full stop.
type Chunk struct {
	Text       string `json:"text"`
	Offset     int    `json:"offset"`
	Degenerate bool   `json:"degenerate,omitempty"`
}

// Len returns the length of the chunk text in runes
func (c Chunk) Len() int {
	return len([]rune(c.Text))
}
