package model

// Excerpt is a sentence-aligned quotation surrounding an answer
type Excerpt struct {
	SourceIndex int    `json:"source_index"`
	Text        string `json:"text"`
}
