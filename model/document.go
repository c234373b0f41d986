package model

// Document is one text handed to the pipeline for a single request.
// Index is its position in the request and is reported back as the source index.
type Document struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// NewDocuments wraps plain texts into documents indexed by position
func NewDocuments(texts []string) []Document {
	docs := make([]Document, len(texts))
	for i, text := range texts {
		docs[i] = Document{Index: i, Text: text}
	}
	return docs
}

// Texts returns the document texts in order
func Texts(docs []Document) []string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Text
	}
	return texts
}
