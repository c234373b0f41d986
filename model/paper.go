package model

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Paper is a research document kept in the document store
type Paper struct {
	ID          int64      `json:"id"`
	RID         uuid.UUID  `json:"rid"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors,omitempty"`
	Abstract    string     `json:"abstract,omitempty"`
	Body        string     `json:"body,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishTime *time.Time `json:"publish_time,omitempty"`
	Metadata    Metadata   `json:"metadata,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Text is the text handed to the pipeline, the body when present, otherwise the abstract
func (p *Paper) Text() string {
	if strings.TrimSpace(p.Body) != "" {
		return p.Body
	}
	return p.Abstract
}

// PaperHit is a paper returned by a store search
type PaperHit struct {
	Paper     *Paper   `json:"paper"`
	Rank      float64  `json:"rank"`
	Fragments []string `json:"fragments,omitempty"`
}

// paperFile is the layout of one entry of a paper import file
type paperFile struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Abstract    string   `json:"abstract"`
	Body        string   `json:"body"`
	URL         string   `json:"url"`
	PublishTime string   `json:"publishTime"`
	Metadata    Metadata `json:"metadata"`
}

// NewPapersFromFile reads a JSON array of papers.
// publishTime accepts RFC 3339, YYYY-MM-DD or YYYY; anything else is ignored.
func NewPapersFromFile(filePath string) ([]*Paper, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var entries []paperFile
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, err
	}

	papers := make([]*Paper, 0, len(entries))
	for _, entry := range entries {
		paper := &Paper{
			Title:       entry.Title,
			Authors:     entry.Authors,
			Abstract:    entry.Abstract,
			Body:        entry.Body,
			URL:         entry.URL,
			PublishTime: parsePublishTime(entry.PublishTime),
			Metadata:    entry.Metadata,
		}
		if paper.Metadata == nil {
			paper.Metadata = Metadata{}
		}
		papers = append(papers, paper)
	}

	return papers, nil
}

func parsePublishTime(value string) *time.Time {
	for _, layout := range []string{time.RFC3339, time.DateOnly, "2006"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
