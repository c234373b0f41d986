package model

import (
	"fmt"
	"unicode/utf8"
)

// Answer is the span a question-answering model picked inside one context text.
// Start and End are rune offsets into that context.
type Answer struct {
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
	Text  string  `json:"answer"`
}

// AnswerCandidate is an answer tagged with the input it came from.
// It is also the wire format of the remote scoring endpoint.
type AnswerCandidate struct {
	SourceIndex int     `json:"-"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Score       float64 `json:"score"`
	Answer      string  `json:"answer"`
}

// NewAnswerCandidate tags an answer with its source index
func NewAnswerCandidate(sourceIndex int, answer *Answer) AnswerCandidate {
	return AnswerCandidate{
		SourceIndex: sourceIndex,
		Start:       answer.Start,
		End:         answer.End,
		Score:       answer.Score,
		Answer:      answer.Text,
	}
}

// Validate checks the span offsets against the length of the text they refer to.
// A negative textLen skips the upper bound check.
func (c AnswerCandidate) Validate(textLen int) error {
	if c.Start < 0 || c.End < c.Start {
		return fmt.Errorf("invalid span [%d, %d)", c.Start, c.End)
	}
	if textLen >= 0 && c.End > textLen {
		return fmt.Errorf("span [%d, %d) exceeds text length %d", c.Start, c.End, textLen)
	}
	return nil
}

// RuneLen is the rune length used for all offsets
func RuneLen(text string) int {
	return utf8.RuneCountInString(text)
}
