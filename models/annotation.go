package models

import (
	"encoding/json"
	"time"
)

// TimestampLayout is the local-clock ISO-8601 layout used for annotation timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Answer values offered to the annotator
const (
	AnswerYes = "Yes"
	AnswerNo  = "No"
)

// Annotation represents one annotator's correction of a note's prediction
type Annotation struct {
	CorrectedAnswer      string `json:"corrected_answer"`
	CorrectedExplanation string `json:"corrected_explanation"`
	Comment              string `json:"comment"`
	Timestamp            string `json:"timestamp"`
}

// NewAnnotation creates an annotation stamped with the given local time
func NewAnnotation(answer, explanation, comment string, now time.Time) Annotation {
	return Annotation{
		CorrectedAnswer:      answer,
		CorrectedExplanation: explanation,
		Comment:              comment,
		Timestamp:            now.Local().Format(TimestampLayout),
	}
}

// decodeAnnotation reads one stored annotation without type-checking its
// values. Anything that is not an object reads as the zero Annotation.
func decodeAnnotation(raw json.RawMessage) Annotation {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Annotation{}
	}
	return Annotation{
		CorrectedAnswer:      scalarText(fields["corrected_answer"]),
		CorrectedExplanation: scalarText(fields["corrected_explanation"]),
		Comment:              scalarText(fields["comment"]),
		Timestamp:            scalarText(fields["timestamp"]),
	}
}
