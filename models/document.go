package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedInput is returned when a document lacks required structure
var ErrMalformedInput = errors.New("malformed input")

// Document represents a loaded annotation file: keywords plus notes
type Document struct {
	Keywords []string
	Notes    []Note

	extra map[string]json.RawMessage
}

// documentJSON fixes the serialized field order of a document
type documentJSON struct {
	Keywords []string `json:"keywords"`
	Notes    []Note   `json:"notes"`
}

// ParseDocument decodes and validates an annotation file.
// Missing optional fields get their defaults: keywords and evidence become
// empty lists and a scalar evidence value becomes a one-element list.
func ParseDocument(data []byte) (*Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON document: %v", ErrMalformedInput, err)
	}

	notesRaw, ok := fields["notes"]
	if !ok || bytes.Equal(bytes.TrimSpace(notesRaw), []byte("null")) {
		return nil, fmt.Errorf("%w: JSON must contain a 'notes' key", ErrMalformedInput)
	}

	var rawNotes []map[string]json.RawMessage
	if err := json.Unmarshal(notesRaw, &rawNotes); err != nil {
		return nil, fmt.Errorf("%w: 'notes' must be a list of objects: %v", ErrMalformedInput, err)
	}

	doc := &Document{
		Keywords: []string{},
		Notes:    make([]Note, 0, len(rawNotes)),
	}

	for i, raw := range rawNotes {
		if raw == nil {
			return nil, fmt.Errorf("%w: note at index %d is not an object", ErrMalformedInput, i)
		}
		for _, field := range RequiredNoteFields {
			if _, ok := raw[field]; !ok {
				return nil, fmt.Errorf("%w: note at index %d missing required field: %s", ErrMalformedInput, i, field)
			}
		}
		var note Note
		if err := note.decode(raw); err != nil {
			return nil, fmt.Errorf("%w: note at index %d: %v", ErrMalformedInput, i, err)
		}
		doc.Notes = append(doc.Notes, note)
	}

	if kwRaw, ok := fields["keywords"]; ok {
		var keywords []string
		if err := json.Unmarshal(kwRaw, &keywords); err != nil {
			return nil, fmt.Errorf("%w: 'keywords' must be a list of strings: %v", ErrMalformedInput, err)
		}
		if keywords != nil {
			doc.Keywords = keywords
		}
	}

	for k, raw := range fields {
		if k == "notes" || k == "keywords" {
			continue
		}
		if doc.extra == nil {
			doc.extra = make(map[string]json.RawMessage)
		}
		doc.extra[k] = raw
	}

	return doc, nil
}

// EncodeDocument serializes doc as indented JSON with HTML characters and
// non-ASCII text written literally.
func EncodeDocument(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler
func (d Document) MarshalJSON() ([]byte, error) {
	v := documentJSON{Keywords: d.Keywords, Notes: d.Notes}
	if v.Keywords == nil {
		v.Keywords = []string{}
	}
	if v.Notes == nil {
		v.Notes = []Note{}
	}
	b, err := marshalLiteral(v)
	if err != nil {
		return nil, err
	}
	return appendExtra(b, d.extra)
}

// FindNote returns the first note with the given ID
func (d *Document) FindNote(id string) (*Note, bool) {
	for i := range d.Notes {
		if d.Notes[i].ID == id {
			return &d.Notes[i], true
		}
	}
	return nil, false
}

// CompletedNoteIDs returns the IDs of notes annotated by annotatorID
func (d *Document) CompletedNoteIDs(annotatorID string) map[string]bool {
	done := make(map[string]bool)
	for i := range d.Notes {
		if d.Notes[i].IsAnnotatedBy(annotatorID) {
			done[d.Notes[i].ID] = true
		}
	}
	return done
}

// ParseKeywords splits a newline-separated keyword list, trimming entries
// and dropping blank lines.
func ParseKeywords(raw string) []string {
	keywords := []string{}
	for _, line := range strings.Split(raw, "\n") {
		if kw := strings.TrimSpace(line); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}
