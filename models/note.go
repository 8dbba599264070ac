package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
)

// RequiredNoteFields lists the keys every note must carry
var RequiredNoteFields = []string{"id", "text", "question", "predicted_answer"}

// noteKeys are the keys decoded into Note fields; anything else is kept in Note.extra
var noteKeys = map[string]bool{
	"id":                    true,
	"text":                  true,
	"question":              true,
	"predicted_answer":      true,
	"predicted_explanation": true,
	"evidence":              true,
	"annotations":           true,
}

var jsonNull = json.RawMessage("null")

// Evidence is the list of evidence spans claimed by the model.
// A scalar JSON value decodes to a single-element list and non-string
// values are read as their JSON text.
type Evidence []string

// UnmarshalJSON implements json.Unmarshaler
func (e *Evidence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case isNull(data):
		*e = Evidence{}
		return nil
	case len(data) > 0 && data[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		list := make(Evidence, 0, len(items))
		for _, item := range items {
			list = append(list, scalarText(item))
		}
		*e = list
		return nil
	default:
		*e = Evidence{scalarText(data)}
		return nil
	}
}

// Note represents one clinical text record to be reviewed.
//
// Field values are not type-checked: a number or boolean where a string is
// expected is read as its JSON text, and written back unchanged as long as
// the field is not modified.
type Note struct {
	ID                   string
	Text                 string
	Question             string
	PredictedAnswer      string
	PredictedExplanation *string // nil when absent or null in the file
	Evidence             Evidence
	Annotations          map[string]Annotation // nil when absent or null in the file

	raw            map[string]json.RawMessage // fields as read, keyed like noteKeys
	annotationsRaw map[string]json.RawMessage // per annotator, as read
	extra          map[string]json.RawMessage
}

// noteJSON fixes the serialized field order of a note
type noteJSON struct {
	ID                   json.RawMessage `json:"id"`
	Text                 json.RawMessage `json:"text"`
	Question             json.RawMessage `json:"question"`
	PredictedAnswer      json.RawMessage `json:"predicted_answer"`
	PredictedExplanation json.RawMessage `json:"predicted_explanation,omitempty"`
	Evidence             json.RawMessage `json:"evidence"`
	Annotations          json.RawMessage `json:"annotations,omitempty"`
}

// Explanation returns the predicted explanation, or "" when absent
func (n *Note) Explanation() string {
	if n.PredictedExplanation == nil {
		return ""
	}
	return *n.PredictedExplanation
}

// AnnotationFor returns the annotation stored by annotatorID, if any
func (n *Note) AnnotationFor(annotatorID string) (Annotation, bool) {
	a, ok := n.Annotations[annotatorID]
	return a, ok
}

// IsAnnotatedBy reports whether annotatorID has submitted this note
func (n *Note) IsAnnotatedBy(annotatorID string) bool {
	_, ok := n.Annotations[annotatorID]
	return ok
}

// SetAnnotation stores a under annotatorID, replacing any previous value
func (n *Note) SetAnnotation(annotatorID string, a Annotation) {
	if n.Annotations == nil {
		n.Annotations = make(map[string]Annotation)
	}
	n.Annotations[annotatorID] = a
}

// RemoveAnnotation deletes the annotation stored by annotatorID
func (n *Note) RemoveAnnotation(annotatorID string) {
	delete(n.Annotations, annotatorID)
}

// decode fills n from the fields of one note object. Presence of required
// fields is checked by ParseDocument.
func (n *Note) decode(fields map[string]json.RawMessage) error {
	*n = Note{
		ID:              scalarText(fields["id"]),
		Text:            scalarText(fields["text"]),
		Question:        scalarText(fields["question"]),
		PredictedAnswer: scalarText(fields["predicted_answer"]),
		Evidence:        Evidence{},
		raw:             make(map[string]json.RawMessage, len(noteKeys)),
	}

	for k, raw := range fields {
		if !noteKeys[k] {
			if n.extra == nil {
				n.extra = make(map[string]json.RawMessage)
			}
			n.extra[k] = raw
			continue
		}
		n.raw[k] = bytes.TrimSpace(raw)
	}

	if raw, ok := n.raw["predicted_explanation"]; ok && !isNull(raw) {
		s := scalarText(raw)
		n.PredictedExplanation = &s
	}

	if raw, ok := n.raw["evidence"]; ok {
		if err := n.Evidence.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("invalid evidence: %w", err)
		}
	}

	if raw, ok := n.raw["annotations"]; ok && !isNull(raw) {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("'annotations' must be an object: %w", err)
		}
		n.Annotations = make(map[string]Annotation, len(entries))
		n.annotationsRaw = entries
		for annotator, entry := range entries {
			n.Annotations[annotator] = decodeAnnotation(entry)
		}
	}

	return nil
}

// MarshalJSON implements json.Marshaler. Fields keep the JSON they were read
// with unless they were changed; keys not modelled by Note are written back
// after the known ones.
func (n Note) MarshalJSON() ([]byte, error) {
	var v noteJSON
	var err error
	if v.ID, err = n.stringField("id", n.ID); err != nil {
		return nil, err
	}
	if v.Text, err = n.stringField("text", n.Text); err != nil {
		return nil, err
	}
	if v.Question, err = n.stringField("question", n.Question); err != nil {
		return nil, err
	}
	if v.PredictedAnswer, err = n.stringField("predicted_answer", n.PredictedAnswer); err != nil {
		return nil, err
	}

	raw, present := n.raw["predicted_explanation"]
	switch {
	case n.PredictedExplanation != nil:
		if v.PredictedExplanation, err = n.stringField("predicted_explanation", *n.PredictedExplanation); err != nil {
			return nil, err
		}
	case present && isNull(raw):
		v.PredictedExplanation = jsonNull
	}

	if v.Evidence, err = n.evidenceJSON(); err != nil {
		return nil, err
	}
	if v.Annotations, err = n.annotationsJSON(); err != nil {
		return nil, err
	}

	b, err := marshalLiteral(v)
	if err != nil {
		return nil, err
	}
	return appendExtra(b, n.extra)
}

// stringField returns the JSON read for key when it still decodes to value,
// and value encoded as a JSON string otherwise
func (n *Note) stringField(key, value string) (json.RawMessage, error) {
	if raw, ok := n.raw[key]; ok && !isNull(raw) && scalarText(raw) == value {
		return raw, nil
	}
	return marshalLiteral(value)
}

func (n *Note) evidenceJSON() (json.RawMessage, error) {
	evidence := n.Evidence
	if evidence == nil {
		evidence = Evidence{}
	}

	raw, ok := n.raw["evidence"]
	if !ok || isNull(raw) {
		return marshalLiteral([]string(evidence))
	}
	if raw[0] != '[' {
		// A scalar is written back as a one-element list
		raw = json.RawMessage("[" + string(raw) + "]")
	}

	var read Evidence
	if err := read.UnmarshalJSON(raw); err == nil && slices.Equal(read, evidence) {
		return raw, nil
	}
	return marshalLiteral([]string(evidence))
}

func (n *Note) annotationsJSON() (json.RawMessage, error) {
	if n.Annotations == nil {
		if raw, ok := n.raw["annotations"]; ok && isNull(raw) {
			return jsonNull, nil
		}
		return nil, nil
	}

	out := make(map[string]json.RawMessage, len(n.Annotations))
	for annotator, a := range n.Annotations {
		if raw, ok := n.annotationsRaw[annotator]; ok && decodeAnnotation(raw) == a {
			out[annotator] = raw
			continue
		}
		b, err := marshalLiteral(a)
		if err != nil {
			return nil, err
		}
		out[annotator] = b
	}
	return marshalLiteral(out)
}

// scalarText returns the string value of a JSON string and the JSON text of
// any other value. Absent and null values read as "".
func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// marshalLiteral encodes v without escaping HTML characters
func marshalLiteral(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// appendExtra splices extra key/value pairs, sorted by key, into the JSON
// object obj.
func appendExtra(obj []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj = bytes.TrimSpace(obj)
	if len(obj) < 2 || obj[len(obj)-1] != '}' {
		return nil, fmt.Errorf("cannot append fields to non-object JSON")
	}
	out := append([]byte{}, obj[:len(obj)-1]...)
	empty := bytes.Equal(bytes.TrimSpace(out), []byte("{"))
	for i, k := range keys {
		key, err := marshalLiteral(k)
		if err != nil {
			return nil, err
		}
		if i > 0 || !empty {
			out = append(out, ',')
		}
		out = append(out, key...)
		out = append(out, ':')
		out = append(out, extra[k]...)
	}
	return append(out, '}'), nil
}
