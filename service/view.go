package service

import (
	"strings"

	"clinical-annotator/highlight"
	"clinical-annotator/models"
)

// NoteListItem is one entry of the sidebar note list
type NoteListItem struct {
	Index   int
	ID      string
	Done    bool
	Current bool
}

// NoteView is everything needed to render the annotation page for the
// session's current note. It is recomputed from the document on every call.
type NoteView struct {
	AnnotatorID string
	FileName    string

	Index          int // zero-based
	Position       int // one-based, for display
	Total          int
	CompletedCount int
	IsCompleted    bool
	HasPrevious    bool
	HasNext        bool

	Note            *models.Note
	HighlightedText string
	Keywords        []string
	Evidence        []string

	PredictionPositive bool
	Existing           *models.Annotation

	DefaultAnswer      string
	DefaultExplanation string
	DefaultComment     string

	Items []NoteListItem
}

// Progress returns the completed fraction in [0, 1]
func (v *NoteView) Progress() float64 {
	if v.Total == 0 {
		return 0
	}
	return float64(v.CompletedCount) / float64(v.Total)
}

// View builds the page state for the session's current note
func (s *AnnotationService) View(session *Session) *NoteView {
	session.mu.Lock()
	defer session.mu.Unlock()

	doc := session.document
	annotator := session.AnnotatorID
	completed := doc.CompletedNoteIDs(annotator)

	view := &NoteView{
		AnnotatorID:    annotator,
		FileName:       session.FileName,
		Index:          session.currentIndex,
		Position:       session.currentIndex + 1,
		Total:          len(doc.Notes),
		CompletedCount: len(completed),
		HasPrevious:    session.currentIndex > 0,
		HasNext:        session.currentIndex < len(doc.Notes)-1,
		Keywords:       append([]string(nil), doc.Keywords...),
		Items:          make([]NoteListItem, 0, len(doc.Notes)),
	}

	for i := range doc.Notes {
		view.Items = append(view.Items, NoteListItem{
			Index:   i,
			ID:      doc.Notes[i].ID,
			Done:    doc.Notes[i].IsAnnotatedBy(annotator),
			Current: i == session.currentIndex,
		})
	}

	if session.currentIndex < 0 || session.currentIndex >= len(doc.Notes) {
		return view
	}

	note := doc.Notes[session.currentIndex]
	view.Note = &note
	view.IsCompleted = completed[note.ID]
	view.Evidence = append([]string(nil), note.Evidence...)
	view.HighlightedText = highlight.Highlight(note.Text, doc.Keywords, note.Evidence)
	view.PredictionPositive = strings.EqualFold(note.PredictedAnswer, "yes")

	if existing, ok := note.AnnotationFor(annotator); ok {
		view.Existing = &existing
		view.DefaultAnswer = models.AnswerNo
		if strings.EqualFold(existing.CorrectedAnswer, "yes") {
			view.DefaultAnswer = models.AnswerYes
		}
		view.DefaultExplanation = existing.CorrectedExplanation
		view.DefaultComment = existing.Comment
	} else {
		view.DefaultAnswer = models.AnswerYes
		if strings.EqualFold(note.PredictedAnswer, "no") {
			view.DefaultAnswer = models.AnswerNo
		}
		view.DefaultExplanation = note.Explanation()
	}

	return view
}
