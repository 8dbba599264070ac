package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinical-annotator/models"
	"clinical-annotator/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrMissingAnnotator = errors.New("please enter your annotator ID")
	ErrMissingFile      = errors.New("please upload a JSON file")
	ErrIndexOutOfRange  = errors.New("note index out of range")
)

// DefaultSessionIdleTimeout is how long an unused session is kept
const DefaultSessionIdleTimeout = 12 * time.Hour

// AnnotationService handles the annotation workflow for sessions
type AnnotationService struct {
	docRepo  *repository.DocumentRepository
	sessions *SessionStore
	now      func() time.Time
	logger   *zap.Logger
}

// AnnotationServiceOption is a functional option for AnnotationService
type AnnotationServiceOption func(*AnnotationService)

// WithDocumentRepository sets the document repository
func WithDocumentRepository(repo *repository.DocumentRepository) AnnotationServiceOption {
	return func(s *AnnotationService) {
		s.docRepo = repo
	}
}

// WithSessionStore sets the session store
func WithSessionStore(store *SessionStore) AnnotationServiceOption {
	return func(s *AnnotationService) {
		s.sessions = store
	}
}

// WithClock sets the time source used for annotation timestamps
func WithClock(now func() time.Time) AnnotationServiceOption {
	return func(s *AnnotationService) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) AnnotationServiceOption {
	return func(s *AnnotationService) {
		s.logger = logger
	}
}

// NewAnnotationService creates a new annotation service
func NewAnnotationService(opts ...AnnotationServiceOption) *AnnotationService {
	s := &AnnotationService{
		sessions: NewSessionStore(DefaultSessionIdleTimeout),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSessionRequest represents a request to start annotating a document
type StartSessionRequest struct {
	AnnotatorID string
	FileName    string
	Data        []byte
	Reset       bool // overwrite a stored file of the same name
}

// StartSessionResult represents the result of starting a session
type StartSessionResult struct {
	Session   *Session
	NoteCount int
}

// StartSession stores the uploaded document (or resumes the stored copy) and
// opens a session on it. No session is created when anything fails.
func (s *AnnotationService) StartSession(ctx context.Context, req StartSessionRequest) (*StartSessionResult, error) {
	if s.docRepo == nil {
		return nil, errors.New("document repository not set")
	}

	annotatorID := strings.TrimSpace(req.AnnotatorID)
	if annotatorID == "" {
		return nil, ErrMissingAnnotator
	}
	if req.FileName == "" || len(req.Data) == 0 {
		return nil, ErrMissingFile
	}

	doc, err := s.docRepo.Import(ctx, req.FileName, req.Data, req.Reset)
	if err != nil {
		s.logger.Warn("Failed to load document",
			zap.String("file", req.FileName),
			zap.Error(err))
		return nil, err
	}

	session := &Session{
		ID:          uuid.New(),
		AnnotatorID: annotatorID,
		FileName:    req.FileName,
		document:    doc,
	}
	s.sessions.Add(session)

	s.logger.Info("Session started",
		zap.String("session", session.ID.String()),
		zap.String("annotator", annotatorID),
		zap.String("file", req.FileName),
		zap.Int("notes", len(doc.Notes)),
		zap.Bool("reset", req.Reset))

	return &StartSessionResult{Session: session, NoteCount: len(doc.Notes)}, nil
}

// GetSession looks up an active session
func (s *AnnotationService) GetSession(id uuid.UUID) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// EndSession closes a session so the annotator can change setup
func (s *AnnotationService) EndSession(id uuid.UUID) {
	s.sessions.Remove(id)
	s.logger.Debug("Session ended", zap.String("session", id.String()))
}

// Next moves to the following note; it stays put on the last note
func (s *AnnotationService) Next(session *Session) int {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.currentIndex < len(session.document.Notes)-1 {
		session.currentIndex++
	}
	return session.currentIndex
}

// Previous moves to the preceding note; it stays put on the first note
func (s *AnnotationService) Previous(session *Session) int {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.currentIndex > 0 {
		session.currentIndex--
	}
	return session.currentIndex
}

// GoTo jumps to the note at index
func (s *AnnotationService) GoTo(session *Session, index int) error {
	session.mu.Lock()
	defer session.mu.Unlock()
	if index < 0 || index >= len(session.document.Notes) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	session.currentIndex = index
	return nil
}

// SubmitRequest represents an annotator's correction of the current note
type SubmitRequest struct {
	Answer      string
	Explanation string
	Comment     string
}

// SubmitResult represents the result of submitting an annotation
type SubmitResult struct {
	NoteID     string
	Annotation models.Annotation
	NextIndex  int
	AllDone    bool // submitted on the last note
}

// Submit stores the annotation for the current note under the session's
// annotator, replacing any earlier one, and saves the document. If the save
// fails the in-memory document is left as it was.
func (s *AnnotationService) Submit(ctx context.Context, session *Session, req SubmitRequest) (*SubmitResult, error) {
	if s.docRepo == nil {
		return nil, errors.New("document repository not set")
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	doc := session.document
	if session.currentIndex < 0 || session.currentIndex >= len(doc.Notes) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, session.currentIndex)
	}

	noteID := doc.Notes[session.currentIndex].ID
	note, _ := doc.FindNote(noteID)

	previous, hadPrevious := note.AnnotationFor(session.AnnotatorID)
	annotation := models.NewAnnotation(req.Answer, req.Explanation, req.Comment, s.now())
	note.SetAnnotation(session.AnnotatorID, annotation)

	if err := s.docRepo.Save(ctx, session.FileName, doc); err != nil {
		if hadPrevious {
			note.SetAnnotation(session.AnnotatorID, previous)
		} else {
			note.RemoveAnnotation(session.AnnotatorID)
		}
		s.logger.Error("Failed to save annotation",
			zap.String("note", noteID),
			zap.String("annotator", session.AnnotatorID),
			zap.Error(err))
		return nil, err
	}

	result := &SubmitResult{NoteID: noteID, Annotation: annotation}
	if session.currentIndex < len(doc.Notes)-1 {
		session.currentIndex++
	} else {
		result.AllDone = true
	}
	result.NextIndex = session.currentIndex

	s.logger.Info("Annotation saved",
		zap.String("note", noteID),
		zap.String("annotator", session.AnnotatorID),
		zap.Bool("replaced", hadPrevious))

	return result, nil
}

// UpdateKeywords replaces the document keywords with the non-blank lines of
// raw and saves the document. On failure the previous keywords are kept.
func (s *AnnotationService) UpdateKeywords(ctx context.Context, session *Session, raw string) ([]string, error) {
	if s.docRepo == nil {
		return nil, errors.New("document repository not set")
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	doc := session.document
	previous := doc.Keywords
	doc.Keywords = models.ParseKeywords(raw)

	if err := s.docRepo.Save(ctx, session.FileName, doc); err != nil {
		doc.Keywords = previous
		s.logger.Error("Failed to save keywords", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Keywords updated", zap.Int("count", len(doc.Keywords)))
	return append([]string(nil), doc.Keywords...), nil
}

// Download returns the stored document file for the session
func (s *AnnotationService) Download(ctx context.Context, session *Session) ([]byte, error) {
	if s.docRepo == nil {
		return nil, errors.New("document repository not set")
	}
	return s.docRepo.Raw(ctx, session.FileName)
}

// Progress returns how many notes the session's annotator has completed
func (s *AnnotationService) Progress(session *Session) (completed, total int) {
	session.mu.Lock()
	defer session.mu.Unlock()
	return len(session.document.CompletedNoteIDs(session.AnnotatorID)), len(session.document.Notes)
}

// DeleteDocument removes a stored document. Open sessions on it keep their
// in-memory copy and write it back on the next save.
func (s *AnnotationService) DeleteDocument(ctx context.Context, name string) error {
	if s.docRepo == nil {
		return errors.New("document repository not set")
	}
	if err := s.docRepo.Delete(ctx, name); err != nil {
		s.logger.Error("Failed to delete document", zap.String("file", name), zap.Error(err))
		return err
	}
	s.logger.Info("Document deleted", zap.String("file", name))
	return nil
}

// ListDocuments returns the names of the stored documents
func (s *AnnotationService) ListDocuments(ctx context.Context) ([]string, error) {
	if s.docRepo == nil {
		return nil, errors.New("document repository not set")
	}
	return s.docRepo.List(ctx)
}
