package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"clinical-annotator/models"
	"clinical-annotator/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// SessionCookie carries the id of the caller's annotation session
	SessionCookie = "annotation_session"

	// DownloadFileName is the attachment name offered for the results file
	DownloadFileName = "annotated_results.json"

	sessionKey = "session"

	// room for the non-file form fields and multipart framing
	formOverheadBytes = 1 << 20
	formMemoryBytes   = 32 << 20
)

var flashMessages = map[string]string{
	"saved":    "Annotation saved!",
	"done":     "All notes annotated! Annotation saved.",
	"keywords": "Keywords updated",
}

// AnnotationHandler serves the HTML annotation interface
type AnnotationHandler struct {
	annotationService *service.AnnotationService
	maxUploadBytes    int64
	logger            *zap.Logger
}

// NewAnnotationHandler creates a new annotation handler
func NewAnnotationHandler(annotationService *service.AnnotationService, maxUploadBytes int64, logger *zap.Logger) *AnnotationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnotationHandler{
		annotationService: annotationService,
		maxUploadBytes:    maxUploadBytes,
		logger:            logger,
	}
}

type setupPage struct {
	AnnotatorID string
	Error       string
	Message     string
}

type annotatePage struct {
	View    *service.NoteView
	Error   string
	Message string
}

// SetupPage handles GET /
func (h *AnnotationHandler) SetupPage(c *gin.Context) {
	if _, ok := h.currentSession(c); ok {
		c.Redirect(http.StatusSeeOther, "/annotate")
		return
	}
	c.HTML(http.StatusOK, "setup.tmpl", setupPage{})
}

// StartSetup handles POST /setup
func (h *AnnotationHandler) StartSetup(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverheadBytes)
	}
	if err := c.Request.ParseMultipartForm(formMemoryBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.HTML(http.StatusRequestEntityTooLarge, "setup.tmpl", setupPage{
				Error: fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxUploadBytes),
			})
			return
		}
	}

	annotatorID := c.PostForm("annotator_id")
	page := setupPage{AnnotatorID: annotatorID}

	if strings.TrimSpace(annotatorID) == "" {
		page.Error = "Please enter your Annotator ID"
		c.HTML(http.StatusBadRequest, "setup.tmpl", page)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		page.Error = "Please upload a JSON file"
		c.HTML(http.StatusBadRequest, "setup.tmpl", page)
		return
	}

	// Validate file size
	if h.maxUploadBytes > 0 && fileHeader.Size > h.maxUploadBytes {
		page.Error = fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxUploadBytes)
		c.HTML(http.StatusRequestEntityTooLarge, "setup.tmpl", page)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		page.Error = "Error loading file: " + err.Error()
		c.HTML(http.StatusInternalServerError, "setup.tmpl", page)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		page.Error = "Error loading file: " + err.Error()
		c.HTML(http.StatusInternalServerError, "setup.tmpl", page)
		return
	}

	result, err := h.annotationService.StartSession(c.Request.Context(), service.StartSessionRequest{
		AnnotatorID: annotatorID,
		FileName:    fileHeader.Filename,
		Data:        data,
		Reset:       isChecked(c.PostForm("reset")),
	})
	if err != nil {
		page.Error = setupErrorMessage(err)
		c.HTML(setupErrorStatus(err), "setup.tmpl", page)
		return
	}

	// A new setup from the same browser replaces its previous session
	if previous, ok := h.currentSession(c); ok {
		h.annotationService.EndSession(previous.ID)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, result.Session.ID.String(), 0, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/annotate")
}

// RequireSession resolves the session cookie and sends callers without a
// live session back to the setup page
func (h *AnnotationHandler) RequireSession(c *gin.Context) {
	session, ok := h.currentSession(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
		return
	}
	c.Set(sessionKey, session)
	c.Next()
}

// AnnotatePage handles GET /annotate
func (h *AnnotationHandler) AnnotatePage(c *gin.Context) {
	session := sessionFrom(c)
	c.HTML(http.StatusOK, "annotate.tmpl", annotatePage{
		View:    h.annotationService.View(session),
		Message: flashMessages[c.Query("msg")],
	})
}

// Next handles POST /annotate/next
func (h *AnnotationHandler) Next(c *gin.Context) {
	h.annotationService.Next(sessionFrom(c))
	c.Redirect(http.StatusSeeOther, "/annotate")
}

// Previous handles POST /annotate/previous
func (h *AnnotationHandler) Previous(c *gin.Context) {
	h.annotationService.Previous(sessionFrom(c))
	c.Redirect(http.StatusSeeOther, "/annotate")
}

// GoTo handles POST /annotate/goto/:index
func (h *AnnotationHandler) GoTo(c *gin.Context) {
	session := sessionFrom(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err == nil {
		err = h.annotationService.GoTo(session, index)
	}
	if err != nil {
		h.renderAnnotate(c, http.StatusNotFound, session, "Invalid note index")
		return
	}
	c.Redirect(http.StatusSeeOther, "/annotate")
}

// Submit handles POST /annotate/submit
func (h *AnnotationHandler) Submit(c *gin.Context) {
	session := sessionFrom(c)

	answer := c.PostForm("answer")
	if answer != models.AnswerYes && answer != models.AnswerNo {
		h.renderAnnotate(c, http.StatusBadRequest, session, "Please choose Yes or No")
		return
	}

	result, err := h.annotationService.Submit(c.Request.Context(), session, service.SubmitRequest{
		Answer:      answer,
		Explanation: formText(c, "explanation"),
		Comment:     formText(c, "comment"),
	})
	if err != nil {
		h.renderAnnotate(c, annotateErrorStatus(err), session, "Error saving: "+err.Error())
		return
	}

	if result.AllDone {
		c.Redirect(http.StatusSeeOther, "/annotate?msg=done")
		return
	}
	c.Redirect(http.StatusSeeOther, "/annotate?msg=saved")
}

// UpdateKeywords handles POST /annotate/keywords
func (h *AnnotationHandler) UpdateKeywords(c *gin.Context) {
	session := sessionFrom(c)

	if _, err := h.annotationService.UpdateKeywords(c.Request.Context(), session, c.PostForm("keywords")); err != nil {
		h.renderAnnotate(c, annotateErrorStatus(err), session, "Error saving keywords: "+err.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/annotate?msg=keywords")
}

// ChangeSetup handles POST /annotate/change-setup
func (h *AnnotationHandler) ChangeSetup(c *gin.Context) {
	h.annotationService.EndSession(sessionFrom(c).ID)
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}

// Download handles GET /annotate/download
func (h *AnnotationHandler) Download(c *gin.Context) {
	session := sessionFrom(c)

	data, err := h.annotationService.Download(c.Request.Context(), session)
	if err != nil {
		h.logger.Error("Failed to read results", zap.String("file", session.FileName), zap.Error(err))
		h.renderAnnotate(c, http.StatusInternalServerError, session, "Error reading results: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", DownloadFileName))
	c.Data(http.StatusOK, "application/json", data)
}

func (h *AnnotationHandler) renderAnnotate(c *gin.Context, status int, session *service.Session, msg string) {
	c.HTML(status, "annotate.tmpl", annotatePage{
		View:  h.annotationService.View(session),
		Error: msg,
	})
}

func (h *AnnotationHandler) currentSession(c *gin.Context) (*service.Session, bool) {
	raw, err := c.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	session, err := h.annotationService.GetSession(id)
	if err != nil {
		return nil, false
	}
	return session, true
}

func sessionFrom(c *gin.Context) *service.Session {
	return c.MustGet(sessionKey).(*service.Session)
}

// formText returns a form value with browser CRLF line endings turned into \n
func formText(c *gin.Context, key string) string {
	return strings.ReplaceAll(c.PostForm(key), "\r\n", "\n")
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func setupErrorMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingAnnotator):
		return "Please enter your Annotator ID"
	case errors.Is(err, service.ErrMissingFile):
		return "Please upload a JSON file"
	}
	return "Error loading file: " + err.Error()
}

func setupErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrMissingAnnotator),
		errors.Is(err, service.ErrMissingFile),
		errors.Is(err, models.ErrMalformedInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func annotateErrorStatus(err error) int {
	if errors.Is(err, service.ErrIndexOutOfRange) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
