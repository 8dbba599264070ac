package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"clinical-annotator/repository"
	"clinical-annotator/service"
	"clinical-annotator/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDocument = `{
  "keywords": ["diabetes"],
  "notes": [
    {
      "id": "note_001",
      "text": "Diabetes <controlled>.\nHbA1c of 7.2%.",
      "question": "Does the patient have diabetes?",
      "predicted_answer": "Yes",
      "predicted_explanation": "HbA1c above threshold.",
      "evidence": ["HbA1c of 7.2%"]
    },
    {
      "id": "note_002",
      "text": "No chronic conditions.",
      "question": "Does the patient have diabetes?",
      "predicted_answer": "No"
    }
  ]
}`

type testServer struct {
	router *gin.Engine
	repo   *repository.DocumentRepository
	cookie *http.Cookie
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := repository.NewDocumentRepository(local)
	svc := service.NewAnnotationService(service.WithDocumentRepository(repo))

	router, err := NewRouter(
		NewAnnotationHandler(svc, maxUpload, zap.NewNop()),
		NewAPIHandler(svc),
		zap.NewNop(),
	)
	require.NoError(t, err)

	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func setupRequest(t *testing.T, annotator, filename, content string, reset bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("annotator_id", annotator))
	if reset {
		require.NoError(t, mw.WriteField("reset", "true"))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/setup", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// start runs the setup form and keeps the session cookie for later requests
func (s *testServer) start(t *testing.T) {
	t.Helper()
	w := s.do(setupRequest(t, "dr_lee", "batch.json", testDocument, false))
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	assert.Equal(t, "/annotate", w.Header().Get("Location"))

	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			s.cookie = c
		}
	}
	require.NotNil(t, s.cookie)
}

func TestSetupPage(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Annotator ID")
	assert.Contains(t, w.Body.String(), "JSON Format Guide")
}

func TestAnnotateRequiresSession(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	s.cookie = &http.Cookie{Name: SessionCookie, Value: "not-a-uuid"}
	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate/download", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name       string
		annotator  string
		filename   string
		content    string
		wantStatus int
		wantMsg    string
	}{
		{"missing annotator", "  ", "a.json", testDocument, http.StatusBadRequest, "Please enter your Annotator ID"},
		{"missing file", "dr_lee", "", "", http.StatusBadRequest, "Please upload a JSON file"},
		{"not json", "dr_lee", "a.json", "{oops", http.StatusBadRequest, "invalid JSON document"},
		{"no notes", "dr_lee", "a.json", `{"keywords": []}`, http.StatusBadRequest, "JSON must contain a &#39;notes&#39; key"},
		{"missing field", "dr_lee", "a.json", `{"notes": [{"id": "n"}]}`, http.StatusBadRequest, "note at index 0 missing required field: text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 0)
			w := s.do(setupRequest(t, tt.annotator, tt.filename, tt.content, false))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
			assert.Empty(t, w.Result().Cookies(), "no session on failure")
		})
	}
}

func TestSetupRejectsLargeUpload(t *testing.T) {
	s := newTestServer(t, 64)
	w := s.do(setupRequest(t, "dr_lee", "batch.json", testDocument, false))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "File size exceeds maximum")
}

func TestAnnotatePage(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Note 1 of 2: note_001")
	assert.Contains(t, body, "Does the patient have diabetes?")
	assert.Contains(t, body, "0/2 (0%)")
	assert.Contains(t, body, "&lt;controlled&gt;")
	assert.NotContains(t, body, "<controlled>")
	assert.Contains(t, body, ">HbA1c of 7.2%</span>")
	assert.Contains(t, body, "<br>")
	assert.Contains(t, body, "HbA1c above threshold.")

	// Visiting the setup page with a live session goes back to the note
	w = s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/annotate", w.Header().Get("Location"))
}

func TestNavigationRoutes(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.postForm("/annotate/next", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Contains(t, w.Body.String(), "Note 2 of 2: note_002")

	w = s.postForm("/annotate/previous", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Contains(t, w.Body.String(), "Note 1 of 2: note_001")

	w = s.postForm("/annotate/goto/1", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Contains(t, w.Body.String(), "Note 2 of 2: note_002")

	w = s.postForm("/annotate/goto/7", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid note index")

	w = s.postForm("/annotate/goto/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitRoute(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.postForm("/annotate/submit", url.Values{"answer": {"Maybe"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please choose Yes or No")

	w = s.postForm("/annotate/submit", url.Values{
		"answer":      {"No"},
		"explanation": {"Prediabetic."},
		"comment":     {"check labs"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/annotate?msg=saved", w.Header().Get("Location"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate?msg=saved", nil))
	assert.Contains(t, w.Body.String(), "Annotation saved!")
	assert.Contains(t, w.Body.String(), "Note 2 of 2")
	assert.Contains(t, w.Body.String(), "1/2 (50%)")

	w = s.postForm("/annotate/submit", url.Values{"answer": {"Yes"}})
	assert.Equal(t, "/annotate?msg=done", w.Header().Get("Location"))

	doc, err := s.repo.Load(context.Background(), "batch.json")
	require.NoError(t, err)
	got, ok := doc.Notes[0].AnnotationFor("dr_lee")
	require.True(t, ok)
	assert.Equal(t, "No", got.CorrectedAnswer)
	assert.Equal(t, "check labs", got.Comment)
	assert.True(t, doc.Notes[1].IsAnnotatedBy("dr_lee"))
}

func TestKeywordsRoute(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.postForm("/annotate/keywords", url.Values{"keywords": {"chronic\n\n  HbA1c  \n"}})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/annotate?msg=keywords", w.Header().Get("Location"))

	doc, err := s.repo.Load(context.Background(), "batch.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"chronic", "HbA1c"}, doc.Keywords)
}

func TestDownloadRoute(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	s.postForm("/annotate/submit", url.Values{"answer": {"Yes"}, "explanation": {"ok"}})

	w := s.do(httptest.NewRequest(http.MethodGet, "/annotate/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), DownloadFileName)
	assert.Contains(t, w.Body.String(), `"dr_lee": {`)
}

func TestResumeAndReset(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)
	s.postForm("/annotate/submit", url.Values{"answer": {"Yes"}})

	// Re-uploading the same name keeps stored annotations
	s.cookie = nil
	s.start(t)
	w := s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Contains(t, w.Body.String(), "1/2 (50%)")

	s.cookie = nil
	w = s.do(setupRequest(t, "dr_lee", "batch.json", testDocument, true))
	require.Equal(t, http.StatusSeeOther, w.Code)
	doc, err := s.repo.Load(context.Background(), "batch.json")
	require.NoError(t, err)
	assert.False(t, doc.Notes[0].IsAnnotatedBy("dr_lee"))
}

func TestChangeSetup(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.postForm("/annotate/change-setup", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	w = s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestSetupReplacesPreviousSession(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)
	first := s.cookie

	// The second setup is sent with the first session's cookie
	s.start(t)
	require.NotEqual(t, first.Value, s.cookie.Value)

	s.cookie = first
	w := s.do(httptest.NewRequest(http.MethodGet, "/annotate", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestSubmitNormalizesLineEndings(t *testing.T) {
	s := newTestServer(t, 0)
	s.start(t)

	w := s.postForm("/annotate/submit", url.Values{
		"answer":      {"Yes"},
		"explanation": {"line one\r\nline two"},
		"comment":     {"a\r\nb\r\n"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)

	doc, err := s.repo.Load(context.Background(), "batch.json")
	require.NoError(t, err)
	got, ok := doc.Notes[0].AnnotationFor("dr_lee")
	require.True(t, ok)
	assert.Equal(t, "line one\nline two", got.CorrectedExplanation)
	assert.Equal(t, "a\nb\n", got.Comment)
}
