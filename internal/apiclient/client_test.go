package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/model"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, srv.URL+"/upload", 2*time.Second, zerolog.Nop())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  ResultKind
		jobID string
	}{
		{"top level", `{"jobId":"x"}`, ResultJob, "x"},
		{"data", `{"data":{"jobId":"x"}}`, ResultJob, "x"},
		{"result", `{"result":{"jobId":"x"}}`, ResultJob, "x"},
		{"numeric", `{"jobId":42}`, ResultJob, "42"},
		{"inline", `{"score":80}`, ResultInline, ""},
		{"empty object", `{}`, ResultInline, ""},
		{"empty body", ``, ResultEmpty, ""},
		{"null", `null`, ResultEmpty, ""},
		{"string", `"ok"`, ResultEmpty, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Normalize([]byte(tt.body))
			if res.Kind != tt.kind || res.JobID != tt.jobID {
				t.Fatalf("expected %s/%q, got %s/%q", tt.kind, tt.jobID, res.Kind, res.JobID)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"error field", &APIError{Status: 400, Message: bodyMessage([]byte(`{"error":"Trainer not found"}`))}, "Trainer not found"},
		{"nested error", &APIError{Status: 400, Message: bodyMessage([]byte(`{"error":{"message":"Too many words"}}`))}, "Too many words"},
		{"string body", &APIError{Status: 500, Message: bodyMessage([]byte(`"Internal failure"`))}, "Internal failure"},
		{"plain error", errors.New("dial tcp: refused"), "dial tcp: refused"},
		{"nil", nil, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err, "fallback"); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := bodyMessage([]byte(`<html>Bad Gateway</html>`)); got != "" {
		t.Fatalf("html body should be ignored, got %q", got)
	}
}

func TestFetchExam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/vocab-trainers/t-1/exam" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		w.Write([]byte(`{"data":{"id":"e-1","questionType":"MULTIPLE_CHOICE","countTime":300,"questions":[{"content":"apple","correctAnswer":"A"}]}}`))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv).FetchExam(context.Background(), "tok", "t-1")
	if err != nil {
		t.Fatalf("FetchExam() error: %v", err)
	}
	if payload.ID != "e-1" || payload.QuestionType != model.QuestionTypeMultipleChoice || payload.CountTime != 300 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Questions) != 1 || payload.Questions[0].CorrectAnswer != "A" {
		t.Fatalf("unexpected questions: %+v", payload.Questions)
	}
}

func TestSubmitExam(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"data":{"jobId":"job-1"}}`))
	}))
	defer srv.Close()

	bridge := newTestClient(srv).NewBridge("tok")
	res, err := bridge.Submit(context.Background(), "t-1", &model.FillInBlankSubmission{
		QuestionType:   model.QuestionTypeFillInTheBlank,
		CountTime:      12,
		WordTestInputs: []model.FillInBlankInput{{UserAnswer: "go", SystemAnswer: "go"}},
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if res.Kind != ResultJob || res.JobID != "job-1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got["questionType"] != "FILL_IN_THE_BLANK" || got["countTime"] != float64(12) {
		t.Fatalf("unexpected body: %v", got)
	}
}

func TestSubmitExamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"Exam already submitted"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SubmitExam(context.Background(), "tok", "t-1", map[string]any{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected APIError 422, got %v", err)
	}
	if got := ErrorMessage(err, "fallback"); got != "Exam already submitted" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUploadAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile() error: %v", err)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF" || hdr.Header.Get("Content-Type") != "audio/wav" {
			t.Errorf("unexpected part %q %s", data, hdr.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"data":{"fileId":"f-9"}}`))
	}))
	defer srv.Close()

	id, err := newTestClient(srv).UploadAudio(context.Background(), "tok", []byte("RIFF"), "audio/wav")
	if err != nil {
		t.Fatalf("UploadAudio() error: %v", err)
	}
	if id != "f-9" {
		t.Fatalf("expected f-9, got %q", id)
	}
}

func TestUploadAudioWithoutFileID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv).UploadAudio(context.Background(), "tok", []byte("RIFF"), ""); err == nil {
		t.Fatal("expected error for a response without file id")
	}
}

func TestJobResultDefaultsToPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/exam/jobs/job-1") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).JobResult(context.Background(), "tok", "t-1", "job-1")
	if err != nil {
		t.Fatalf("JobResult() error: %v", err)
	}
	if res.Status != model.JobStatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
}
