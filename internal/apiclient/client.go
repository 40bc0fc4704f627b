package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/vocab-runner/internal/model"
)

// maxBodyBytes caps how much of a remote response is read into memory.
const maxBodyBytes = 8 << 20

// Client talks to the remote vocab API on behalf of a caller's access token.
type Client struct {
	baseURL      string
	uploadURL    string
	fetchTimeout time.Duration
	http         *http.Client
	log          zerolog.Logger
}

// NewClient creates a new Client. The underlying http.Client carries no
// timeout; fetches are bounded per call and submissions are not bounded.
func NewClient(baseURL, uploadURL string, fetchTimeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:      baseURL,
		uploadURL:    uploadURL,
		fetchTimeout: fetchTimeout,
		http:         &http.Client{},
		log:          log.With().Str("component", "api_client").Logger(),
	}
}

// FetchExam loads the question payload of a trainer.
// GET /vocab-trainers/{id}/exam
func (c *Client) FetchExam(ctx context.Context, token, trainerID string) (*model.ExamPayload, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	status, body, err := c.do(ctx, token, http.MethodGet, c.trainerPath(trainerID, "exam"), nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(unwrapData(body), &payload); err != nil {
		return nil, fmt.Errorf("decode exam payload: %w", err)
	}
	return &payload, nil
}

// SubmitExam sends an exam submission and normalizes the response.
// PATCH /vocab-trainers/{id}/exam
func (c *Client) SubmitExam(ctx context.Context, token, trainerID string, submission any) (*SubmitResult, error) {
	raw, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	status, body, err := c.do(ctx, token, http.MethodPatch, c.trainerPath(trainerID, "exam"), raw)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	res := Normalize(body)
	c.log.Debug().
		Str("trainer_id", trainerID).
		Str("kind", string(res.Kind)).
		Str("job_id", res.JobID).
		Msg("Exam submitted")
	return res, nil
}

// UploadAudio posts a recording to the asset host and returns its file id.
func (c *Client) UploadAudio(ctx context.Context, token string, audio []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "audio/webm"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="recording.webm"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return "", fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setAuth(req, token)

	status, body, err := c.send(req)
	if err != nil {
		return "", err
	}
	if err := checkStatus(status, body); err != nil {
		return "", err
	}

	fileID := extractFileID(body)
	if fileID == "" {
		return "", &APIError{Status: status, Message: "upload response carries no file id", Body: body}
	}
	return fileID, nil
}

// JobResult polls the evaluation state of an async exam.
// GET /vocab-trainers/{id}/exam/jobs/{jobId}
func (c *Client) JobResult(ctx context.Context, token, trainerID, jobID string) (*model.JobResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	path := c.trainerPath(trainerID, "exam", "jobs", jobID)
	status, body, err := c.do(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}

	var res model.JobResult
	if err := json.Unmarshal(unwrapData(body), &res); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	if res.Status == "" {
		res.Status = model.JobStatusPending
	}
	return &res, nil
}

// GenerateVocab proxies an AI field generation request.
// POST /vocabs/generate
func (c *Client) GenerateVocab(ctx context.Context, token string, req *model.GenerateRequest) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generate request: %w", err)
	}

	status, body, err := c.do(ctx, token, http.MethodPost, c.baseURL+"/vocabs/generate", raw)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body); err != nil {
		return nil, err
	}
	return json.RawMessage(unwrapData(body)), nil
}

// ─── Internal helpers ──────────────────────────────────────────────

func (c *Client) trainerPath(trainerID string, parts ...string) string {
	p := c.baseURL + "/vocab-trainers/" + url.PathEscape(trainerID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

func (c *Client) do(ctx context.Context, token, method, target string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	setAuth(req, token)

	return c.send(req)
}

func (c *Client) send(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
