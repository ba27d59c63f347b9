// Package transport talks to the remote interview service and normalizes
// its responses into typed results and a closed set of error kinds.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single request when no option overrides it.
const DefaultTimeout = 60 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// Client issues interview operations against one service base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Start opens a session on the service.
func (c *Client) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	fields := [][2]string{
		{"provider", req.Provider},
		{"api_key", req.APIKey},
		{"domain", req.Domain},
		{"difficulty", req.Difficulty},
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		fields = append(fields, [2]string{"model", m})
	}

	var out StartResult
	if err := c.call(ctx, OpStart, "/interview/start", fields, nil, &out); err != nil {
		return StartResult{}, err
	}
	if out.SessionID == "" {
		return StartResult{}, &Error{Op: OpStart, Kind: KindServerFault, Status: http.StatusOK, Detail: "response has no session_id"}
	}
	return out, nil
}

// RequestQuestion asks for the next question of a session.
func (c *Client) RequestQuestion(ctx context.Context, sessionID string) (Question, error) {
	return c.question(ctx, OpQuestion, "/interview/question", sessionID)
}

// RequestFollowup asks for a follow-up to the last answered question.
func (c *Client) RequestFollowup(ctx context.Context, sessionID string) (Question, error) {
	return c.question(ctx, OpFollowup, "/interview/followup", sessionID)
}

func (c *Client) question(ctx context.Context, op, path, sessionID string) (Question, error) {
	var out struct {
		Question string `json:"question"`
	}
	if err := c.call(ctx, op, path, sessionFields(sessionID), nil, &out); err != nil {
		return Question{}, err
	}
	text := strings.TrimSpace(out.Question)
	if text == "" {
		return Question{}, &Error{Op: op, Kind: KindServerFault, Status: http.StatusOK, Detail: "No question received"}
	}
	return Question{Text: text}, nil
}

// SubmitAnswer sends an answer for evaluation. A non-2xx response that still
// carries a score, feedback or correct answer is returned as Feedback with
// Partial set, not as an error.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, answer string) (Feedback, error) {
	fields := append(sessionFields(sessionID), [2]string{"answer", answer})
	status, body, err := c.post(ctx, OpAnswer, "/interview/answer", fields, nil)
	if err != nil {
		return Feedback{}, err
	}

	var ab answerBody
	decodeErr := json.Unmarshal(body, &ab)
	ok := status >= 200 && status < 300

	if !ok {
		if decodeErr == nil && ab.evaluative() {
			return feedbackFrom(ab, status, true), nil
		}
		return Feedback{}, errorFromResponse(OpAnswer, status, body)
	}
	if decodeErr != nil {
		return Feedback{}, &Error{Op: OpAnswer, Kind: KindServerFault, Status: status, Detail: "malformed response body", Err: decodeErr}
	}
	return feedbackFrom(ab, status, false), nil
}

func feedbackFrom(ab answerBody, status int, partial bool) Feedback {
	return Feedback{
		Score:         ab.score(),
		Text:          ab.Feedback,
		CorrectAnswer: strings.TrimSpace(ab.CorrectAnswer),
		Verdict:       ab.Verdict,
		Partial:       partial,
		Status:        status,
	}
}

// EndSession notifies the service that a session is over. The body is
// optional; a summary is returned when the service sent one.
func (c *Client) EndSession(ctx context.Context, sessionID string) (Ack, error) {
	status, body, err := c.post(ctx, OpEnd, "/interview/end", sessionFields(sessionID), nil)
	if err != nil {
		return Ack{}, err
	}
	if status < 200 || status >= 300 {
		return Ack{}, errorFromResponse(OpEnd, status, body)
	}

	var out struct {
		Summary *Summary `json:"summary"`
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return Ack{}, nil
		}
	}
	return Ack{Summary: out.Summary}, nil
}

// Restore fetches the service-side metadata of a session.
func (c *Client) Restore(ctx context.Context, sessionID string) (StartResult, error) {
	var out StartResult
	if err := c.call(ctx, OpRestore, "/interview/restore", sessionFields(sessionID), nil, &out); err != nil {
		return StartResult{}, err
	}
	return out, nil
}

// Transcribe uploads an audio file and returns its transcription.
func (c *Client) Transcribe(ctx context.Context, sessionID, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	var out struct {
		Text string `json:"text"`
	}
	part := &filePart{field: "file", name: filepath.Base(audioPath), r: f}
	if err := c.call(ctx, OpTranscribe, "/interview/transcribe", sessionFields(sessionID), part, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

type filePart struct {
	field string
	name  string
	r     io.Reader
}

func sessionFields(sessionID string) [][2]string {
	return [][2]string{{"session_id", sessionID}}
}

// call posts and decodes a 2xx JSON body into out.
func (c *Client) call(ctx context.Context, op, path string, fields [][2]string, file *filePart, out any) error {
	status, body, err := c.post(ctx, op, path, fields, file)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return errorFromResponse(op, status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Op: op, Kind: KindServerFault, Status: status, Detail: "malformed response body", Err: err}
	}
	return nil
}

// post sends a multipart form. Only failures before a response arrives are
// returned as errors here; status handling is left to the caller.
func (c *Client) post(ctx context.Context, op, path string, fields [][2]string, file *filePart) (int, []byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return 0, nil, fmt.Errorf("encoding %s form: %w", op, err)
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile(file.field, file.name)
		if err != nil {
			return 0, nil, fmt.Errorf("encoding %s form: %w", op, err)
		}
		if _, err := io.Copy(fw, file.r); err != nil {
			return 0, nil, fmt.Errorf("encoding %s form: %w", op, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, nil, fmt.Errorf("encoding %s form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return 0, nil, &Error{Op: op, Kind: KindUnreachable, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &Error{Op: op, Kind: KindUnreachable, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, nil, &Error{Op: op, Kind: KindServerFault, Status: resp.StatusCode, Detail: "reading response body", Err: err}
	}
	return resp.StatusCode, body, nil
}

func errorFromResponse(op string, status int, body []byte) *Error {
	var eb errorBody
	detail := ""
	if err := json.Unmarshal(body, &eb); err == nil {
		detail = eb.detail()
	}
	return &Error{Op: op, Kind: kindForStatus(status, detail), Status: status, Detail: detail}
}
