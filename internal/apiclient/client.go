// Package apiclient is a typed HTTP client for the TestCenter REST API,
// speaking the standard {data, error} response envelope.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepstack/testcenter-backend/internal/model"
	"github.com/prepstack/testcenter-backend/internal/response"
)

// APIError is a non-2xx response decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       response.ErrCode
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Client calls the TestCenter API with bearer-token auth.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

// New creates a Client for the given base URL (e.g. "http://localhost:8080").
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "apiclient").Logger(),
	}
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: response.ErrInternal}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Fields = env.Error.Fields
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// Login authenticates and stores the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Learner, error) {
	var data struct {
		Token   string        `json:"token"`
		Learner model.Learner `json:"learner"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Email: email, Password: password}, &data)
	if err != nil {
		return nil, err
	}
	c.token = data.Token
	return &data.Learner, nil
}

// ListTests retrieves the published tests.
func (c *Client) ListTests(ctx context.Context) ([]model.Test, error) {
	var data struct {
		Tests []model.Test `json:"tests"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tests", nil, &data); err != nil {
		return nil, err
	}
	return data.Tests, nil
}

// ActiveSession asks whether a live session exists for this test.
func (c *Client) ActiveSession(ctx context.Context, testID uuid.UUID) (*model.ActiveSessionInfo, error) {
	var info model.ActiveSessionInfo
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/api/v1/tests/%s/active-session", testID), nil, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// StartSession starts a fresh attempt.
func (c *Client) StartSession(ctx context.Context, testID uuid.UUID) (*model.TestSession, error) {
	var data struct {
		Session model.TestSession `json:"session"`
	}
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tests/%s/start", testID), nil, &data)
	if err != nil {
		return nil, err
	}
	return &data.Session, nil
}

// AbandonSession discards the active session for this test. The abandoned
// attempt's graded result is returned.
func (c *Client) AbandonSession(ctx context.Context, testID uuid.UUID) (*model.AttemptResult, error) {
	var data struct {
		Result *model.AttemptResult `json:"result"`
	}
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tests/%s/abandon-session", testID), nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Result, nil
}

// Questions fetches the session-scoped paper.
func (c *Client) Questions(ctx context.Context, testID, sessionID uuid.UUID) ([]model.QuestionForLearner, error) {
	var data struct {
		Questions []model.QuestionForLearner `json:"questions"`
	}
	err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/api/v1/tests/%s/questions?session_id=%s", testID, sessionID), nil, &data)
	if err != nil {
		return nil, err
	}
	return data.Questions, nil
}

// SaveAnswer pushes the full desired answer state for one question. Returns
// whether the server applied the write (false means a newer write already
// landed).
func (c *Client) SaveAnswer(ctx context.Context, testID uuid.UUID, req model.SubmitAnswerRequest) (bool, error) {
	var data struct {
		Applied bool `json:"applied"`
	}
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tests/%s/answer", testID), req, &data)
	if err != nil {
		return false, err
	}
	return data.Applied, nil
}

// SubmitTest finalizes the session and returns the graded result.
func (c *Client) SubmitTest(ctx context.Context, testID, sessionID uuid.UUID) (*model.AttemptResult, error) {
	var data struct {
		Result *model.AttemptResult `json:"result"`
	}
	err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tests/%s/submit", testID),
		model.SubmitTestRequest{SessionID: sessionID}, &data)
	if err != nil {
		return nil, err
	}
	return data.Result, nil
}

// ListAttempts retrieves the learner's finished attempts.
func (c *Client) ListAttempts(ctx context.Context) ([]model.AttemptSummary, error) {
	var data struct {
		Attempts []model.AttemptSummary `json:"attempts"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/tests/attempts", nil, &data); err != nil {
		return nil, err
	}
	return data.Attempts, nil
}
