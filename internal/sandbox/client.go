// Package sandbox talks to the remote code-execution service. It only knows
// the request/response contract: language resolution, dispatch, polling and
// verdict classification.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

var ErrEmptySource = errors.New("source code is empty")

// Runner executes source code and classifies the outcome.
type Runner interface {
	Run(ctx context.Context, languageLabel, source, stdin string) (*models.ExecutionResult, error)
}

// Error reports a transport-level failure talking to the sandbox. Compile
// and runtime failures are not errors; they are verdicts.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sandbox request failed: %v", e.Err)
	}
	return fmt.Sprintf("sandbox returned status %d: %s", e.StatusCode, e.Body)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL      string
	APIKey       string
	AuthHeader   string
	PollInterval time.Duration
	// Timeout bounds a single Run; zero leaves it to the caller's context.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL      string
	apiKey       string
	authHeader   string
	pollInterval time.Duration
	timeout      time.Duration
	http         *http.Client
	logger       *slog.Logger
}

func NewClient(cfg Config) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		authHeader:   cfg.AuthHeader,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.Timeout,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
	}
	if c.authHeader == "" {
		c.authHeader = "X-Auth-Token"
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 500 * time.Millisecond
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

type submissionRequest struct {
	LanguageID int    `json:"language_id"`
	SourceCode string `json:"source_code"`
	Stdin      string `json:"stdin"`
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submission struct {
	Token         string            `json:"token"`
	Stdout        *string           `json:"stdout"`
	Stderr        *string           `json:"stderr"`
	CompileOutput *string           `json:"compile_output"`
	Message       *string           `json:"message"`
	Status        *submissionStatus `json:"status"`
}

// Sandbox status ids.
const (
	statusInQueue           = 1
	statusProcessing        = 2
	statusAccepted          = 3
	statusTimeLimitExceeded = 5
	statusCompilationError  = 6
	statusRuntimeFirst      = 7
	statusRuntimeLast       = 12
)

func (s *submission) finished() bool {
	return s.Status != nil && s.Status.ID != statusInQueue && s.Status.ID != statusProcessing
}

// Run validates locally, dispatches the program and waits for a verdict.
func (c *Client) Run(ctx context.Context, languageLabel, source, stdin string) (*models.ExecutionResult, error) {
	lang, err := ResolveLanguage(languageLabel)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	if stdin == "" && lang.ReadsInput(source) {
		return NeedsInputResult(lang), nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	sub, err := c.submit(ctx, submissionRequest{
		LanguageID: lang.ID,
		SourceCode: source,
		Stdin:      stdin,
	})
	if err != nil {
		return nil, err
	}

	if !sub.finished() {
		sub, err = c.await(ctx, sub.Token)
		if err != nil {
			return nil, err
		}
	}

	result := classify(sub)
	c.logger.Info("Sandbox run finished",
		"language", lang.Name,
		"token", sub.Token,
		"verdict", result.Verdict,
		"duration", time.Since(start))
	return result, nil
}

func (c *Client) submit(ctx context.Context, req submissionRequest) (*submission, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	endpoint := c.baseURL + "/submissions?base64_encoded=false&wait=false"
	var sub submission
	if err := c.do(ctx, http.MethodPost, endpoint, body, &sub); err != nil {
		return nil, err
	}
	if sub.Token == "" && !sub.finished() {
		return nil, &Error{StatusCode: http.StatusOK, Body: "submission response has no token"}
	}
	return &sub, nil
}

func (c *Client) await(ctx context.Context, token string) (*submission, error) {
	endpoint := fmt.Sprintf("%s/submissions/%s?base64_encoded=false&fields=token,stdout,stderr,compile_output,message,status",
		c.baseURL, url.PathEscape(token))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		var sub submission
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &sub); err != nil {
			return nil, err
		}
		if sub.finished() {
			if sub.Token == "" {
				sub.Token = token
			}
			return &sub, nil
		}
		c.logger.Debug("Sandbox submission still running", "token", token, "status", sub.Status)
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build sandbox request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classify maps a finished submission onto the engine's verdicts. Output
// fields are copied verbatim so empty output stays distinguishable from none.
func classify(sub *submission) *models.ExecutionResult {
	result := &models.ExecutionResult{
		Token:         sub.Token,
		Stdout:        sub.Stdout,
		Stderr:        sub.Stderr,
		CompileOutput: sub.CompileOutput,
		ErrorMessage:  sub.Message,
	}
	if sub.Status == nil {
		result.Verdict = models.VerdictError
		result.ErrorMessage = strPtr("sandbox returned no status")
		return result
	}

	result.Status = strPtr(sub.Status.Description)
	switch id := sub.Status.ID; {
	case id == statusAccepted:
		result.Verdict = models.VerdictAccepted
	case id == statusCompilationError:
		result.Verdict = models.VerdictCompilationError
	case id == statusTimeLimitExceeded:
		result.Verdict = models.VerdictTimeLimitExceeded
	case id >= statusRuntimeFirst && id <= statusRuntimeLast:
		result.Verdict = models.VerdictRuntimeError
	default:
		result.Verdict = models.VerdictError
		if result.ErrorMessage == nil {
			result.ErrorMessage = strPtr(sub.Status.Description)
		}
	}
	return result
}

// NeedsInputResult tells the student to provide stdin instead of spending a
// sandbox run on a program that would block waiting for input.
func NeedsInputResult(lang Language) *models.ExecutionResult {
	return &models.ExecutionResult{
		Verdict:      models.VerdictNeedsInput,
		ErrorMessage: strPtr(fmt.Sprintf("This %s program reads input. Provide input before running it.", lang.Name)),
	}
}

// FailureResult renders a transport failure in the result slot.
func FailureResult(err error) *models.ExecutionResult {
	return &models.ExecutionResult{
		Verdict:      models.VerdictError,
		ErrorMessage: strPtr(err.Error()),
	}
}

func strPtr(s string) *string {
	return &s
}
