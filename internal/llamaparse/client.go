// Package llamaparse is a client for the LlamaParse document-parsing API.
package llamaparse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-analysis/internal/types"
)

// DefaultBaseURL is the EU endpoint of LlamaCloud.
const DefaultBaseURL = "https://api.cloud.eu.llamaindex.ai"

// DefaultUploadTimeout bounds a single document upload.
const DefaultUploadTimeout = 5 * time.Second

// DefaultTimeout bounds status and result queries.
const DefaultTimeout = 30 * time.Second

// Parsing instructions sent along with each document kind
const (
	applicationFormGuideline  = "This is a job application form. Create a list of all the fields that need to be filled in."
	applicationFormFormatting = "Return a bulleted list of the fields ONLY."
	resumeGuideline           = "This is a resume, gather related facts together and format it as bullet points with headers"
)

// APIError is returned for transport failures and non-2xx responses.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
	Cause      error
}

func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("llamaparse %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("llamaparse %s failed: HTTP status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Options configures the client.
type Options struct {
	BaseURL       string
	UploadTimeout time.Duration
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Client talks to the parsing upload, job status and job result endpoints.
type Client struct {
	apiKey        string
	baseURL       string
	uploadTimeout time.Duration
	httpClient    *http.Client
}

// NewClient creates a client authenticated with the given API key.
func NewClient(apiKey string, opts *Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LLAMA_CLOUD_API_KEY is required")
	}
	if opts == nil {
		opts = &Options{}
	}

	c := &Client{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		uploadTimeout: opts.UploadTimeout,
		httpClient:    opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c, nil
}

// SubmitApplicationForm uploads an application form and returns the created job.
func (c *Client) SubmitApplicationForm(ctx context.Context, document []byte) (*types.JobRecord, error) {
	return c.upload(ctx, "application-form.pdf", document, map[string]string{
		"content_guideline_instruction": applicationFormGuideline,
		"formatting_instruction":        applicationFormFormatting,
	})
}

// SubmitResume uploads a resume and returns the created job.
func (c *Client) SubmitResume(ctx context.Context, document []byte) (*types.JobRecord, error) {
	return c.upload(ctx, "resume.pdf", document, map[string]string{
		"content_guideline_instruction": resumeGuideline,
	})
}

// GetJob returns the current job descriptor.
func (c *Client) GetJob(ctx context.Context, id uuid.UUID) (*types.JobRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/parsing/job/"+id.String(), nil)
	if err != nil {
		return nil, &APIError{Op: "get job", Cause: err}
	}
	var job types.JobRecord
	if err := c.doJSON(req, "get job", &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetResult returns the parsed document as markdown.
func (c *Client) GetResult(ctx context.Context, id uuid.UUID) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/parsing/job/"+id.String()+"/result/raw/markdown", nil)
	if err != nil {
		return "", &APIError{Op: "get result", Cause: err}
	}
	body, err := c.do(req, "get result")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) upload(ctx context.Context, filename string, document []byte, fields map[string]string) (*types.JobRecord, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, &APIError{Op: "upload", Cause: err}
	}
	if _, err := part.Write(document); err != nil {
		return nil, &APIError{Op: "upload", Cause: err}
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, &APIError{Op: "upload", Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return nil, &APIError{Op: "upload", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/parsing/upload", &buf)
	if err != nil {
		return nil, &APIError{Op: "upload", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var job types.JobRecord
	if err := c.doJSON(req, "upload", &job); err != nil {
		return nil, err
	}
	if job.Status == "" {
		job.Status = types.JobStatusPending
	}
	return &job, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) doJSON(req *http.Request, op string, out any) error {
	body, err := c.do(req, op)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: op, StatusCode: http.StatusOK, Body: string(body), Cause: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
