// Package claimsapi is a thin typed client for the adjudication service's
// REST endpoints that surround the chat flow: login, member lookup, claims
// history, and document upload/extraction. The claim submission itself
// lives in internal/transport.
package claimsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sudeeparyan/Laya-sub000/internal/claims"
)

// Client calls the REST side of the service. Safe for concurrent use; the
// UI fires each call from its own goroutine.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.Mutex
	token string
}

// NewClient builds a REST client. token may be empty for unauthenticated
// endpoints; SetToken installs one after login.
func NewClient(baseURL, token string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger,
	}
}

// SetToken installs the bearer token used on subsequent calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// LoginResponse is the auth payload returned by POST /api/auth/login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	User        map[string]any `json:"user"`
}

// Login exchanges credentials for a bearer token and installs it.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.postJSON(ctx, "/api/auth/login", body, &out); err != nil {
		return LoginResponse{}, err
	}
	c.SetToken(out.AccessToken)
	c.log.Info().Str("email", email).Msg("logged in")
	return out, nil
}

// MemberSummary is the lightweight member record used for selection.
type MemberSummary struct {
	MemberID     string `json:"member_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	SchemeName   string `json:"scheme_name"`
	Status       string `json:"status"`
	ScenarioNote string `json:"scenario_note,omitempty"`
}

// Members lists the members visible to the caller.
func (c *Client) Members(ctx context.Context) ([]MemberSummary, error) {
	var out []MemberSummary
	if err := c.getJSON(ctx, "/api/members", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimRecord is one historical claim of a member.
type ClaimRecord struct {
	ClaimID          string  `json:"claim_id"`
	TreatmentType    string  `json:"treatment_type"`
	TreatmentDate    string  `json:"treatment_date"`
	PractitionerName string  `json:"practitioner_name"`
	ClaimedAmount    float64 `json:"claimed_amount"`
	Status           string  `json:"status"`
}

type claimsHistoryResponse struct {
	MemberID string        `json:"member_id"`
	Claims   []ClaimRecord `json:"claims"`
	Total    int           `json:"total"`
}

// ClaimsHistory returns a member's past claims.
func (c *Client) ClaimsHistory(ctx context.Context, memberID string) ([]ClaimRecord, error) {
	var out claimsHistoryResponse
	if err := c.getJSON(ctx, "/api/claims/"+memberID, &out); err != nil {
		return nil, err
	}
	return out.Claims, nil
}

// UploadResult is the document-extraction outcome. In the service's demo
// mode Extracted is nil and Template holds a form for the user to fill in.
type UploadResult struct {
	Success          bool                      `json:"success"`
	ExtractionMethod string                    `json:"extraction_method"`
	Message          string                    `json:"message"`
	Extracted        *claims.ExtractedDocument `json:"extracted_data,omitempty"`
	Template         *claims.ExtractedDocument `json:"template,omitempty"`
}

// UploadDocument sends a claim form for OCR extraction.
func (c *Client) UploadDocument(ctx context.Context, filename string, contents []byte) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(contents); err != nil {
		return UploadResult{}, fmt.Errorf("build upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		return UploadResult{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}
