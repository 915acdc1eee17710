package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/and161185/kodeverk-admin/internal/consistency"
	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
)

// client talks to the kodeverk HTTP API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string, timeout time.Duration) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

type saveResponse struct {
	Success   bool   `json:"success"`
	VersionID string `json:"versionId"`
	CreatedAt string `json:"createdAt"`
	Stamped   int    `json:"stamped"`
}

type problem struct {
	Type            string `json:"type"`
	Title           string `json:"title"`
	Detail          string `json:"detail"`
	LastModifiedBy  string `json:"lastModifiedBy"`
	LastModifiedAt  string `json:"lastModifiedAt"`
	ExpectedVersion string `json:"expectedVersion"`
	CurrentVersion  string `json:"currentVersion"`
}

// statusError is a non-2xx response without a richer mapping.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func (c *client) do(ctx context.Context, method, path string, body []byte, hdr map[string]string) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, b, nil
}

// get returns the current body and its version token (empty for the default).
func (c *client) get(ctx context.Context, kind model.DocumentKind) ([]byte, string, error) {
	resp, b, err := c.do(ctx, http.MethodGet, "/api/dokumenter/"+string(kind), nil, nil)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", mapError(resp.StatusCode, b)
	}
	return b, resp.Header.Get("ETag"), nil
}

// put saves body; a non-empty ifMatch enables the conflict check.
func (c *client) put(ctx context.Context, kind model.DocumentKind, body []byte, ifMatch string) (saveResponse, string, error) {
	hdr := map[string]string{}
	if ifMatch != "" {
		hdr["If-Match"] = ifMatch
	}
	resp, b, err := c.do(ctx, http.MethodPut, "/api/dokumenter/"+string(kind), body, hdr)
	if err != nil {
		return saveResponse{}, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return saveResponse{}, "", mapError(resp.StatusCode, b)
	}
	var out saveResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return saveResponse{}, "", fmt.Errorf("decode save response: %w", err)
	}
	return out, resp.Header.Get("ETag"), nil
}

func (c *client) versions(ctx context.Context, kind model.DocumentKind) ([]model.VersionInfo, error) {
	resp, b, err := c.do(ctx, http.MethodGet, "/api/dokumenter/"+string(kind)+"/versjoner", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapError(resp.StatusCode, b)
	}
	var out []model.VersionInfo
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	return out, nil
}

func (c *client) version(ctx context.Context, kind model.DocumentKind, id string) ([]byte, error) {
	resp, b, err := c.do(ctx, http.MethodGet, "/api/dokumenter/"+string(kind)+"/versjoner/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapError(resp.StatusCode, b)
	}
	return b, nil
}

func (c *client) check(ctx context.Context) (consistency.Report, error) {
	resp, b, err := c.do(ctx, http.MethodGet, "/api/konsistens", nil, nil)
	if err != nil {
		return consistency.Report{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return consistency.Report{}, mapError(resp.StatusCode, b)
	}
	var r consistency.Report
	if err := json.Unmarshal(b, &r); err != nil {
		return consistency.Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// mapError turns API error bodies back into the shared error types.
func mapError(status int, body []byte) error {
	switch status {
	case http.StatusConflict:
		var p problem
		if err := json.Unmarshal(body, &p); err == nil && p.CurrentVersion != "" {
			at, _ := time.Parse(time.RFC3339, p.LastModifiedAt)
			return &errs.ConflictError{
				ExpectedVersion: p.ExpectedVersion,
				CurrentVersion:  p.CurrentVersion,
				LastModifiedBy:  p.LastModifiedBy,
				LastModifiedAt:  at,
			}
		}
	case http.StatusBadRequest:
		var v struct {
			Errors []errs.FieldIssue `json:"errors"`
		}
		if err := json.Unmarshal(body, &v); err == nil && len(v.Errors) > 0 {
			return &errs.ValidationError{Issues: v.Errors}
		}
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusNotFound:
		return errs.ErrNotFound
	}
	return &statusError{Status: status, Body: string(body)}
}
