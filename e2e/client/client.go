package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
}

// UploadResponse is returned when a file is accepted.
type UploadResponse struct {
	JobID  int64  `json:"job_id"`
	Status string `json:"status"`
}

// Progress is the polling view of an ingestion job.
type Progress struct {
	JobID         int64   `json:"job_id"`
	Status        string  `json:"status"`
	Progress      int     `json:"progress"`
	ProcessedRows int     `json:"processed_rows"`
	TotalRows     int     `json:"total_rows"`
	SkippedRows   int     `json:"skipped_rows"`
	ConflictRows  int     `json:"conflict_rows"`
	ErrorMessage  *string `json:"error_message"`
}

// Product is a catalog item as returned by the product API.
type Product struct {
	ID          int64  `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products   []Product `json:"products"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	TotalCount int       `json:"total_count"`
}

// Webhook is a registered subscriber.
type Webhook struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	EventType string `json:"event_type"`
	IsActive  bool   `json:"is_active"`
}

// DeliveryLog is one recorded delivery attempt.
type DeliveryLog struct {
	ID           int64           `json:"id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	ResponseCode *int            `json:"response_code"`
	ErrorMessage *string         `json:"error_message"`
}

// ErrorResponse represents an error response from the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// UniqueID generates a unique ID for test isolation.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// UploadCSV posts a CSV file to the upload API.
func UploadCSV(ctx context.Context, cfg *Config, fileName string, content []byte) (*UploadResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/uploads", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var resp UploadResponse
	if err := send(httpReq, http.StatusAccepted, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetProgress retrieves the progress of an ingestion job.
func GetProgress(ctx context.Context, cfg *Config, jobID int64) (*Progress, error) {
	var p Progress
	if err := doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/uploads/%d/progress", cfg.BaseURL, jobID), nil, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WaitForJob polls a job until it is completed or failed, or timeout.
func WaitForJob(ctx context.Context, cfg *Config, jobID int64, timeout time.Duration) (*Progress, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p, err := GetProgress(ctx, cfg, jobID)
		if err != nil {
			return nil, err
		}
		if p.Status == "completed" || p.Status == "failed" {
			return p, nil
		}

		time.Sleep(100 * time.Millisecond)
	}

	return nil, fmt.Errorf("timeout waiting for job %d", jobID)
}

// CreateProduct creates a product.
func CreateProduct(ctx context.Context, cfg *Config, sku, name string) (*Product, error) {
	var p Product
	req := map[string]any{"sku": sku, "name": name}
	if err := doJSON(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/products", req, http.StatusCreated, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct retrieves a product. A missing product is returned as nil.
func GetProduct(ctx context.Context, cfg *Config, id int64) (*Product, error) {
	var p Product
	err := doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/products/%d", cfg.BaseURL, id), nil, http.StatusOK, &p)
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct applies a partial update.
func UpdateProduct(ctx context.Context, cfg *Config, id int64, fields map[string]any) (*Product, error) {
	var p Product
	if err := doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/api/v1/products/%d", cfg.BaseURL, id), fields, http.StatusOK, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product.
func DeleteProduct(ctx context.Context, cfg *Config, id int64) error {
	return doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/api/v1/products/%d", cfg.BaseURL, id), nil, http.StatusOK, nil)
}

// SearchProducts lists the first page of products matching search.
func SearchProducts(ctx context.Context, cfg *Config, search string) (*ProductPage, error) {
	var page ProductPage
	if err := doJSON(ctx, http.MethodGet, cfg.BaseURL+"/api/v1/products?search="+url.QueryEscape(search), nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CreateWebhook registers a subscriber.
func CreateWebhook(ctx context.Context, cfg *Config, url, eventType string) (*Webhook, error) {
	var w Webhook
	req := map[string]any{"url": url, "event_type": eventType}
	if err := doJSON(ctx, http.MethodPost, cfg.BaseURL+"/api/v1/webhooks", req, http.StatusCreated, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// DeleteWebhook removes a subscriber.
func DeleteWebhook(ctx context.Context, cfg *Config, id int64) error {
	return doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/api/v1/webhooks/%d", cfg.BaseURL, id), nil, http.StatusNoContent, nil)
}

// WebhookLogs retrieves the recent delivery attempts of a subscriber.
func WebhookLogs(ctx context.Context, cfg *Config, id int64) ([]DeliveryLog, error) {
	var logs []DeliveryLog
	if err := doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/api/v1/webhooks/%d/logs", cfg.BaseURL, id), nil, http.StatusOK, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// CheckHealth checks the health endpoint of a service.
func CheckHealth(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return send(httpReq, http.StatusOK, nil)
}

func doJSON(ctx context.Context, method, url string, in any, want int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return send(httpReq, want, out)
}

func send(httpReq *http.Request, want int, out any) error {
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != want {
		var errResp ErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return &StatusError{Code: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
