// Package erp provides the typed HTTP client for the ERP service. 404
// responses map to empty results; other upstream failures propagate as
// errors.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/colegio-digital/gestor/pkg/models"
)

// ErrAlreadyPaid is returned by ConfirmPayment when the installment has
// already been paid. Callers must not retry the confirmation.
var ErrAlreadyPaid = errors.New("installment already paid")

const requestTimeout = 30 * time.Second

// Client is the ERP adapter. Construct once at service start and share by
// reference; the embedded http.Client pools connections internally.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an ERP client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// GetStudent fetches a student by id. Returns (nil, nil) when missing.
func (c *Client) GetStudent(ctx context.Context, id string) (*models.StudentView, error) {
	var student models.StudentView
	found, err := c.getJSON(ctx, "/api/v1/students/"+url.PathEscape(id), nil, &student)
	if err != nil || !found {
		return nil, err
	}
	return &student, nil
}

// GetStudentInstallments fetches a student's installments, optionally
// filtered by state.
func (c *Client) GetStudentInstallments(ctx context.Context, studentID, state string) ([]models.InstallmentView, error) {
	query := url.Values{}
	if state != "" {
		query.Set("state", state)
	}
	var installments []models.InstallmentView
	found, err := c.getJSON(ctx, "/api/v1/students/"+url.PathEscape(studentID)+"/installments", query, &installments)
	if err != nil || !found {
		return nil, err
	}
	return installments, nil
}

// SearchStudents lists students whose name contains the given fragment.
func (c *Client) SearchStudents(ctx context.Context, name string) ([]models.StudentView, error) {
	query := url.Values{}
	if name != "" {
		query.Set("name", name)
	}
	var students []models.StudentView
	found, err := c.getJSON(ctx, "/api/v1/students", query, &students)
	if err != nil || !found {
		return nil, err
	}
	return students, nil
}

// GetGuardianByHandle fetches a guardian by messaging handle, with embedded
// students. Returns (nil, nil) when missing.
func (c *Client) GetGuardianByHandle(ctx context.Context, handle string) (*models.GuardianView, error) {
	var guardian models.GuardianView
	found, err := c.getJSON(ctx, "/api/v1/guardians/by-handle/"+url.PathEscape(handle), nil, &guardian)
	if err != nil || !found {
		return nil, err
	}
	return &guardian, nil
}

// GetInstallment fetches an installment by id. Returns (nil, nil) when
// missing.
func (c *Client) GetInstallment(ctx context.Context, id string) (*models.InstallmentView, error) {
	var installment models.InstallmentView
	found, err := c.getJSON(ctx, "/api/v1/installments/"+url.PathEscape(id), nil, &installment)
	if err != nil || !found {
		return nil, err
	}
	return &installment, nil
}

// GetUpcomingInstallments lists pending installments due within the window.
func (c *Client) GetUpcomingInstallments(ctx context.Context, days int) ([]models.InstallmentView, error) {
	query := url.Values{}
	query.Set("state", "pending")
	query.Set("due_from", time.Now().UTC().Format("2006-01-02"))
	query.Set("due_to", time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02"))
	query.Set("limit", strconv.Itoa(500))

	var installments []models.InstallmentView
	found, err := c.getJSON(ctx, "/api/v1/installments", query, &installments)
	if err != nil || !found {
		return nil, err
	}
	return installments, nil
}

// ConfirmPayment registers a payment against an installment. Not
// idempotent: a second confirmation fails with ErrAlreadyPaid.
func (c *Client) ConfirmPayment(ctx context.Context, req models.ConfirmPaymentRequest) (*models.ConfirmPaymentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/payments/confirm", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("confirm payment: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var out models.ConfirmPaymentResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode payment response: %w", err)
		}
		return &out, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("installment %s not found", req.InstallmentID)
	case http.StatusBadRequest:
		return nil, fmt.Errorf("confirm payment %s: %w", req.InstallmentID, ErrAlreadyPaid)
	default:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("confirm payment: unexpected status %d: %s", resp.StatusCode, payload)
	}
}

// HealthCheck reports whether the ERP answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// getJSON performs a GET and decodes the response. Returns found=false on
// 404; other non-2xx statuses are errors.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) (bool, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return false, fmt.Errorf("get %s: unexpected status %d: %s", path, resp.StatusCode, payload)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", path, err)
	}
	return true, nil
}
