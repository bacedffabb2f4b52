// Package document talks to the report generation service that renders
// monthly workday summaries as PDF.
package document

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"roadbook/internal/workday/models"
)

// MonthlyReportRequest carries everything the renderer needs; the driver's
// name and language are denormalized so the report service stays stateless.
type MonthlyReportRequest struct {
	DriverID  uuid.UUID        `json:"driver_id"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	Language  string           `json:"language"`
	Month     int              `json:"month"`
	Year      int              `json:"year"`
	Workdays  []models.Workday `json:"workdays"`
}

// Generator renders a monthly report. A (nil, nil) return means the service
// produced no document for the month.
type Generator interface {
	MonthlyReport(ctx context.Context, req MonthlyReportRequest) ([]byte, error)
}

// Client is the HTTP adapter for the report service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) MonthlyReport(ctx context.Context, req MonthlyReportRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal report request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/reports/monthly", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build report request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call report service: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		pdf, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read report body: %w", err)
		}
		if len(pdf) == 0 {
			return nil, nil
		}
		return pdf, nil
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("report service returned status %d", resp.StatusCode)
	}
}
