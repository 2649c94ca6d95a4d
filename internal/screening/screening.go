// Package screening wraps the external applicant-screening worker API. The
// worker's verdict is opaque to us: we store and display it verbatim and never
// derive decisions from individual fields.
package screening

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/parkrow-labs/parkrow-go/internal/domain"
	"github.com/parkrow-labs/parkrow-go/internal/platform/env"
	"github.com/parkrow-labs/parkrow-go/internal/platform/requestid"
	"github.com/shopspring/decimal"
)

var ErrUnauthorized = errors.New("screening request unauthorized")

type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("screening api error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("screening api error (status=%d): %s", e.StatusCode, body)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("SCREENING_TIMEOUT", 10*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL: env.String("SCREENING_URL", "http://localhost:8090"),
		Token:   env.String("SCREENING_TOKEN", ""),
		Timeout: timeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("SCREENING_URL is required")
	}
	if c.Timeout <= 0 {
		return errors.New("SCREENING_TIMEOUT must be positive")
	}
	return nil
}

type EvaluateRequest struct {
	SiteID        string          `json:"site_id"`
	ApplicationID string          `json:"application_id"`
	ApplicantName string          `json:"applicant_name"`
	Email         string          `json:"email"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	RequestedRent decimal.Decimal `json:"requested_rent"`

	// RequestID is forwarded for cross-service correlation, not sent in the body.
	RequestID string `json:"-"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	now     func() time.Time
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.Token),
		http:    &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
	}, nil
}

// Evaluate submits the applicant to the worker and returns its verdict.
// Transient failures (transport errors, 5xx) are retried once.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (domain.ScreeningResult, error) {
	if c == nil || c.http == nil {
		return domain.ScreeningResult{}, errors.New("screening client not initialized")
	}
	if strings.TrimSpace(req.ApplicationID) == "" {
		return domain.ScreeningResult{}, errors.New("application id is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return domain.ScreeningResult{}, fmt.Errorf("marshal screening request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.ScreeningResult{}, ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		result, retryable, err := c.evaluateOnce(ctx, req, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable {
			return domain.ScreeningResult{}, err
		}
	}
	return domain.ScreeningResult{}, lastErr
}

func (c *Client) evaluateOnce(ctx context.Context, req EvaluateRequest, body []byte) (domain.ScreeningResult, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return domain.ScreeningResult{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if rid := strings.TrimSpace(req.RequestID); rid != "" {
		httpReq.Header.Set(requestid.Header, rid)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.ScreeningResult{}, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.ScreeningResult{}, true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var verdict struct {
			Score float64  `json:"score"`
			Label string   `json:"label"`
			Flags []string `json:"flags"`
		}
		if err := json.Unmarshal(raw, &verdict); err != nil {
			return domain.ScreeningResult{}, false, fmt.Errorf("decode screening response: %w", err)
		}
		return domain.ScreeningResult{
			Score:       verdict.Score,
			Label:       verdict.Label,
			Flags:       verdict.Flags,
			RawResponse: json.RawMessage(raw),
			EvaluatedAt: c.now().UTC(),
		}, false, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.ScreeningResult{}, false, ErrUnauthorized
	case resp.StatusCode >= 500:
		return domain.ScreeningResult{}, true, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	default:
		return domain.ScreeningResult{}, false, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
}
