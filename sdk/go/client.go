// Package parkrow is a minimal client for the Parkrow back-office API,
// addressed through the gateway. It covers the operator surface: applications,
// leases and their onboarding checklists, bulk actions, and the audit feed.
package parkrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is a Parkrow HTTP API client scoped to one site.
type Client struct {
	BaseURL     string
	SiteID      string
	BearerToken string
	RequestID   string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, siteID string) *Client {
	return &Client{
		BaseURL: baseURL,
		SiteID:  siteID,
		Timeout: 10 * time.Second,
	}
}

// Screening is the stored screening verdict (partial).
type Screening struct {
	Score float64  `json:"score"`
	Label string   `json:"label"`
	Flags []string `json:"flags,omitempty"`
}

// Application represents the API application model (partial).
type Application struct {
	ID            string          `json:"id"`
	SiteID        string          `json:"site_id"`
	ApplicantName string          `json:"applicant_name"`
	Email         string          `json:"email"`
	PropertyID    string          `json:"property_id,omitempty"`
	UnitID        string          `json:"unit_id,omitempty"`
	Status        string          `json:"status"`
	DesiredMoveIn string          `json:"desired_move_in,omitempty"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	Screening     *Screening      `json:"screening,omitempty"`
	LeaseID       string          `json:"lease_id,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// Lease represents the API lease model (partial).
type Lease struct {
	ID                string          `json:"id"`
	SiteID            string          `json:"site_id"`
	PropertyID        string          `json:"property_id"`
	UnitID            string          `json:"unit_id"`
	TenantID          string          `json:"tenant_id"`
	Status            string          `json:"status"`
	Rent              decimal.Decimal `json:"rent"`
	Deposit           decimal.Decimal `json:"deposit"`
	StartDate         string          `json:"start_date,omitempty"`
	EndDate           string          `json:"end_date,omitempty"`
	OnboardingPending bool            `json:"onboarding_pending"`
	Version           int             `json:"version"`
	CreatedAt         string          `json:"created_at"`
	UpdatedAt         string          `json:"updated_at"`
}

// ChecklistStep is one onboarding step.
type ChecklistStep struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Required    bool   `json:"required"`
	Completed   bool   `json:"completed"`
	CompletedAt string `json:"completed_at,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Checklist is a lease onboarding checklist with derived progress.
type Checklist struct {
	ID              string          `json:"id"`
	SiteID          string          `json:"site_id"`
	LeaseID         string          `json:"lease_id"`
	Steps           []ChecklistStep `json:"steps"`
	TotalSteps      int             `json:"total_steps"`
	CompletedSteps  int             `json:"completed_steps"`
	Progress        int             `json:"progress"`
	MissingRequired int             `json:"missing_required"`
}

// TransitionRecord is one immutable status-change entry.
type TransitionRecord struct {
	ID              string `json:"id"`
	SiteID          string `json:"site_id"`
	Domain          string `json:"domain"`
	EntityID        string `json:"entity_id"`
	FromStatus      string `json:"from_status"`
	ToStatus        string `json:"to_status"`
	Type            string `json:"type"`
	ConfirmationAck bool   `json:"confirmation_acknowledged"`
	Bypassed        bool   `json:"bypassed"`
	BypassReason    string `json:"bypass_reason,omitempty"`
	BypassCategory  string `json:"bypass_category,omitempty"`
	Actor           string `json:"actor"`
	CreatedAt       string `json:"created_at"`
}

// TransitionInput is the body for lease and application transitions.
type TransitionInput struct {
	ToStatus                 string `json:"to_status"`
	ConfirmationAcknowledged bool   `json:"confirmation_acknowledged"`
	BypassReason             string `json:"bypass_reason,omitempty"`
	BypassCategory           string `json:"bypass_category,omitempty"`
}

// LeaseTransitionResult pairs the updated lease with its transition record.
type LeaseTransitionResult struct {
	Lease  Lease             `json:"lease"`
	Record *TransitionRecord `json:"record,omitempty"`
}

// ApplicationTransitionResult pairs the updated application with its record.
type ApplicationTransitionResult struct {
	Application Application       `json:"application"`
	Record      *TransitionRecord `json:"record,omitempty"`
}

// BulkAction is a recorded batch operation.
type BulkAction struct {
	ID               string         `json:"id"`
	SiteID           string         `json:"site_id"`
	Type             string         `json:"type"`
	PerformedBy      string         `json:"performed_by"`
	ApplicationCount int            `json:"application_count"`
	SuccessCount     int            `json:"success_count"`
	FailureCount     int            `json:"failure_count"`
	Params           map[string]any `json:"params,omitempty"`
	CreatedAt        string         `json:"created_at"`
	FinalizedAt      string         `json:"finalized_at,omitempty"`
}

// BulkItemResult is the per-application outcome of a bulk run.
type BulkItemResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BulkRunResult is the immediate response of a bulk run.
type BulkRunResult struct {
	Action       BulkAction       `json:"action"`
	Results      []BulkItemResult `json:"results"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
}

// BulkRunInput selects applications and the action to run over them.
type BulkRunInput struct {
	Action         string         `json:"action"`
	ApplicationIDs []string       `json:"application_ids"`
	Params         map[string]any `json:"params,omitempty"`
}

// BulkActionDetail is a finalized action with its per-item audit trail.
type BulkActionDetail struct {
	Action       BulkAction   `json:"action"`
	AuditEntries []AuditEvent `json:"audit_entries"`
}

// AuditEvent is one audit log entry.
type AuditEvent struct {
	EntryID      int64          `json:"entry_id"`
	OccurredAt   string         `json:"occurred_at"`
	SiteID       string         `json:"site_id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	RequestID    string         `json:"request_id,omitempty"`
	BulkActionID string         `json:"bulk_action_id,omitempty"`
	IP           string         `json:"ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ApplicationListOptions filter ListApplications.
type ApplicationListOptions struct {
	Status     string
	PropertyID string
	Query      string
	Limit      int
	Offset     int
}

// ListApplications returns applications for the client's site.
func (c *Client) ListApplications(ctx context.Context, opts ApplicationListOptions) ([]Application, error) {
	q := url.Values{}
	setQuery(q, "status", opts.Status)
	setQuery(q, "property_id", opts.PropertyID)
	setQuery(q, "q", opts.Query)
	setQueryInt(q, "limit", opts.Limit)
	setQueryInt(q, "offset", opts.Offset)
	var resp struct {
		Items []Application `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withQuery(c.leasingPath("applications"), q), nil, &resp)
	return resp.Items, err
}

// GetApplication fetches one application by id.
func (c *Client) GetApplication(ctx context.Context, id string) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodGet, c.leasingPath("applications/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// TransitionApplication moves an application through the lead pipeline.
func (c *Client) TransitionApplication(ctx context.Context, id string, in TransitionInput) (ApplicationTransitionResult, error) {
	var resp ApplicationTransitionResult
	err := c.do(ctx, http.MethodPost, c.leasingPath("applications/"+url.PathEscape(id)+"/transition"), in, &resp)
	return resp, err
}

// LeaseChecklist returns the onboarding checklist for a lease.
func (c *Client) LeaseChecklist(ctx context.Context, leaseID string) (Checklist, error) {
	var resp Checklist
	err := c.do(ctx, http.MethodGet, c.leasingPath("leases/"+url.PathEscape(leaseID)+"/checklist"), nil, &resp)
	return resp, err
}

// TransitionLease moves a lease through its lifecycle.
func (c *Client) TransitionLease(ctx context.Context, leaseID string, in TransitionInput) (LeaseTransitionResult, error) {
	var resp LeaseTransitionResult
	err := c.do(ctx, http.MethodPost, c.leasingPath("leases/"+url.PathEscape(leaseID)+"/transition"), in, &resp)
	return resp, err
}

// RunBulk executes a bulk action over the selected applications.
func (c *Client) RunBulk(ctx context.Context, in BulkRunInput) (BulkRunResult, error) {
	var resp BulkRunResult
	err := c.do(ctx, http.MethodPost, c.leasingPath("applications:bulk"), in, &resp)
	return resp, err
}

// GetBulkAction fetches a bulk action record with its audit trail.
func (c *Client) GetBulkAction(ctx context.Context, id string) (BulkActionDetail, error) {
	var resp BulkActionDetail
	err := c.do(ctx, http.MethodGet, c.leasingPath("bulk-actions/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ExportApplications streams the CSV export for the selected applications.
// The caller owns the returned reader and must close it.
func (c *Client) ExportApplications(ctx context.Context, applicationIDs []string) (io.ReadCloser, error) {
	body := BulkRunInput{Action: "export", ApplicationIDs: applicationIDs}
	resp, err := c.doRaw(ctx, http.MethodPost, c.leasingPath("applications:bulk"), body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// EventOptions filter Events.
type EventOptions struct {
	Action       string
	EntityType   string
	EntityID     string
	BulkActionID string
	Since        string
	Limit        int
}

// Events returns recent audit entries for the client's site, newest first.
func (c *Client) Events(ctx context.Context, opts EventOptions) ([]AuditEvent, error) {
	q := url.Values{}
	setQuery(q, "action", opts.Action)
	setQuery(q, "entity_type", opts.EntityType)
	setQuery(q, "entity_id", opts.EntityID)
	setQuery(q, "bulk_action_id", opts.BulkActionID)
	setQuery(q, "since", opts.Since)
	setQueryInt(q, "limit", opts.Limit)
	var resp struct {
		Items []AuditEvent `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, withQuery("api/audit/events", q), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	resp, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	requestURL := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	if c.SiteID != "" {
		req.Header.Set("X-Site-Id", c.SiteID)
	}
	if c.RequestID != "" {
		req.Header.Set("X-Request-Id", c.RequestID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

func (c *Client) leasingPath(p string) string {
	site := url.PathEscape(c.SiteID)
	return fmt.Sprintf("api/leasing/sites/%s/%s", site, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func setQuery(q url.Values, key, value string) {
	if strings.TrimSpace(value) != "" {
		q.Set(key, value)
	}
}

func setQueryInt(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}
