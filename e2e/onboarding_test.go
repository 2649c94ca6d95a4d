//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"
)

// TestGateway_LeaseOnboarding walks the lease onboarding flow end to end
// through the gateway: seed the portfolio, open a lease with its checklist,
// sign it, tick off every step, activate, and read back the audit trail.
func TestGateway_LeaseOnboarding(t *testing.T) {
	infra := ensureInfra(t)
	root := repoRoot(t)
	tmpDir := t.TempDir()

	portfolioAddr := freeAddr(t)
	leasingAddr := freeAddr(t)
	auditAddr := freeAddr(t)
	gatewayAddr := freeAddr(t)

	backends := []struct {
		name    string
		path    string
		addrEnv string
		addr    string
	}{
		{name: "portfolio", path: "./portfolio", addrEnv: "PORTFOLIO_HTTP_ADDR", addr: portfolioAddr},
		{name: "leasing", path: "./leasing", addrEnv: "LEASING_HTTP_ADDR", addr: leasingAddr},
		{name: "audit", path: "./audit", addrEnv: "AUDIT_HTTP_ADDR", addr: auditAddr},
	}
	for _, svc := range backends {
		bin := buildService(t, root, tmpDir, svc.name, svc.path)
		env := serviceEnv(infra,
			fmt.Sprintf("%s=%s", svc.addrEnv, svc.addr),
			"AUTH_MODE=forwarded",
		)
		startService(t, svc.name, bin, env)
		// Ready means migrations are applied, so the next boot skips them.
		waitHTTP200(t, fmt.Sprintf("http://%s/readyz", svc.addr))
	}

	gatewayBin := buildService(t, root, tmpDir, "gateway", "./gateway")
	startService(t, "gateway", gatewayBin, serviceEnv(infra,
		"GATEWAY_HTTP_ADDR="+gatewayAddr,
		"AUTH_MODE=dev",
		"PORTFOLIO_BASE_URL=http://"+portfolioAddr,
		"LEASING_BASE_URL=http://"+leasingAddr,
		"AUDIT_BASE_URL=http://"+auditAddr,
	))
	waitHTTP200(t, fmt.Sprintf("http://%s/readyz", gatewayAddr))

	base := "http://" + gatewayAddr
	site := "site-e2e"

	var property struct {
		ID string `json:"id"`
	}
	httpJSON(t, http.MethodPost, fmt.Sprintf("%s/api/portfolio/sites/%s/properties", base, site), map[string]any{
		"name":          "Parkrow Plaza",
		"address_line1": "100 Main St",
		"city":          "Springfield",
		"state":         "IL",
		"postal_code":   "62701",
		"kind":          "apartment",
	}, http.StatusCreated, &property)

	var unit struct {
		ID string `json:"id"`
	}
	httpJSON(t, http.MethodPost, fmt.Sprintf("%s/api/portfolio/sites/%s/properties/%s/units", base, site, property.ID), map[string]any{
		"unit_number": "2B",
		"bedrooms":    2,
		"bathrooms":   1.0,
		"market_rent": "2100.00",
	}, http.StatusCreated, &unit)

	var tenant struct {
		ID string `json:"id"`
	}
	httpJSON(t, http.MethodPost, fmt.Sprintf("%s/api/portfolio/sites/%s/tenants", base, site), map[string]any{
		"first_name": "Jordan",
		"last_name":  "Lee",
		"email":      "jordan.lee@example.com",
	}, http.StatusCreated, &tenant)

	type leaseBody struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		OnboardingPending bool   `json:"onboarding_pending"`
	}
	type checklistBody struct {
		Steps []struct {
			ID        string `json:"id"`
			Required  bool   `json:"required"`
			Completed bool   `json:"completed"`
		} `json:"steps"`
		Progress        int `json:"progress"`
		MissingRequired int `json:"missing_required"`
	}
	type recordBody struct {
		FromStatus string `json:"from_status"`
		ToStatus   string `json:"to_status"`
		Bypassed   bool   `json:"bypassed"`
	}

	leasesURL := fmt.Sprintf("%s/api/leasing/sites/%s/leases", base, site)
	var created struct {
		Lease     leaseBody     `json:"lease"`
		Checklist checklistBody `json:"checklist"`
	}
	httpJSON(t, http.MethodPost, leasesURL, map[string]any{
		"property_id": property.ID,
		"unit_id":     unit.ID,
		"tenant_id":   tenant.ID,
		"rent":        "2100.00",
		"deposit":     "2100.00",
		"start_date":  "2026-10-01",
		"end_date":    "2027-09-30",
	}, http.StatusCreated, &created)
	if created.Lease.Status != "draft" || !created.Lease.OnboardingPending {
		t.Fatalf("new lease should be a draft pending onboarding, got %+v", created.Lease)
	}
	if len(created.Checklist.Steps) == 0 || created.Checklist.MissingRequired == 0 {
		t.Fatalf("new checklist should have open required steps, got %+v", created.Checklist)
	}

	leaseURL := fmt.Sprintf("%s/%s", leasesURL, created.Lease.ID)

	var transitioned struct {
		Lease  leaseBody  `json:"lease"`
		Record recordBody `json:"record"`
	}
	for _, to := range []string{"pending_signature", "signed"} {
		httpJSON(t, http.MethodPost, leaseURL+"/transition", map[string]any{
			"to_status": to,
		}, http.StatusOK, &transitioned)
		if transitioned.Lease.Status != to {
			t.Fatalf("lease status=%q after transition, want %q", transitioned.Lease.Status, to)
		}
		if transitioned.Record.ToStatus != to || transitioned.Record.Bypassed {
			t.Fatalf("unexpected transition record: %+v", transitioned.Record)
		}
	}

	var checklist checklistBody
	for _, step := range created.Checklist.Steps {
		if step.Completed {
			continue
		}
		httpJSON(t, http.MethodPost, fmt.Sprintf("%s/checklist/steps/%s", leaseURL, step.ID), map[string]any{
			"completed": true,
		}, http.StatusOK, &checklist)
	}
	if checklist.MissingRequired != 0 || checklist.Progress != 100 {
		t.Fatalf("checklist should be complete, got missing=%d progress=%d", checklist.MissingRequired, checklist.Progress)
	}

	var completed struct {
		Lease  leaseBody   `json:"lease"`
		Record *recordBody `json:"record"`
	}
	httpJSON(t, http.MethodPost, leaseURL+"/complete-onboarding", map[string]any{
		"set_active_status": true,
	}, http.StatusOK, &completed)
	if completed.Lease.Status != "active" || completed.Lease.OnboardingPending {
		t.Fatalf("lease should be active after onboarding, got %+v", completed.Lease)
	}
	if completed.Record == nil || completed.Record.ToStatus != "active" || completed.Record.Bypassed {
		t.Fatalf("expected a clean signed to active transition, got %+v", completed.Record)
	}

	var fetched leaseBody
	httpJSON(t, http.MethodGet, leaseURL, nil, http.StatusOK, &fetched)
	if fetched.Status != "active" {
		t.Fatalf("lease status=%q after onboarding, want active", fetched.Status)
	}

	var trail struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}
	auditURL := fmt.Sprintf("%s/api/audit/events?site_id=%s&entity_type=lease&entity_id=%s", base, site, created.Lease.ID)
	httpJSON(t, http.MethodGet, auditURL, nil, http.StatusOK, &trail)
	actions := make(map[string]bool, len(trail.Items))
	for _, item := range trail.Items {
		actions[item.Action] = true
	}
	for _, want := range []string{"lease.created", "lease.transition", "lease.onboarding_completed"} {
		if !actions[want] {
			t.Fatalf("audit trail missing %s, have %v", want, actions)
		}
	}
}

func httpJSON(t *testing.T, method, url string, body any, wantStatus int, out any) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal %s %s: %v", method, url, err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("new request %s %s: %v", method, url, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s %s: %v", method, url, err)
	}
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s status=%d, want %d\n%s", method, url, resp.StatusCode, wantStatus, data)
	}
	if out == nil {
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("decode %s %s: %v\n%s", method, url, err, data)
	}
}
