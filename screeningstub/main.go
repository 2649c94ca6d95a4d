// Command screeningstub is a local stand-in for the external applicant
// screening worker. Verdicts are deterministic per application so dev and
// demo flows are reproducible.
package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

type evaluateRequest struct {
	SiteID        string          `json:"site_id"`
	ApplicationID string          `json:"application_id"`
	ApplicantName string          `json:"applicant_name"`
	Email         string          `json:"email"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	RequestedRent decimal.Decimal `json:"requested_rent"`
}

type verdictResponse struct {
	Score  float64  `json:"score"`
	Label  string   `json:"label"`
	Flags  []string `json:"flags"`
	Bureau string   `json:"bureau"`
}

func main() {
	addr := strings.TrimSpace(os.Getenv("SCREENINGSTUB_HTTP_ADDR"))
	if addr == "" {
		addr = ":8090"
	}
	token := strings.TrimSpace(os.Getenv("SCREENING_TOKEN"))

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/evaluate", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if token != "" && !bearerMatches(r, token) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
			return
		}
		var req evaluateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_json"})
			return
		}
		req.ApplicationID = strings.TrimSpace(req.ApplicationID)
		if req.ApplicationID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
			return
		}
		writeJSON(w, http.StatusOK, verdictFor(req))
	})

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	log.Printf("screening stub listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

// verdictFor derives the verdict from a hash of the application identity, so
// the same application always screens the same way across restarts.
func verdictFor(req evaluateRequest) verdictResponse {
	sum := sha256.Sum256([]byte(req.SiteID + ":" + req.ApplicationID))
	score := float64(binary.BigEndian.Uint16(sum[:2])%1001) / 10.0

	flags := make([]string, 0, 4)
	for i, flag := range []string{"identity_unverified", "prior_address_mismatch", "thin_credit_file"} {
		if sum[2]&(1<<i) != 0 {
			flags = append(flags, flag)
		}
	}
	if incomeRatioLow(req.MonthlyIncome, req.RequestedRent) {
		flags = append(flags, "income_ratio_low")
		score -= 15
		if score < 0 {
			score = 0
		}
	}

	label := "decline"
	switch {
	case score >= 75:
		label = "approve"
	case score >= 45:
		label = "review"
	}

	return verdictResponse{
		Score:  score,
		Label:  label,
		Flags:  flags,
		Bureau: "screeningstub",
	}
}

// incomeRatioLow reports income below three times the requested rent. Zero or
// missing amounts never flag.
func incomeRatioLow(income, rent decimal.Decimal) bool {
	if !income.IsPositive() || !rent.IsPositive() {
		return false
	}
	return income.LessThan(rent.Mul(decimal.NewFromInt(3)))
}

func bearerMatches(r *http.Request, token string) bool {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(token)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
