package domain

import (
	"errors"
	"strings"
	"time"
)

// Tenant is a renter. Not to be confused with site scoping, which uses
// SiteID throughout.
type Tenant struct {
	ID               string
	SiteID           string
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	EmergencyContact string
	Metadata         Metadata
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CreatedBy        string
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("tenant id is required")
	}
	if strings.TrimSpace(t.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(t.FirstName) == "" {
		return errors.New("first name is required")
	}
	if strings.TrimSpace(t.LastName) == "" {
		return errors.New("last name is required")
	}
	if email := strings.TrimSpace(t.Email); email != "" && !strings.Contains(email, "@") {
		return errors.New("invalid email")
	}
	return nil
}

func (t Tenant) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}
