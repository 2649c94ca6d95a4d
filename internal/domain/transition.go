package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// TransitionDomain names the entity family a transition record belongs to.
type TransitionDomain string

const (
	TransitionDomainLease       TransitionDomain = "lease"
	TransitionDomainApplication TransitionDomain = "application"
)

// TransitionType distinguishes operator-driven from system-driven transitions.
type TransitionType string

const (
	TransitionTypeManual    TransitionType = "manual"
	TransitionTypeAutomatic TransitionType = "automatic"
)

// BypassCategory classifies why a confirmation gate was bypassed.
type BypassCategory string

const (
	BypassCategoryDataCorrection BypassCategory = "data_correction"
	BypassCategoryRetroActive    BypassCategory = "retro_active"
	BypassCategoryAdministrative BypassCategory = "administrative"
	BypassCategoryOther          BypassCategory = "other"
)

// TransitionRecord is an immutable record of a lifecycle transition. There is
// no update path; EnsureTransitionRecordImmutable guards against one appearing.
type TransitionRecord struct {
	ID                string
	SiteID            string
	Domain            TransitionDomain
	EntityID          string
	FromStatus        string
	ToStatus          string
	Type              TransitionType
	ConfirmationAck   bool
	BypassReason      string
	BypassCategory    BypassCategory
	ChecklistSnapshot json.RawMessage
	Actor             string
	CreatedAt         time.Time
}

func (r TransitionRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("transition record id is required")
	}
	if strings.TrimSpace(r.SiteID) == "" {
		return errors.New("site id is required")
	}
	if !r.Domain.Valid() {
		return errors.New("invalid transition domain")
	}
	if strings.TrimSpace(r.EntityID) == "" {
		return errors.New("entity id is required")
	}
	if strings.TrimSpace(r.FromStatus) == "" {
		return errors.New("from status is required")
	}
	if strings.TrimSpace(r.ToStatus) == "" {
		return errors.New("to status is required")
	}
	if !r.Type.Valid() {
		return errors.New("invalid transition type")
	}
	if strings.TrimSpace(r.Actor) == "" {
		return errors.New("actor is required")
	}
	bypassed := r.Bypassed()
	if bypassed && strings.TrimSpace(r.BypassReason) == "" {
		return errors.New("bypass reason is required")
	}
	if bypassed && !r.BypassCategory.Valid() {
		return errors.New("invalid bypass category")
	}
	return nil
}

// Bypassed reports whether the record carries a confirmation bypass.
func (r TransitionRecord) Bypassed() bool {
	return r.BypassReason != "" || r.BypassCategory != ""
}

func (d TransitionDomain) Valid() bool {
	return d == TransitionDomainLease || d == TransitionDomainApplication
}

func (t TransitionType) Valid() bool {
	return t == TransitionTypeManual || t == TransitionTypeAutomatic
}

func (c BypassCategory) Valid() bool {
	switch c {
	case BypassCategoryDataCorrection, BypassCategoryRetroActive, BypassCategoryAdministrative, BypassCategoryOther:
		return true
	default:
		return false
	}
}

func BypassCategories() []BypassCategory {
	return []BypassCategory{
		BypassCategoryDataCorrection,
		BypassCategoryRetroActive,
		BypassCategoryAdministrative,
		BypassCategoryOther,
	}
}
