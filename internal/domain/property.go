package domain

import (
	"errors"
	"strings"
	"time"
)

// PropertyKind classifies a property.
type PropertyKind string

const (
	PropertyKindSingleFamily PropertyKind = "single_family"
	PropertyKindMultiFamily  PropertyKind = "multi_family"
	PropertyKindApartment    PropertyKind = "apartment"
	PropertyKindCondo        PropertyKind = "condo"
	PropertyKindTownhome     PropertyKind = "townhome"
	PropertyKindCommercial   PropertyKind = "commercial"
)

// Property is a managed building or site-level asset.
type Property struct {
	ID           string
	SiteID       string
	Name         string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Kind         PropertyKind
	YearBuilt    int
	Notes        string
	Metadata     Metadata
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
}

func (p Property) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return errors.New("property id is required")
	}
	if strings.TrimSpace(p.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("property name is required")
	}
	if !p.Kind.Valid() {
		return errors.New("invalid property kind")
	}
	return nil
}

func (k PropertyKind) Valid() bool {
	switch k {
	case PropertyKindSingleFamily, PropertyKindMultiFamily, PropertyKindApartment,
		PropertyKindCondo, PropertyKindTownhome, PropertyKindCommercial:
		return true
	default:
		return false
	}
}

func PropertyKinds() []PropertyKind {
	return []PropertyKind{
		PropertyKindSingleFamily,
		PropertyKindMultiFamily,
		PropertyKindApartment,
		PropertyKindCondo,
		PropertyKindTownhome,
		PropertyKindCommercial,
	}
}
