package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Occupancy is the physical state of a unit, independent of lease status.
type Occupancy string

const (
	OccupancyVacant    Occupancy = "vacant"
	OccupancyOccupied  Occupancy = "occupied"
	OccupancyMakeReady Occupancy = "make_ready"
	OccupancyDown      Occupancy = "down"
)

// Unit is a rentable unit within a property. UnitNumber is unique per property.
type Unit struct {
	ID         string
	SiteID     string
	PropertyID string
	UnitNumber string
	Bedrooms   int
	Bathrooms  float64
	SquareFeet int
	MarketRent decimal.Decimal
	Occupancy  Occupancy
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
	CreatedBy  string
}

func (u Unit) Validate() error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("unit id is required")
	}
	if strings.TrimSpace(u.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(u.PropertyID) == "" {
		return errors.New("property id is required")
	}
	if strings.TrimSpace(u.UnitNumber) == "" {
		return errors.New("unit number is required")
	}
	if u.Bedrooms < 0 {
		return errors.New("bedrooms must not be negative")
	}
	if u.Bathrooms < 0 {
		return errors.New("bathrooms must not be negative")
	}
	if u.MarketRent.IsNegative() {
		return errors.New("market rent must not be negative")
	}
	if !u.Occupancy.Valid() {
		return errors.New("invalid occupancy")
	}
	return nil
}

func (o Occupancy) Valid() bool {
	switch o {
	case OccupancyVacant, OccupancyOccupied, OccupancyMakeReady, OccupancyDown:
		return true
	default:
		return false
	}
}

func Occupancies() []Occupancy {
	return []Occupancy{OccupancyVacant, OccupancyOccupied, OccupancyMakeReady, OccupancyDown}
}
