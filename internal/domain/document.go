package domain

import (
	"errors"
	"strings"
	"time"
)

// DocumentKind separates binary documents from images for listing and
// content-type checks. Storage treats both the same.
type DocumentKind string

const (
	DocumentKindDocument DocumentKind = "document"
	DocumentKindImage    DocumentKind = "image"
)

// DocumentEntityType names the entity a document is attached to.
type DocumentEntityType string

const (
	DocumentEntityProperty    DocumentEntityType = "property"
	DocumentEntityUnit        DocumentEntityType = "unit"
	DocumentEntityTenant      DocumentEntityType = "tenant"
	DocumentEntityLease       DocumentEntityType = "lease"
	DocumentEntityApplication DocumentEntityType = "application"
	DocumentEntityWorkOrder   DocumentEntityType = "work_order"
)

// Document is file metadata; the payload lives in the object store under
// ObjectKey.
type Document struct {
	ID          string
	SiteID      string
	EntityType  DocumentEntityType
	EntityID    string
	Kind        DocumentKind
	Filename    string
	ContentType string
	SizeBytes   int64
	ObjectKey   string
	SHA256      string
	UploadedBy  string
	Metadata    Metadata
	CreatedAt   time.Time
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return errors.New("document id is required")
	}
	if strings.TrimSpace(d.SiteID) == "" {
		return errors.New("site id is required")
	}
	if !d.EntityType.Valid() {
		return errors.New("invalid entity type")
	}
	if strings.TrimSpace(d.EntityID) == "" {
		return errors.New("entity id is required")
	}
	if !d.Kind.Valid() {
		return errors.New("invalid document kind")
	}
	if strings.TrimSpace(d.Filename) == "" {
		return errors.New("filename is required")
	}
	if d.SizeBytes < 0 {
		return errors.New("size bytes must not be negative")
	}
	return nil
}

func (k DocumentKind) Valid() bool {
	return k == DocumentKindDocument || k == DocumentKindImage
}

func (t DocumentEntityType) Valid() bool {
	switch t {
	case DocumentEntityProperty, DocumentEntityUnit, DocumentEntityTenant,
		DocumentEntityLease, DocumentEntityApplication, DocumentEntityWorkOrder:
		return true
	default:
		return false
	}
}
