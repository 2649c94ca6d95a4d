package domain

// Metadata carries free-form key/value details callers attach to an entity:
// appliance serial numbers on a unit, the source campaign on an applicant,
// scanner output on a document. It is stored as JSONB and never interpreted
// by the services themselves.
type Metadata map[string]any

// Clone returns a shallow copy that is safe to mutate. Cloning a nil map
// yields an empty one, so callers can add keys without a nil check.
func (m Metadata) Clone() Metadata {
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
