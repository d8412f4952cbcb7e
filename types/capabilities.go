package types

// ------------------------
// Capability addressing & kinds
// ------------------------

type Kind string

const (
	KindDistance Kind = "distance"
)

// CapabilityAddress identifies a public capability on the bus.
type CapabilityAddress struct {
	Domain string `json:"domain"` // e.g. "range"
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
}
