package model

import "github.com/rotisserie/eris"

// EntityKind is the domain category a published data file is classified into.
type EntityKind string

const (
	KindArrests    EntityKind = "arrests"
	KindDetentions EntityKind = "detentions"
	KindRemovals   EntityKind = "removals"
	KindUnknown    EntityKind = "unknown"
)

// Importable reports whether records of this kind can be built from a file.
func (k EntityKind) Importable() bool {
	switch k {
	case KindArrests, KindDetentions, KindRemovals:
		return true
	default:
		return false
	}
}

// ParseEntityKind converts "arrests", "detentions", "removals" into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch EntityKind(s) {
	case KindArrests, KindDetentions, KindRemovals:
		return EntityKind(s), nil
	default:
		return "", eris.Errorf("unknown entity kind: %q (valid: arrests, detentions, removals)", s)
	}
}

// DataFileReference is a downloadable file discovered on the listing page.
type DataFileReference struct {
	URL            string     `json:"url" yaml:"url"`
	DisplayText    string     `json:"display_text" yaml:"display_text"`
	Kind           EntityKind `json:"kind" yaml:"kind"`
	InferredPeriod string     `json:"inferred_period,omitempty" yaml:"inferred_period,omitempty"`
}
