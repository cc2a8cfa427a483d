// Package lookup resolves raw scanned codes to catalog entities.
package lookup

import "context"

// Kind is the entity family a code belongs to.
type Kind string

const (
	KindStudent   Kind = "student"
	KindBook      Kind = "book"
	KindEquipment Kind = "equipment"
)

// Entity is a resolved scan code.
type Entity struct {
	Kind  Kind   `json:"kind"`
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Resolver maps a scanned code to an entity. An unrecognized code is reported
// with found=false, never as an error; errors mean the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, code string) (Entity, bool, error)
}
