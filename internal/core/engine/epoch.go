package engine

import "github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"

// Epoch is the coordinate/user snapshot a fetch was issued for. Seq grows
// on every committed selection; a response is current only if its Seq
// matches the engine's.
type Epoch struct {
	Seq    uint64
	Center domain.Coordinate
	UserID string
}

func (e Epoch) current(now Epoch) bool {
	return e.Seq == now.Seq
}
