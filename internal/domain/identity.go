package domain

import "github.com/google/uuid"

// Identity is the verified caller identity supplied by the external auth
// service. It is an immutable value passed explicitly into every core
// operation; the core never reads identity from ambient request state.
type Identity struct {
	AccountID uuid.UUID
	Country   string
}

// Lane returns the processing lane for the identity's country.
func (id Identity) Lane() int {
	return LaneFor(id.Country)
}
