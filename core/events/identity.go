package events

import (
	"github.com/ethereum/go-ethereum/common"

	"gigchain/core/types"
)

const TypeIdentityRegistered = "identity.registered"

// IdentityRegistered is emitted when an address registers as a client or a
// freelancer.
type IdentityRegistered struct {
	Address common.Address
	Kind    string
}

// EventType implements the Event interface.
func (IdentityRegistered) EventType() string { return TypeIdentityRegistered }

// Event converts the strongly typed event to the generic representation used by subscribers.
func (e IdentityRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeIdentityRegistered,
		Attributes: map[string]string{
			"address": formatIdentity(e.Address),
			"kind":    e.Kind,
		},
	}
}
