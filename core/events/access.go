package events

import (
	"github.com/ethereum/go-ethereum/common"

	"gigchain/core/types"
)

const (
	TypeRoleGranted    = "access.role_granted"
	TypeRoleRevoked    = "access.role_revoked"
	TypeModulePaused   = "access.paused"
	TypeModuleUnpaused = "access.unpaused"
)

// RoleChanged is emitted for grants and revocations.
type RoleChanged struct {
	Granted bool
	Role    string
	Account common.Address
	Sender  common.Address
}

func (e RoleChanged) EventType() string {
	if e.Granted {
		return TypeRoleGranted
	}
	return TypeRoleRevoked
}

func (e RoleChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"role":    e.Role,
		"account": formatIdentity(e.Account),
		"sender":  formatIdentity(e.Sender),
	}}
}

// PauseChanged is emitted when an admin flips a module pause flag.
type PauseChanged struct {
	Paused bool
	Module string
	Sender common.Address
}

func (e PauseChanged) EventType() string {
	if e.Paused {
		return TypeModulePaused
	}
	return TypeModuleUnpaused
}

func (e PauseChanged) Event() *types.Event {
	return &types.Event{Type: e.EventType(), Attributes: map[string]string{
		"module": e.Module,
		"sender": formatIdentity(e.Sender),
	}}
}
