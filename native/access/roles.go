package access

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"gigchain/core/events"
	nativecommon "gigchain/native/common"
)

// Roles recognised by the custody modules.
const (
	RoleAdmin         = "admin"
	RoleJobManager    = "job-manager"
	RoleEscrowManager = "escrow-manager"
)

// Modules that can be paused individually.
const (
	ModuleJobs   = "jobs"
	ModuleEscrow = "escrow"
)

var (
	ErrNotAdmin      = fmt.Errorf("%w: caller lacks the admin role", nativecommon.ErrUnauthorized)
	ErrUnknownRole   = fmt.Errorf("%w: unknown role", nativecommon.ErrInvalidValue)
	ErrUnknownModule = fmt.Errorf("%w: unknown module", nativecommon.ErrInvalidValue)
	ErrLastAdmin     = fmt.Errorf("%w: cannot revoke the last admin", nativecommon.ErrInvalidState)
)

var knownRoles = map[string]struct{}{
	RoleAdmin:         {},
	RoleJobManager:    {},
	RoleEscrowManager: {},
}

var knownModules = map[string]struct{}{
	nativecommon.GlobalModule: {},
	ModuleJobs:                {},
	ModuleEscrow:              {},
}

type roleState interface {
	HasRole(role string, addr common.Address) bool
	SetRole(role string, addr common.Address) error
	RemoveRole(role string, addr common.Address) error
	RoleMembers(role string) ([]common.Address, error)
	SetPaused(module string, paused bool) error
	IsPaused(module string) bool
}

// Controller is the grant/revoke front-end of the role store. The custody
// engines only read from it.
type Controller struct {
	state   roleState
	emitter events.Emitter
}

// NewController binds a controller to state. A nil emitter discards events.
func NewController(state roleState, emitter events.Emitter) *Controller {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Controller{state: state, emitter: emitter}
}

// NormalizeRole validates and canonicalises a role name.
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	if _, ok := knownRoles[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return normalized, nil
}

// NormalizeModule validates and canonicalises a pausable module name.
func NormalizeModule(module string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(module))
	if _, ok := knownModules[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	return normalized, nil
}

// HasRole reports whether account holds role.
func (c *Controller) HasRole(role string, account common.Address) bool {
	return c.state.HasRole(role, account)
}

// IsPaused reports whether the module flag is set.
func (c *Controller) IsPaused(module string) bool {
	return c.state.IsPaused(module)
}

// Members lists the holders of role.
func (c *Controller) Members(role string) ([]common.Address, error) {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return nil, err
	}
	return c.state.RoleMembers(normalized)
}

// Bootstrap grants a role without an admin check. Genesis uses it to seed
// the initial holders.
func (c *Controller) Bootstrap(role string, account common.Address) error {
	normalized, err := NormalizeRole(role)
	if err != nil {
		return err
	}
	return c.state.SetRole(normalized, account)
}

// Grant gives account the role. The caller must be an admin.
func (c *Controller) Grant(caller common.Address, role string, account common.Address) error {
	normalized, err := c.authorize(caller, role)
	if err != nil {
		return err
	}
	if account == (common.Address{}) {
		return fmt.Errorf("%w: zero account", nativecommon.ErrInvalidValue)
	}
	if err := c.state.SetRole(normalized, account); err != nil {
		return err
	}
	c.emitter.Emit(events.RoleChanged{Granted: true, Role: normalized, Account: account, Sender: caller})
	return nil
}

// Revoke removes the role from account. The caller must be an admin and the
// last admin can never be removed.
func (c *Controller) Revoke(caller common.Address, role string, account common.Address) error {
	normalized, err := c.authorize(caller, role)
	if err != nil {
		return err
	}
	if normalized == RoleAdmin && c.state.HasRole(RoleAdmin, account) {
		members, err := c.state.RoleMembers(RoleAdmin)
		if err != nil {
			return err
		}
		if len(members) <= 1 {
			return ErrLastAdmin
		}
	}
	if err := c.state.RemoveRole(normalized, account); err != nil {
		return err
	}
	c.emitter.Emit(events.RoleChanged{Granted: false, Role: normalized, Account: account, Sender: caller})
	return nil
}

// Pause blocks every state-changing entry point of module.
func (c *Controller) Pause(caller common.Address, module string) error {
	return c.setPaused(caller, module, true)
}

// Unpause lifts a previous Pause.
func (c *Controller) Unpause(caller common.Address, module string) error {
	return c.setPaused(caller, module, false)
}

func (c *Controller) setPaused(caller common.Address, module string, paused bool) error {
	if !c.state.HasRole(RoleAdmin, caller) {
		return ErrNotAdmin
	}
	normalized, err := NormalizeModule(module)
	if err != nil {
		return err
	}
	if err := c.state.SetPaused(normalized, paused); err != nil {
		return err
	}
	c.emitter.Emit(events.PauseChanged{Paused: paused, Module: normalized, Sender: caller})
	return nil
}

func (c *Controller) authorize(caller common.Address, role string) (string, error) {
	if !c.state.HasRole(RoleAdmin, caller) {
		return "", ErrNotAdmin
	}
	return NormalizeRole(role)
}
