// core/genesis/loader.go
package genesis

import (
	"fmt"

	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/crypto"
	"gigchain/native/access"
	"gigchain/native/bank"
	"gigchain/native/identity"
)

var appliedMarker = []byte("genesis/applied")

// Applied reports whether a bootstrap file has already been written to state.
func Applied(manager *state.Manager) (bool, error) {
	if manager == nil {
		return false, fmt.Errorf("state manager must not be nil")
	}
	var marker uint64
	return manager.KVGet(appliedMarker, &marker)
}

// Apply writes spec into the pending set of manager. The caller commits. The
// roles, identities, balances, allowances and pause flags are applied in
// deterministic order. Events raised while seeding go to emitter.
func Apply(spec *Spec, manager *state.Manager, emitter events.Emitter) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}
	applied, err := Applied(manager)
	if err != nil {
		return err
	}
	if applied {
		return fmt.Errorf("genesis already applied")
	}
	ts := spec.GenesisTimestamp()
	if ts.IsZero() {
		if ts, err = parseGenesisTime(spec.GenesisTime); err != nil {
			return err
		}
	}

	roles := access.NewController(manager, emitter)
	for _, role := range sortedKeys(spec.Roles) {
		for _, raw := range spec.Roles[role] {
			account, err := crypto.ParseIdentity(raw)
			if err != nil {
				return fmt.Errorf("role %s: %w", role, err)
			}
			if err := roles.Bootstrap(role, account); err != nil {
				return fmt.Errorf("role %s: %w", role, err)
			}
		}
	}

	registry := identity.NewRegistry(manager, emitter)
	registry.SetNowFunc(func() int64 { return ts.Unix() })
	for _, entry := range spec.Identities {
		addr, err := crypto.ParseIdentity(entry.Address)
		if err != nil {
			return err
		}
		kind, err := identity.ParseKind(entry.Kind)
		if err != nil {
			return err
		}
		if err := registry.Register(addr, kind); err != nil {
			return fmt.Errorf("identity %s: %w", entry.Address, err)
		}
	}

	ledger := bank.NewLedger(manager, emitter)
	for _, raw := range sortedKeys(spec.Balances) {
		addr, err := crypto.ParseIdentity(raw)
		if err != nil {
			return err
		}
		amount, err := parseAmountString(spec.Balances[raw])
		if err != nil {
			return err
		}
		if amount.IsZero() {
			continue
		}
		if err := ledger.Mint(addr, amount); err != nil {
			return fmt.Errorf("balance %s: %w", raw, err)
		}
	}

	for i, a := range spec.Allowances {
		owner, err := crypto.ParseIdentity(a.Owner)
		if err != nil {
			return err
		}
		spender, err := ResolveAccount(a.Spender)
		if err != nil {
			return err
		}
		amount, err := parseAmountString(a.Amount)
		if err != nil {
			return err
		}
		if err := ledger.Approve(owner, spender, amount); err != nil {
			return fmt.Errorf("allowance %d: %w", i, err)
		}
	}

	for _, raw := range spec.Paused {
		module, err := access.NormalizeModule(raw)
		if err != nil {
			return err
		}
		if err := manager.SetPaused(module, true); err != nil {
			return err
		}
	}

	return manager.KVPut(appliedMarker, uint64(ts.Unix()))
}
