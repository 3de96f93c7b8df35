package bank

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"gigchain/core/events"
	"gigchain/crypto"
	nativecommon "gigchain/native/common"
)

var (
	ErrInsufficientBalance   = fmt.Errorf("%w: insufficient balance", nativecommon.ErrCustody)
	ErrInsufficientAllowance = fmt.Errorf("%w: insufficient allowance", nativecommon.ErrCustody)
	ErrBalanceOverflow       = fmt.Errorf("%w: balance overflow", nativecommon.ErrCustody)
	ErrZeroAddress           = fmt.Errorf("%w: zero address", nativecommon.ErrInvalidValue)
	ErrCustodyAccount        = fmt.Errorf("%w: module custody account", nativecommon.ErrInvalidValue)
)

type ledgerState interface {
	Balance(addr common.Address) (*uint256.Int, error)
	SetBalance(addr common.Address, amount *uint256.Int) error
	Allowance(owner, spender common.Address) (*uint256.Int, error)
	SetAllowance(owner, spender common.Address, amount *uint256.Int) error
	TotalSupply() (*uint256.Int, error)
	SetTotalSupply(amount *uint256.Int) error
	Snapshot() int
	RevertToSnapshot(id int)
}

// ModuleAccount derives the deterministic custody account for a module.
func ModuleAccount(module string) common.Address {
	digest := ethcrypto.Keccak256([]byte("module:" + strings.ToLower(strings.TrimSpace(module))))
	return common.BytesToAddress(digest[12:])
}

// IsModuleAccount reports whether addr is the custody account of any of the
// named modules.
func IsModuleAccount(addr common.Address, modules ...string) bool {
	for _, module := range modules {
		if addr == ModuleAccount(module) {
			return true
		}
	}
	return false
}

// Ledger moves the fungible value unit between accounts. Every mutating
// method either applies fully or leaves state untouched.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger binds a ledger to state. A nil emitter discards events.
func NewLedger(state ledgerState, emitter events.Emitter) *Ledger {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Ledger{state: state, emitter: emitter}
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr common.Address) (*uint256.Int, error) {
	return l.state.Balance(addr)
}

// Allowance returns the remaining amount spender may pull from owner.
func (l *Ledger) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return l.state.Allowance(owner, spender)
}

// Mint credits new supply to an account. Only used while bootstrapping.
func (l *Ledger) Mint(to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	return l.atomic(func() error {
		bal, err := l.state.Balance(to)
		if err != nil {
			return err
		}
		next, overflow := new(uint256.Int).AddOverflow(bal, amount)
		if overflow {
			return ErrBalanceOverflow
		}
		supply, err := l.state.TotalSupply()
		if err != nil {
			return err
		}
		nextSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
		if overflow {
			return ErrBalanceOverflow
		}
		if err := l.state.SetBalance(to, next); err != nil {
			return err
		}
		return l.state.SetTotalSupply(nextSupply)
	})
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *uint256.Int) error {
	return l.atomic(func() error {
		if amount == nil || amount.IsZero() {
			return nil
		}
		if err := l.move(from, to, amount); err != nil {
			return err
		}
		l.emitter.Emit(events.Transfer{From: from, To: to, Amount: amount.Clone()})
		return nil
	})
}

// Approve sets the amount spender may pull from owner.
func (l *Ledger) Approve(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil {
		amount = uint256.NewInt(0)
	}
	if err := l.state.SetAllowance(owner, spender, amount); err != nil {
		return err
	}
	l.emitter.Emit(events.Approval{Owner: owner, Spender: spender, Amount: amount.Clone()})
	return nil
}

// TransferFrom moves amount out of from on behalf of spender, consuming the
// allowance from granted to spender.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *uint256.Int) error {
	return l.atomic(func() error {
		if amount == nil || amount.IsZero() {
			return nil
		}
		allowance, err := l.state.Allowance(from, spender)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s allows %s, need %s", ErrInsufficientAllowance, crypto.FormatIdentity(from), allowance.Dec(), amount.Dec())
		}
		if err := l.state.SetAllowance(from, spender, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
		if err := l.move(from, to, amount); err != nil {
			return err
		}
		l.emitter.Emit(events.Transfer{From: from, To: to, Amount: amount.Clone()})
		return nil
	})
}

func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	if from == (common.Address{}) || to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.IsZero() || from == to {
		return nil
	}
	fromBal, err := l.state.Balance(from)
	if err != nil {
		return err
	}
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, need %s", ErrInsufficientBalance, crypto.FormatIdentity(from), fromBal.Dec(), amount.Dec())
	}
	toBal, err := l.state.Balance(to)
	if err != nil {
		return err
	}
	nextTo, overflow := new(uint256.Int).AddOverflow(toBal, amount)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := l.state.SetBalance(from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return l.state.SetBalance(to, nextTo)
}

func (l *Ledger) atomic(fn func() error) error {
	snap := l.state.Snapshot()
	if err := fn(); err != nil {
		l.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Mover is the custody-side view of the ledger for one module account.
type Mover struct {
	ledger  *Ledger
	account common.Address
}

// Mover returns a token mover acting for the given custody account.
func (l *Ledger) Mover(account common.Address) *Mover {
	return &Mover{ledger: l, account: account}
}

// Account returns the custody account the mover acts for.
func (m *Mover) Account() common.Address { return m.account }

// TransferFrom pulls amount from an owner who approved the custody account.
func (m *Mover) TransferFrom(from, to common.Address, amount *uint256.Int) error {
	return m.ledger.TransferFrom(m.account, from, to, amount)
}

// Transfer pays amount out of the custody account.
func (m *Mover) Transfer(to common.Address, amount *uint256.Int) error {
	return m.ledger.Transfer(m.account, to, amount)
}
