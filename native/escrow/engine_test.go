package escrow_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/native/access"
	"gigchain/native/bank"
	nativecommon "gigchain/native/common"
	"gigchain/native/escrow"
	"gigchain/storage"
)

type vaultFixture struct {
	t          *testing.T
	state      *state.Manager
	ledger     *bank.Ledger
	roles      *access.Controller
	engine     *escrow.Engine
	buf        *events.Buffer
	admin      common.Address
	manager    common.Address
	client     common.Address
	freelancer common.Address
	custody    common.Address
}

func newVaultFixture(t *testing.T) *vaultFixture {
	t.Helper()
	f := &vaultFixture{
		t:          t,
		state:      state.NewManager(storage.NewMemDB()),
		buf:        &events.Buffer{},
		admin:      common.Address{0xAD},
		manager:    common.Address{0xE5},
		client:     common.Address{0xC1},
		freelancer: common.Address{0xF1},
		custody:    bank.ModuleAccount(escrow.ModuleName),
	}
	f.ledger = bank.NewLedger(f.state, f.buf)
	f.roles = access.NewController(f.state, f.buf)
	require.NoError(t, f.roles.Bootstrap(access.RoleAdmin, f.admin))
	require.NoError(t, f.roles.Bootstrap(access.RoleEscrowManager, f.manager))
	require.NoError(t, f.ledger.Mint(f.client, uint256.NewInt(5_000)))
	require.NoError(t, f.ledger.Approve(f.client, f.custody, uint256.NewInt(5_000)))

	f.engine = escrow.NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetTokenMover(f.ledger.Mover(f.custody), f.custody)
	f.engine.SetRoles(f.roles)
	f.engine.SetPauses(f.roles)
	f.engine.SetEmitter(f.buf)
	f.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	f.buf.Reset()
	return f
}

func (f *vaultFixture) open(jobID uint64, amount uint64) *escrow.Escrow {
	f.t.Helper()
	esc, err := f.engine.CreateEscrow(f.manager, jobID, f.client, f.freelancer, uint256.NewInt(amount))
	require.NoError(f.t, err)
	return esc
}

func (f *vaultFixture) balance(addr common.Address) uint64 {
	f.t.Helper()
	bal, err := f.ledger.BalanceOf(addr)
	require.NoError(f.t, err)
	return bal.Uint64()
}

func (f *vaultFixture) record(jobID uint64) *escrow.Escrow {
	f.t.Helper()
	esc, err := f.engine.Escrow(jobID)
	require.NoError(f.t, err)
	return esc
}

func (f *vaultFixture) totalCustody() uint64 {
	f.t.Helper()
	total, err := f.engine.TotalCustody()
	require.NoError(f.t, err)
	return total.Uint64()
}

func TestCreateEscrowPullsFunds(t *testing.T) {
	f := newVaultFixture(t)

	esc := f.open(7, 1_000)
	require.Equal(t, escrow.EscrowActive, esc.Status)
	require.Equal(t, uint64(1_000), esc.Balance.Uint64())
	require.False(t, esc.Released)
	require.Equal(t, uint64(4_000), f.balance(f.client))
	require.Equal(t, uint64(1_000), f.balance(f.custody))
	require.Equal(t, uint64(1_000), f.totalCustody())

	var kinds []string
	for _, evt := range f.buf.Drain() {
		kinds = append(kinds, evt.Type)
	}
	require.Contains(t, kinds, escrow.EventTypeEscrowCreated)
	require.Contains(t, kinds, escrow.EventTypeFundsDeposited)
}

func TestCreateEscrowRejections(t *testing.T) {
	f := newVaultFixture(t)
	f.open(1, 100)

	_, err := f.engine.CreateEscrow(f.client, 2, f.client, f.freelancer, uint256.NewInt(100))
	require.ErrorIs(t, err, escrow.ErrNotManager)

	_, err = f.engine.CreateEscrow(f.manager, 1, f.client, f.freelancer, uint256.NewInt(999))
	require.ErrorIs(t, err, escrow.ErrEscrowExists)
	require.ErrorIs(t, err, nativecommon.ErrAlreadyExists)

	_, err = f.engine.CreateEscrow(f.manager, 2, f.client, f.client, uint256.NewInt(100))
	require.ErrorIs(t, err, escrow.ErrInvalidParties)

	_, err = f.engine.CreateEscrow(f.manager, 2, f.client, f.freelancer, uint256.NewInt(0))
	require.ErrorIs(t, err, escrow.ErrZeroAmount)

	_, err = f.engine.CreateEscrow(f.manager, 2, f.client, f.freelancer, uint256.NewInt(10_000))
	require.ErrorIs(t, err, nativecommon.ErrCustody)
	_, err = f.engine.Escrow(2)
	require.ErrorIs(t, err, escrow.ErrEscrowNotFound)
	require.Equal(t, uint64(100), f.totalCustody())
}

func TestReleaseFundsPaysFreelancerOnce(t *testing.T) {
	f := newVaultFixture(t)
	f.open(3, 600)
	require.NoError(t, f.engine.AddFunds(f.client, 3, uint256.NewInt(400)))

	require.ErrorIs(t, f.engine.ReleaseFunds(f.freelancer, 3), escrow.ErrNotClient)
	require.NoError(t, f.engine.ReleaseFunds(f.client, 3))

	esc := f.record(3)
	require.Equal(t, escrow.EscrowReleased, esc.Status)
	require.True(t, esc.Released)
	require.True(t, esc.Balance.IsZero())
	require.Equal(t, uint64(1_000), f.balance(f.freelancer))
	require.Equal(t, uint64(0), f.balance(f.custody))
	require.Equal(t, uint64(0), f.totalCustody())

	require.ErrorIs(t, f.engine.ReleaseFunds(f.client, 3), escrow.ErrNotActive)
	require.ErrorIs(t, f.engine.AddFunds(f.client, 3, uint256.NewInt(1)), escrow.ErrNotOpen)
	require.ErrorIs(t, f.engine.RefundClient(f.manager, 3), escrow.ErrNotOpen)
	require.Equal(t, uint64(1_000), f.balance(f.freelancer))
}

func TestRefundClient(t *testing.T) {
	f := newVaultFixture(t)
	f.open(4, 700)

	require.ErrorIs(t, f.engine.RefundClient(f.client, 4), escrow.ErrNotManager)
	require.NoError(t, f.engine.RefundClient(f.manager, 4))

	esc := f.record(4)
	require.Equal(t, escrow.EscrowRefunded, esc.Status)
	require.False(t, esc.Released)
	require.Equal(t, uint64(5_000), f.balance(f.client))
	require.ErrorIs(t, f.engine.RefundClient(f.manager, 4), escrow.ErrNotOpen)
}

func TestDisputeFlow(t *testing.T) {
	f := newVaultFixture(t)
	f.open(5, 900)

	require.ErrorIs(t, f.engine.InitiateDispute(f.freelancer, 5), escrow.ErrNotClient)
	require.ErrorIs(t, f.engine.ResolveDispute(f.manager, 5, f.client), escrow.ErrNotDisputed)
	require.NoError(t, f.engine.InitiateDispute(f.client, 5))
	require.ErrorIs(t, f.engine.InitiateDispute(f.client, 5), escrow.ErrNotActive)
	require.ErrorIs(t, f.engine.ReleaseFunds(f.client, 5), escrow.ErrNotActive)

	require.NoError(t, f.engine.AddFunds(f.client, 5, uint256.NewInt(100)))
	balance, err := f.engine.Balance(5)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), balance.Uint64())

	require.ErrorIs(t, f.engine.ResolveDispute(f.client, 5, f.client), escrow.ErrNotManager)
	require.ErrorIs(t, f.engine.ResolveDispute(f.manager, 5, f.manager), escrow.ErrInvalidWinner)
	require.NoError(t, f.engine.ResolveDispute(f.manager, 5, f.client))

	esc := f.record(5)
	require.Equal(t, escrow.EscrowReleased, esc.Status)
	require.True(t, esc.Released)
	require.True(t, esc.Balance.IsZero())
	require.Equal(t, uint64(5_000), f.balance(f.client))
	require.Equal(t, uint64(0), f.balance(f.freelancer))
}

func TestRefundWhileDisputed(t *testing.T) {
	f := newVaultFixture(t)
	f.open(6, 300)
	require.NoError(t, f.engine.InitiateDispute(f.client, 6))
	require.NoError(t, f.engine.RefundClient(f.manager, 6))
	require.Equal(t, escrow.EscrowRefunded, f.record(6).Status)
}

type vaultView struct {
	record   *escrow.Escrow
	custody  uint64
	balances [3]uint64
	events   []string
}

func (f *vaultFixture) view(jobID uint64) vaultView {
	f.t.Helper()
	v := vaultView{
		custody:  f.totalCustody(),
		balances: [3]uint64{f.balance(f.client), f.balance(f.freelancer), f.balance(f.custody)},
	}
	if esc, err := f.engine.Escrow(jobID); err == nil {
		v.record = esc
	}
	for _, evt := range f.buf.Drain() {
		v.events = append(v.events, evt.Type)
	}
	return v
}

func TestPausedVaultRejectsEveryMutation(t *testing.T) {
	const jobID = 8
	cases := map[string]struct {
		setup func(f *vaultFixture)
		run   func(f *vaultFixture) error
	}{
		"create": {
			setup: func(*vaultFixture) {},
			run: func(f *vaultFixture) error {
				_, err := f.engine.CreateEscrow(f.manager, jobID, f.client, f.freelancer, uint256.NewInt(500))
				return err
			},
		},
		"add funds": {
			setup: func(f *vaultFixture) { f.open(jobID, 500) },
			run:   func(f *vaultFixture) error { return f.engine.AddFunds(f.client, jobID, uint256.NewInt(250)) },
		},
		"release": {
			setup: func(f *vaultFixture) { f.open(jobID, 500) },
			run:   func(f *vaultFixture) error { return f.engine.ReleaseFunds(f.client, jobID) },
		},
		"refund": {
			setup: func(f *vaultFixture) { f.open(jobID, 500) },
			run:   func(f *vaultFixture) error { return f.engine.RefundClient(f.manager, jobID) },
		},
		"dispute": {
			setup: func(f *vaultFixture) { f.open(jobID, 500) },
			run:   func(f *vaultFixture) error { return f.engine.InitiateDispute(f.client, jobID) },
		},
		"resolve": {
			setup: func(f *vaultFixture) {
				f.open(jobID, 500)
				require.NoError(f.t, f.engine.InitiateDispute(f.client, jobID))
			},
			run: func(f *vaultFixture) error { return f.engine.ResolveDispute(f.manager, jobID, f.freelancer) },
		},
	}
	for name, tc := range cases {
		for _, scope := range []string{access.ModuleEscrow, nativecommon.GlobalModule} {
			t.Run(name+"/"+scope, func(t *testing.T) {
				ref := newVaultFixture(t)
				tc.setup(ref)
				ref.buf.Reset()
				require.NoError(t, tc.run(ref))
				want := ref.view(jobID)

				f := newVaultFixture(t)
				tc.setup(f)
				require.NoError(t, f.roles.Pause(f.admin, scope))
				f.buf.Reset()
				before := f.view(jobID)

				require.ErrorIs(t, tc.run(f), nativecommon.ErrModulePaused)
				require.Equal(t, before, f.view(jobID))

				require.NoError(t, f.roles.Unpause(f.admin, scope))
				f.buf.Reset()
				require.NoError(t, tc.run(f))
				require.Equal(t, want, f.view(jobID))
			})
		}
	}
}

type callbackMover struct {
	escrow.TokenMover
	onTransfer func()
}

func (m *callbackMover) Transfer(to common.Address, amount *uint256.Int) error {
	if m.onTransfer != nil {
		m.onTransfer()
	}
	return m.TokenMover.Transfer(to, amount)
}

func TestReentrantReleaseIsRejected(t *testing.T) {
	f := newVaultFixture(t)
	f.open(10, 400)

	var nested error
	var seen *escrow.Escrow
	mover := &callbackMover{TokenMover: f.ledger.Mover(f.custody)}
	mover.onTransfer = func() {
		seen, _ = f.engine.Escrow(10)
		nested = f.engine.ReleaseFunds(f.client, 10)
	}
	f.engine.SetTokenMover(mover, f.custody)

	require.NoError(t, f.engine.ReleaseFunds(f.client, 10))
	require.ErrorIs(t, nested, nativecommon.ErrReentrantCall)
	require.Equal(t, escrow.EscrowReleased, seen.Status)
	require.True(t, seen.Balance.IsZero())
	require.Equal(t, uint64(400), f.balance(f.freelancer))
}

type rejectingMover struct{ escrow.TokenMover }

func (rejectingMover) Transfer(common.Address, *uint256.Int) error {
	return errors.New("recipient rejected transfer")
}

func TestFailedPayoutKeepsEscrowActive(t *testing.T) {
	f := newVaultFixture(t)
	f.open(11, 250)
	f.engine.SetTokenMover(rejectingMover{f.ledger.Mover(f.custody)}, f.custody)

	err := f.engine.ReleaseFunds(f.client, 11)
	require.ErrorIs(t, err, nativecommon.ErrCustody)

	esc := f.record(11)
	require.Equal(t, escrow.EscrowActive, esc.Status)
	require.False(t, esc.Released)
	require.Equal(t, uint64(250), esc.Balance.Uint64())
	require.Equal(t, uint64(250), f.totalCustody())
}

func TestSanitizeEscrowRejectsInconsistentRecords(t *testing.T) {
	_, err := escrow.SanitizeEscrow(&escrow.Escrow{Status: escrow.EscrowReleased, Balance: uint256.NewInt(1), Released: true})
	require.Error(t, err)
	_, err = escrow.SanitizeEscrow(&escrow.Escrow{Status: escrow.EscrowActive, Balance: uint256.NewInt(1), Released: true})
	require.Error(t, err)
	_, err = escrow.SanitizeEscrow(&escrow.Escrow{Status: escrow.EscrowStatus(9)})
	require.Error(t, err)
	clean, err := escrow.SanitizeEscrow(&escrow.Escrow{Status: escrow.EscrowActive})
	require.NoError(t, err)
	require.NotNil(t, clean.Balance)
}
