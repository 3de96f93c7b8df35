package bank_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/native/bank"
	nativecommon "gigchain/native/common"
	"gigchain/storage"
)

func newLedger(t *testing.T) (*bank.Ledger, *state.Manager, *events.Buffer) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	buf := &events.Buffer{}
	return bank.NewLedger(manager, buf), manager, buf
}

func balanceOf(t *testing.T, l *bank.Ledger, addr common.Address) uint64 {
	t.Helper()
	bal, err := l.BalanceOf(addr)
	require.NoError(t, err)
	return bal.Uint64()
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, _, buf := newLedger(t)
	alice, bob := common.Address{0xA1}, common.Address{0xB0}
	require.NoError(t, ledger.Mint(alice, uint256.NewInt(100)))

	require.NoError(t, ledger.Transfer(alice, bob, uint256.NewInt(40)))
	require.Equal(t, uint64(60), balanceOf(t, ledger, alice))
	require.Equal(t, uint64(40), balanceOf(t, ledger, bob))
	require.Equal(t, 1, buf.Len())

	err := ledger.Transfer(alice, bob, uint256.NewInt(61))
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)
	require.True(t, errors.Is(err, nativecommon.ErrCustody))
	require.Equal(t, uint64(60), balanceOf(t, ledger, alice))
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _, _ := newLedger(t)
	owner := common.Address{0x01}
	custody := bank.ModuleAccount("jobs")
	require.NoError(t, ledger.Mint(owner, uint256.NewInt(500)))

	mover := ledger.Mover(custody)
	err := mover.TransferFrom(owner, custody, uint256.NewInt(10))
	require.ErrorIs(t, err, bank.ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(owner, custody, uint256.NewInt(300)))
	require.NoError(t, mover.TransferFrom(owner, custody, uint256.NewInt(200)))

	remaining, err := ledger.Allowance(owner, custody)
	require.NoError(t, err)
	require.Equal(t, uint64(100), remaining.Uint64())
	require.Equal(t, uint64(200), balanceOf(t, ledger, custody))

	require.NoError(t, mover.Transfer(owner, uint256.NewInt(50)))
	require.Equal(t, uint64(350), balanceOf(t, ledger, owner))
}

func TestFailedTransferFromLeavesAllowanceIntact(t *testing.T) {
	ledger, _, _ := newLedger(t)
	owner := common.Address{0x02}
	spender := common.Address{0x03}
	require.NoError(t, ledger.Mint(owner, uint256.NewInt(5)))
	require.NoError(t, ledger.Approve(owner, spender, uint256.NewInt(50)))

	err := ledger.TransferFrom(spender, owner, spender, uint256.NewInt(20))
	require.ErrorIs(t, err, bank.ErrInsufficientBalance)

	allowance, err := ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, uint64(50), allowance.Uint64())
}

func TestModuleAccountsAreDistinct(t *testing.T) {
	require.NotEqual(t, bank.ModuleAccount("jobs"), bank.ModuleAccount("escrow"))
	require.Equal(t, bank.ModuleAccount("Jobs"), bank.ModuleAccount("jobs"))
}

func TestIsModuleAccount(t *testing.T) {
	require.True(t, bank.IsModuleAccount(bank.ModuleAccount("escrow"), "jobs", "escrow"))
	require.False(t, bank.IsModuleAccount(bank.ModuleAccount("escrow"), "jobs"))
	require.False(t, bank.IsModuleAccount(common.HexToAddress("0xc1"), "jobs", "escrow"))
}
