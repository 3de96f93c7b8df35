package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"gigchain/native/escrow"
	"gigchain/native/jobs"
	"gigchain/storage"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestSnapshotRevertRestoresBufferedWrites(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.SetBalance(alice, uint256.NewInt(10)))

	snap := m.Snapshot()
	require.NoError(t, m.SetBalance(alice, uint256.NewInt(3)))
	require.NoError(t, m.SetBalance(bob, uint256.NewInt(7)))
	m.RevertToSnapshot(snap)

	bal, err := m.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(10), bal.Uint64())
	bal, err = m.Balance(bob)
	require.NoError(t, err)
	require.True(t, bal.IsZero())
}

func TestCommitPersistsAndDiscardDrops(t *testing.T) {
	db := storage.NewMemDB()
	m := NewManager(db)
	require.NoError(t, m.SetBalance(alice, uint256.NewInt(42)))
	require.NoError(t, m.Commit())
	require.Zero(t, m.Pending())

	require.NoError(t, m.SetBalance(alice, uint256.NewInt(1)))
	m.Discard()

	reopened := NewManager(db)
	bal, err := reopened.Balance(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(42), bal.Uint64())
}

func TestKVHelpers(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	key := []byte("test/list")

	require.NoError(t, m.KVAppend(key, []byte{0x01}))
	require.NoError(t, m.KVAppend(key, []byte{0x01}))
	require.NoError(t, m.KVAppend(key, []byte{0x02}))
	var list [][]byte
	require.NoError(t, m.KVGetList(key, &list))
	require.Equal(t, [][]byte{{0x01}, {0x02}}, list)

	require.NoError(t, m.KVDelete(key))
	ok, err := m.KVGet(key, nil)
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, m.KVPut(nil, uint64(1)))
	require.Error(t, m.KVGetList(key, list))
}

func TestRolesAndPauses(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	require.NoError(t, m.SetRole("admin", bob))
	require.NoError(t, m.SetRole("admin", alice))
	require.NoError(t, m.SetRole("admin", alice))

	members, err := m.RoleMembers("admin")
	require.NoError(t, err)
	require.Equal(t, []common.Address{alice, bob}, members)
	require.True(t, m.HasRole("admin", alice))

	require.NoError(t, m.RemoveRole("admin", alice))
	require.False(t, m.HasRole("admin", alice))
	require.Error(t, m.SetRole("admin", common.Address{}))

	require.False(t, m.IsPaused("jobs"))
	require.NoError(t, m.SetPaused("jobs", true))
	require.True(t, m.IsPaused("jobs"))
	require.NoError(t, m.SetPaused("jobs", false))
	require.False(t, m.IsPaused("jobs"))
}

func TestJobRecordsRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	job := &jobs.Job{
		ID:         3,
		Client:     alice,
		IPFSRef:    "ipfs://brief",
		Budget:     uint256.NewInt(500),
		Deadline:   1_800_000_900,
		Freelancer: bob,
		Status:     jobs.JobInProgress,
		CreatedAt:  1_800_000_000,
	}
	require.NoError(t, m.JobPut(job))

	got, ok, err := m.JobGet(3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, job.Budget.Uint64(), got.Budget.Uint64())
	require.Equal(t, job.Deadline, got.Deadline)
	require.Equal(t, bob, got.Freelancer)
	require.Equal(t, jobs.JobInProgress, got.Status)

	_, ok, err = m.JobGet(4)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.JobAddProposal(3, bob))
	require.NoError(t, m.JobAddProposal(3, alice))
	proposed, err := m.JobHasProposal(3, bob)
	require.NoError(t, err)
	require.True(t, proposed)
	proposers, err := m.JobProposers(3)
	require.NoError(t, err)
	require.Len(t, proposers, 2)
}

func TestEscrowRecordsRoundTrip(t *testing.T) {
	m := NewManager(storage.NewMemDB())
	esc := &escrow.Escrow{
		JobID:      9,
		Client:     alice,
		Freelancer: bob,
		Balance:    uint256.NewInt(250),
		Status:     escrow.EscrowActive,
		CreatedAt:  1_800_000_000,
		UpdatedAt:  1_800_000_000,
	}
	require.NoError(t, m.EscrowPut(esc))

	got, ok, err := m.EscrowGet(9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(250), got.Balance.Uint64())
	require.Equal(t, escrow.EscrowActive, got.Status)
	require.False(t, got.Released)

	require.NoError(t, m.EscrowSetTotalCustody(uint256.NewInt(250)))
	total, err := m.EscrowTotalCustody()
	require.NoError(t, err)
	require.Equal(t, uint64(250), total.Uint64())
}
