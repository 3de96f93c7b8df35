package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"gigchain/core/genesis"
	"gigchain/core/state"
	"gigchain/native/access"
	"gigchain/native/bank"
	"gigchain/storage"
)

const validSpec = `
genesisTime: "2026-01-01T00:00:00Z"
roles:
  admin: ["0x00000000000000000000000000000000000000ad"]
  job-manager: ["0x000000000000000000000000000000000000003a"]
identities:
  - address: "0x00000000000000000000000000000000000000c1"
    kind: client
  - address: "0x00000000000000000000000000000000000000f1"
    kind: freelancer
balances:
  "0x00000000000000000000000000000000000000c1": "5000"
allowances:
  - owner: "0x00000000000000000000000000000000000000c1"
    spender: "module:jobs"
    amount: "2500"
paused: ["escrow"]
`

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	client = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

func TestParseSpecValid(t *testing.T) {
	spec, err := genesis.ParseSpec([]byte(validSpec))
	require.NoError(t, err)
	require.Equal(t, int64(1767225600), spec.GenesisTimestamp().Unix())
	require.Len(t, spec.Identities, 2)
}

func TestParseSpecRejects(t *testing.T) {
	cases := map[string]string{
		"missing time":  "roles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\n",
		"no admin":      "genesisTime: \"2026-01-01T00:00:00Z\"\n",
		"unknown role":  "genesisTime: \"2026-01-01T00:00:00Z\"\nroles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\n  root: [\"0x00000000000000000000000000000000000000ad\"]\n",
		"bad kind":      "genesisTime: \"2026-01-01T00:00:00Z\"\nroles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\nidentities:\n  - address: \"0x00000000000000000000000000000000000000c1\"\n    kind: robot\n",
		"bad amount":    "genesisTime: \"2026-01-01T00:00:00Z\"\nroles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\nbalances:\n  \"0x00000000000000000000000000000000000000c1\": \"-5\"\n",
		"unknown field": "genesisTime: \"2026-01-01T00:00:00Z\"\nvalidators: []\n",
		"bad module":    "genesisTime: \"2026-01-01T00:00:00Z\"\nroles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\npaused: [\"lending\"]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := genesis.ParseSpec([]byte(doc))
			require.Error(t, err)
		})
	}
}

func TestLoadSpecFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validSpec), 0o600))
	spec, err := genesis.LoadSpec(path)
	require.NoError(t, err)
	require.Equal(t, []string{"escrow"}, spec.Paused)

	_, err = genesis.LoadSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestApplySeedsState(t *testing.T) {
	spec, err := genesis.ParseSpec([]byte(validSpec))
	require.NoError(t, err)
	manager := state.NewManager(storage.NewMemDB())

	require.NoError(t, genesis.Apply(spec, manager, nil))
	require.NoError(t, manager.Commit())

	require.True(t, manager.HasRole(access.RoleAdmin, admin))
	require.True(t, manager.IsPaused(access.ModuleEscrow))
	require.False(t, manager.IsPaused(access.ModuleJobs))

	bal, err := manager.Balance(client)
	require.NoError(t, err)
	require.Equal(t, uint64(5000), bal.Uint64())
	allowance, err := manager.Allowance(client, bank.ModuleAccount("jobs"))
	require.NoError(t, err)
	require.Equal(t, uint64(2500), allowance.Uint64())

	kind, registeredAt, ok, err := manager.IdentityGet(client)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint8(1), kind)
	require.Equal(t, int64(1767225600), registeredAt)

	applied, err := genesis.Applied(manager)
	require.NoError(t, err)
	require.True(t, applied)
	require.Error(t, genesis.Apply(spec, manager, nil))
}

func TestResolveAccount(t *testing.T) {
	addr, err := genesis.ResolveAccount("module:escrow")
	require.NoError(t, err)
	require.Equal(t, bank.ModuleAccount("escrow"), addr)

	addr, err = genesis.ResolveAccount("0x00000000000000000000000000000000000000c1")
	require.NoError(t, err)
	require.Equal(t, client, addr)

	_, err = genesis.ResolveAccount("module:unknown")
	require.Error(t, err)
}

func TestParseSpecRejectsCustodyBalances(t *testing.T) {
	head := "genesisTime: \"2026-01-01T00:00:00Z\"\nroles:\n  admin: [\"0x00000000000000000000000000000000000000ad\"]\nbalances:\n"
	for _, account := range []string{
		"module:jobs",
		bank.ModuleAccount("jobs").Hex(),
		bank.ModuleAccount("escrow").Hex(),
	} {
		t.Run(account, func(t *testing.T) {
			_, err := genesis.ParseSpec([]byte(head + "  \"" + account + "\": \"5\"\n"))
			require.ErrorIs(t, err, bank.ErrCustodyAccount)
		})
	}
}
