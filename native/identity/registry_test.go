package identity_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"gigchain/core/events"
	"gigchain/core/state"
	"gigchain/native/identity"
	"gigchain/storage"
)

func TestRegisterOnce(t *testing.T) {
	buf := &events.Buffer{}
	reg := identity.NewRegistry(state.NewManager(storage.NewMemDB()), buf)
	client, freelancer, stranger := common.Address{0x01}, common.Address{0x02}, common.Address{0x03}

	require.NoError(t, reg.Register(client, identity.KindClient))
	require.NoError(t, reg.Register(freelancer, identity.KindFreelancer))
	require.ErrorIs(t, reg.Register(client, identity.KindFreelancer), identity.ErrAlreadyRegistered)

	require.True(t, reg.IsRegistered(client))
	require.False(t, reg.IsFreelancer(client))
	require.True(t, reg.IsFreelancer(freelancer))
	require.False(t, reg.IsRegistered(stranger))
	require.Equal(t, identity.KindClient, reg.KindOf(client))
	require.Equal(t, 2, buf.Len())
}

func TestParseKind(t *testing.T) {
	kind, err := identity.ParseKind(" Freelancer ")
	require.NoError(t, err)
	require.Equal(t, identity.KindFreelancer, kind)

	_, err = identity.ParseKind("arbiter")
	require.Error(t, err)
}
