package state

import (
	"github.com/ethereum/go-ethereum/common"
)

var identityPrefix = []byte("identity:")

func identityKey(addr common.Address) []byte {
	buf := make([]byte, len(identityPrefix)+common.AddressLength)
	copy(buf, identityPrefix)
	copy(buf[len(identityPrefix):], addr[:])
	return buf
}

type storedIdentity struct {
	Kind         uint8
	RegisteredAt uint64
}

// IdentityGet returns the registered kind and registration time for addr.
func (m *Manager) IdentityGet(addr common.Address) (uint8, int64, bool, error) {
	var stored storedIdentity
	ok, err := m.KVGet(identityKey(addr), &stored)
	if err != nil || !ok {
		return 0, 0, false, err
	}
	return stored.Kind, int64(stored.RegisteredAt), true, nil
}

// IdentityPut records the identity kind for addr.
func (m *Manager) IdentityPut(addr common.Address, kind uint8, registeredAt int64) error {
	if registeredAt < 0 {
		registeredAt = 0
	}
	return m.KVPut(identityKey(addr), &storedIdentity{Kind: kind, RegisteredAt: uint64(registeredAt)})
}
