package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	balancePrefix   = []byte("balance:")
	allowancePrefix = []byte("allowance:")
	totalSupplyKey  = []byte("supply:total")
)

func balanceKey(addr common.Address) []byte {
	buf := make([]byte, len(balancePrefix)+common.AddressLength)
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return buf
}

func allowanceKey(owner, spender common.Address) []byte {
	buf := make([]byte, len(allowancePrefix)+2*common.AddressLength)
	copy(buf, allowancePrefix)
	copy(buf[len(allowancePrefix):], owner[:])
	copy(buf[len(allowancePrefix)+common.AddressLength:], spender[:])
	return buf
}

func (m *Manager) loadAmount(key []byte) (*uint256.Int, error) {
	stored := new(big.Int)
	ok, err := m.KVGet(key, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	amount, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, fmt.Errorf("state: stored amount overflows 256 bits")
	}
	return amount, nil
}

func (m *Manager) storeAmount(key []byte, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount.ToBig())
}

// Balance retrieves the token balance held by addr.
func (m *Manager) Balance(addr common.Address) (*uint256.Int, error) {
	return m.loadAmount(balanceKey(addr))
}

// SetBalance overwrites the token balance held by addr.
func (m *Manager) SetBalance(addr common.Address, amount *uint256.Int) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("address must not be empty")
	}
	return m.storeAmount(balanceKey(addr), amount)
}

// Allowance returns how much spender may still pull from owner.
func (m *Manager) Allowance(owner, spender common.Address) (*uint256.Int, error) {
	return m.loadAmount(allowanceKey(owner, spender))
}

// SetAllowance overwrites the amount spender may pull from owner.
func (m *Manager) SetAllowance(owner, spender common.Address, amount *uint256.Int) error {
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("address must not be empty")
	}
	return m.storeAmount(allowanceKey(owner, spender), amount)
}

// TotalSupply returns the amount minted at bootstrap.
func (m *Manager) TotalSupply() (*uint256.Int, error) {
	return m.loadAmount(totalSupplyKey)
}

// SetTotalSupply records the minted supply.
func (m *Manager) SetTotalSupply(amount *uint256.Int) error {
	return m.storeAmount(totalSupplyKey, amount)
}
