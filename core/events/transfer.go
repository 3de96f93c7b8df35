package events

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"gigchain/core/types"
)

const (
	// TypeTransfer is emitted for every token balance movement.
	TypeTransfer = "bank.transfer"
	// TypeApproval is emitted when an owner sets a spender allowance.
	TypeApproval = "bank.approval"
)

type Transfer struct {
	From   common.Address
	To     common.Address
	Amount *uint256.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"from":   formatIdentity(e.From),
		"to":     formatIdentity(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

type Approval struct {
	Owner   common.Address
	Spender common.Address
	Amount  *uint256.Int
}

func (Approval) EventType() string { return TypeApproval }

func (e Approval) Event() *types.Event {
	return &types.Event{Type: TypeApproval, Attributes: map[string]string{
		"owner":   formatIdentity(e.Owner),
		"spender": formatIdentity(e.Spender),
		"amount":  formatAmount(e.Amount),
	}}
}
