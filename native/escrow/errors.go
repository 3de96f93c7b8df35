package escrow

import (
	"errors"
	"fmt"

	nativecommon "gigchain/native/common"
)

var (
	errNilState  = errors.New("escrow engine: state not configured")
	errNoMover   = errors.New("escrow engine: token mover not configured")
	errUnderflow = errors.New("escrow engine: custody total underflow")

	ErrNotManager = fmt.Errorf("%w: caller lacks the escrow-manager role", nativecommon.ErrUnauthorized)
	ErrNotClient  = fmt.Errorf("%w: caller is not the escrow client", nativecommon.ErrUnauthorized)

	ErrEscrowNotFound = fmt.Errorf("%w: escrow not found", nativecommon.ErrNotFound)
	ErrEscrowExists   = fmt.Errorf("%w: escrow already exists for job", nativecommon.ErrAlreadyExists)
	ErrNotActive      = fmt.Errorf("%w: escrow is not active", nativecommon.ErrInvalidState)
	ErrNotDisputed    = fmt.Errorf("%w: escrow is not disputed", nativecommon.ErrInvalidState)
	ErrNotOpen        = fmt.Errorf("%w: escrow is already settled", nativecommon.ErrInvalidState)

	ErrZeroAmount      = fmt.Errorf("%w: amount must be positive", nativecommon.ErrInvalidValue)
	ErrInvalidParties  = fmt.Errorf("%w: client and freelancer must be distinct non-zero identities", nativecommon.ErrInvalidValue)
	ErrInvalidWinner   = fmt.Errorf("%w: winner must be the client or the freelancer", nativecommon.ErrInvalidValue)
	ErrBalanceOverflow = fmt.Errorf("%w: balance overflow", nativecommon.ErrInvalidValue)
)

func custodyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, nativecommon.ErrCustody) {
		return err
	}
	return fmt.Errorf("%w: %w", nativecommon.ErrCustody, err)
}
