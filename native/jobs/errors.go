package jobs

import (
	"errors"
	"fmt"

	nativecommon "gigchain/native/common"
)

var (
	errNilState  = errors.New("jobs engine: state not configured")
	errNoMover   = errors.New("jobs engine: token mover not configured")
	errUnderflow = errors.New("jobs engine: custody total underflow")

	ErrNotClientIdentity = fmt.Errorf("%w: caller is not a registered client", nativecommon.ErrUnauthorized)
	ErrNotFreelancer     = fmt.Errorf("%w: caller is not a registered freelancer", nativecommon.ErrUnauthorized)
	ErrNotJobClient      = fmt.Errorf("%w: caller is not the job client", nativecommon.ErrUnauthorized)
	ErrNotJobParty       = fmt.Errorf("%w: caller is neither the client nor the hired freelancer", nativecommon.ErrUnauthorized)
	ErrNotManager        = fmt.Errorf("%w: caller lacks the job-manager role", nativecommon.ErrUnauthorized)

	ErrJobNotFound            = fmt.Errorf("%w: job not found", nativecommon.ErrNotFound)
	ErrJobNotOpen             = fmt.Errorf("%w: job is not accepting proposals", nativecommon.ErrInvalidState)
	ErrJobNotActive           = fmt.Errorf("%w: job is not active", nativecommon.ErrInvalidState)
	ErrJobNotDisputed         = fmt.Errorf("%w: job is not disputed", nativecommon.ErrInvalidState)
	ErrFreelancerAlreadyHired = fmt.Errorf("%w: freelancer already hired", nativecommon.ErrInvalidState)
	ErrNoFreelancerHired      = fmt.Errorf("%w: no freelancer hired", nativecommon.ErrInvalidState)
	ErrNoProposal             = fmt.Errorf("%w: freelancer has not submitted a proposal", nativecommon.ErrInvalidState)
	ErrActiveCountUnderflow   = fmt.Errorf("%w: active job count underflow", nativecommon.ErrInvalidState)
	ErrAlreadyProposed        = fmt.Errorf("%w: proposal already submitted", nativecommon.ErrAlreadyExists)

	ErrDeadlinePassed    = fmt.Errorf("%w: job deadline has passed", nativecommon.ErrDeadline)
	ErrDeadlineNotFuture = fmt.Errorf("%w: deadline must be in the future", nativecommon.ErrDeadline)
	ErrDeadlineTooFar    = fmt.Errorf("%w: deadline exceeds maximum duration", nativecommon.ErrDeadline)
	ErrDeadlineNotLater  = fmt.Errorf("%w: new deadline must be later than the current one", nativecommon.ErrDeadline)

	ErrBudgetTooLow      = fmt.Errorf("%w: budget below minimum", nativecommon.ErrInvalidValue)
	ErrZeroAmount        = fmt.Errorf("%w: amount must be positive", nativecommon.ErrInvalidValue)
	ErrBudgetOverflow    = fmt.Errorf("%w: budget overflow", nativecommon.ErrInvalidValue)
	ErrInvalidWinner     = fmt.Errorf("%w: winner must be the client or the hired freelancer", nativecommon.ErrInvalidValue)
	ErrInvalidFreelancer = fmt.Errorf("%w: target is not a registered freelancer", nativecommon.ErrInvalidValue)
	ErrInvalidRef        = fmt.Errorf("%w: ipfs reference required", nativecommon.ErrInvalidValue)
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
