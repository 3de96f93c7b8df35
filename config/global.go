package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"gigchain/native/jobs"
)

// Params parses the job ledger bounds into runtime values.
func (j Jobs) Params() (jobs.Params, error) {
	minBudget, err := uint256.FromDecimal(strings.TrimSpace(j.MinBudget))
	if err != nil {
		return jobs.Params{}, fmt.Errorf("invalid jobs.MinBudget %q: %w", j.MinBudget, err)
	}
	params := jobs.Params{MinBudget: minBudget, MaxDuration: j.MaxDurationSeconds}
	if err := params.Validate(); err != nil {
		return jobs.Params{}, err
	}
	return params, nil
}
