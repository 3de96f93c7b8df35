package observability

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	nativecommon "gigchain/native/common"
)

func TestOutcomeClassifiesWrappedErrors(t *testing.T) {
	require.Equal(t, "success", Outcome(nil))
	require.Equal(t, "unauthorized", Outcome(fmt.Errorf("%w: not the client", nativecommon.ErrUnauthorized)))
	require.Equal(t, "custody", Outcome(fmt.Errorf("%w: %w", nativecommon.ErrCustody, errors.New("boom"))))
	require.Equal(t, "paused", Outcome(nativecommon.ErrModulePaused))
	require.Equal(t, "internal", Outcome(errors.New("disk full")))
}

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	before := testutil.ToFloat64(m.operations.WithLabelValues("jobs", "create", "deadline"))
	m.Observe("jobs", "create", nativecommon.ErrDeadline, 5*time.Millisecond)
	after := testutil.ToFloat64(m.operations.WithLabelValues("jobs", "create", "deadline"))
	require.Equal(t, before+1, after)

	m.SetCustody("escrow", uint256.NewInt(1250))
	require.Equal(t, float64(1250), testutil.ToFloat64(m.custody.WithLabelValues("escrow")))
}
