package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"gigchain/core/events"
	"gigchain/core/genesis"
	"gigchain/core/state"
	"gigchain/core/types"
	"gigchain/crypto"
	"gigchain/native/access"
	"gigchain/native/bank"
	"gigchain/native/escrow"
	"gigchain/native/identity"
	"gigchain/native/jobs"
	"gigchain/native/reputation"
	"gigchain/observability"
	"gigchain/storage"
)

// Module labels used for metrics, spans and stream updates of operations that
// do not belong to a custody engine.
const (
	ModuleBank     = "bank"
	ModuleIdentity = "identity"
	ModuleAccess   = "access"
)

// streamSequenceKey holds the sequence of the last published event so the
// stream continues where it stopped after a restart.
var streamSequenceKey = []byte("stream/sequence")

// ErrNotBootstrapped is returned when the database holds no state and no
// genesis spec was supplied.
var ErrNotBootstrapped = errors.New("node: state not bootstrapped and no genesis spec supplied")

// EventSink receives every committed event after it has been sequenced.
type EventSink interface {
	Record(ctx context.Context, update EventUpdate) error
}

// Options tune node construction. Zero values fall back to defaults.
type Options struct {
	Genesis   *genesis.Spec
	JobParams *jobs.Params
	Logger    *slog.Logger
	Tracer    trace.Tracer
	NowFunc   func() int64
}

// Node is the central controller. It owns the state manager and executes one
// state-changing operation at a time: the operation runs against buffered
// state, the buffer is committed as one batch, and only then are the events
// it raised published.
type Node struct {
	db      storage.Database
	state   *state.Manager
	stateMu sync.Mutex

	buffer     *events.Buffer
	ledger     *bank.Ledger
	roles      *access.Controller
	registry   *identity.Registry
	reputation *reputation.Engine
	jobs       *jobs.Engine
	escrow     *escrow.Engine

	stream  *EventStream
	sinksMu sync.RWMutex
	sinks   []EventSink

	logger *slog.Logger
	tracer trace.Tracer
	nowFn  func() int64
}

// NewNode wires every component on top of db. When the database has not been
// bootstrapped yet the genesis spec from opts is applied and committed.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database must not be nil")
	}
	n := &Node{
		db:     db,
		state:  state.NewManager(db),
		buffer: &events.Buffer{},
		stream: NewEventStream(),
		logger: opts.Logger,
		tracer: opts.Tracer,
		nowFn:  opts.NowFunc,
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.tracer == nil {
		n.tracer = noop.NewTracerProvider().Tracer("gigchain")
	}
	if n.nowFn == nil {
		n.nowFn = func() int64 { return time.Now().Unix() }
	}

	applied, err := genesis.Applied(n.state)
	if err != nil {
		return nil, fmt.Errorf("node: read genesis marker: %w", err)
	}
	if !applied {
		if opts.Genesis == nil {
			return nil, ErrNotBootstrapped
		}
		if err := genesis.Apply(opts.Genesis, n.state, nil); err != nil {
			n.state.Discard()
			return nil, fmt.Errorf("node: apply genesis: %w", err)
		}
		if err := n.state.Commit(); err != nil {
			return nil, fmt.Errorf("node: commit genesis: %w", err)
		}
		n.logger.Info("genesis applied", slog.Time("genesis_time", opts.Genesis.GenesisTimestamp()))
	}

	n.ledger = bank.NewLedger(n.state, n.buffer)
	n.roles = access.NewController(n.state, n.buffer)
	n.registry = identity.NewRegistry(n.state, n.buffer)
	n.registry.SetNowFunc(n.nowFn)

	n.reputation = reputation.NewEngine(n.state)
	n.reputation.SetEmitter(n.buffer)
	n.reputation.SetNowFunc(n.nowFn)

	jobsCustody := bank.ModuleAccount(jobs.ModuleName)
	n.jobs = jobs.NewEngine()
	n.jobs.SetState(n.state)
	n.jobs.SetRegistry(n.registry)
	n.jobs.SetTokenMover(n.ledger.Mover(jobsCustody), jobsCustody)
	n.jobs.SetRoles(n.roles)
	n.jobs.SetPauses(n.roles)
	n.jobs.SetNotifier(n.reputation)
	n.jobs.SetEmitter(n.buffer)
	n.jobs.SetLogger(n.logger.With(slog.String("component", jobs.ModuleName)))
	n.jobs.SetNowFunc(n.nowFn)
	if opts.JobParams != nil {
		n.jobs.SetParams(*opts.JobParams)
	}

	escrowCustody := bank.ModuleAccount(escrow.ModuleName)
	n.escrow = escrow.NewEngine()
	n.escrow.SetState(n.state)
	n.escrow.SetTokenMover(n.ledger.Mover(escrowCustody), escrowCustody)
	n.escrow.SetRoles(n.roles)
	n.escrow.SetPauses(n.roles)
	n.escrow.SetEmitter(n.buffer)
	n.escrow.SetNowFunc(n.nowFn)

	var lastSeq uint64
	if _, err := n.state.KVGet(streamSequenceKey, &lastSeq); err != nil {
		return nil, fmt.Errorf("node: read stream sequence: %w", err)
	}
	n.stream.Resume(lastSeq)

	n.refreshCustodyGauges()
	return n, nil
}

// AddSink registers an additional consumer of committed events.
func (n *Node) AddSink(sink EventSink) {
	if sink == nil {
		return
	}
	n.sinksMu.Lock()
	n.sinks = append(n.sinks, sink)
	n.sinksMu.Unlock()
}

// Subscribe streams committed events after cursor. See EventStream.Subscribe.
func (n *Node) Subscribe(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate) {
	return n.stream.Subscribe(ctx, cursor)
}

// JobsCustodyAccount is the account clients approve before posting jobs.
func (n *Node) JobsCustodyAccount() common.Address { return n.jobs.CustodyAccount() }

// EscrowCustodyAccount is the account clients approve before funding escrows.
func (n *Node) EscrowCustodyAccount() common.Address { return n.escrow.CustodyAccount() }

func (n *Node) execute(ctx context.Context, module, operation string, caller common.Address, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := n.tracer.Start(ctx, module+"."+operation, trace.WithAttributes(
		attribute.String("gigchain.module", module),
		attribute.String("gigchain.operation", operation),
		attribute.String("gigchain.caller", crypto.FormatIdentity(caller)),
	))
	defer span.End()
	start := time.Now()

	n.stateMu.Lock()
	n.buffer.Reset()
	err := fn()
	if err == nil && n.buffer.Len() > 0 {
		err = n.advanceSequence(uint64(n.buffer.Len()))
	}
	if err == nil {
		if commitErr := n.state.Commit(); commitErr != nil {
			err = fmt.Errorf("node: commit %s.%s: %w", module, operation, commitErr)
		}
	}
	var published []EventUpdate
	if err != nil {
		n.state.Discard()
		n.buffer.Reset()
	} else {
		published = n.publish(ctx, module, operation, n.buffer.Drain())
	}
	n.stateMu.Unlock()

	observability.ModuleMetrics().Observe(module, operation, err, time.Since(start))
	attrs := []any{
		slog.String("module", module),
		slog.String("operation", operation),
		slog.String("caller", crypto.FormatIdentity(caller)),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, observability.Outcome(err))
		n.logger.Info("operation rejected", append(attrs, slog.String("reason", observability.Outcome(err)), slog.Any("error", err))...)
		return err
	}
	span.SetAttributes(attribute.Int("gigchain.events", len(published)))
	n.logger.Debug("operation committed", append(attrs, slog.Int("events", len(published)))...)
	n.refreshCustodyGauges()
	return nil
}

// advanceSequence reserves count stream positions in the pending state so
// they commit together with the operation.
func (n *Node) advanceSequence(count uint64) error {
	var seq uint64
	if _, err := n.state.KVGet(streamSequenceKey, &seq); err != nil {
		return fmt.Errorf("node: read stream sequence: %w", err)
	}
	return n.state.KVPut(streamSequenceKey, seq+count)
}

// publish sequences evts on the stream and forwards them to the sinks. It
// runs under stateMu so stream order equals commit order.
func (n *Node) publish(ctx context.Context, module, operation string, evts []*types.Event) []EventUpdate {
	if len(evts) == 0 {
		return nil
	}
	now := n.nowFn()
	out := make([]EventUpdate, 0, len(evts))
	n.sinksMu.RLock()
	sinks := append([]EventSink(nil), n.sinks...)
	n.sinksMu.RUnlock()
	for _, evt := range evts {
		update := n.stream.Publish(EventUpdate{
			Module:    module,
			Operation: operation,
			Timestamp: now,
			Event:     evt,
		})
		for _, sink := range sinks {
			if err := sink.Record(ctx, update); err != nil {
				n.logger.Warn("event sink failed",
					slog.String("module", module),
					slog.Uint64("sequence", update.Sequence),
					slog.Any("error", err))
			}
		}
		out = append(out, update)
	}
	return out
}

// read runs a view under stateMu. The state manager is not safe for
// concurrent use, so views wait for an in-flight operation to finish and
// never observe its pending writes.
func (n *Node) read(fn func() error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn()
}

func (n *Node) refreshCustodyGauges() {
	metrics := observability.ModuleMetrics()
	_ = n.read(func() error {
		if total, err := n.jobs.TotalCustody(); err == nil {
			metrics.SetCustody(jobs.ModuleName, total)
		}
		if total, err := n.escrow.TotalCustody(); err == nil {
			metrics.SetCustody(escrow.ModuleName, total)
		}
		return nil
	})
}

// --- identity, token and access operations ---

// RegisterIdentity records caller as a client or freelancer.
func (n *Node) RegisterIdentity(ctx context.Context, caller common.Address, kind identity.Kind) error {
	return n.execute(ctx, ModuleIdentity, "register", caller, func() error {
		return n.registry.Register(caller, kind)
	})
}

// Transfer moves tokens from caller to to. Module custody accounts only move
// value through their engines and are refused on either side.
func (n *Node) Transfer(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	return n.execute(ctx, ModuleBank, "transfer", caller, func() error {
		if to == (common.Address{}) {
			return bank.ErrZeroAddress
		}
		if n.isCustodyAccount(caller) || n.isCustodyAccount(to) {
			return bank.ErrCustodyAccount
		}
		return n.ledger.Transfer(caller, to, amount)
	})
}

func (n *Node) isCustodyAccount(addr common.Address) bool {
	return addr == n.JobsCustodyAccount() || addr == n.EscrowCustodyAccount()
}

// Approve sets the allowance caller grants spender.
func (n *Node) Approve(ctx context.Context, caller, spender common.Address, amount *uint256.Int) error {
	return n.execute(ctx, ModuleBank, "approve", caller, func() error {
		return n.ledger.Approve(caller, spender, amount)
	})
}

func (n *Node) GrantRole(ctx context.Context, caller common.Address, role string, account common.Address) error {
	return n.execute(ctx, ModuleAccess, "grant", caller, func() error {
		return n.roles.Grant(caller, role, account)
	})
}

func (n *Node) RevokeRole(ctx context.Context, caller common.Address, role string, account common.Address) error {
	return n.execute(ctx, ModuleAccess, "revoke", caller, func() error {
		return n.roles.Revoke(caller, role, account)
	})
}

func (n *Node) Pause(ctx context.Context, caller common.Address, module string) error {
	return n.execute(ctx, ModuleAccess, "pause", caller, func() error {
		return n.roles.Pause(caller, module)
	})
}

func (n *Node) Unpause(ctx context.Context, caller common.Address, module string) error {
	return n.execute(ctx, ModuleAccess, "unpause", caller, func() error {
		return n.roles.Unpause(caller, module)
	})
}

// --- job ledger operations ---

func (n *Node) CreateJob(ctx context.Context, caller common.Address, ipfsRef string, budget *uint256.Int, deadline int64) (*jobs.Job, error) {
	var job *jobs.Job
	err := n.execute(ctx, jobs.ModuleName, "create_job", caller, func() error {
		created, err := n.jobs.CreateJob(caller, ipfsRef, budget, deadline)
		job = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (n *Node) SubmitProposal(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, jobs.ModuleName, "submit_proposal", caller, func() error {
		return n.jobs.SubmitProposal(caller, jobID)
	})
}

func (n *Node) HireFreelancer(ctx context.Context, caller common.Address, jobID uint64, freelancer common.Address) error {
	return n.execute(ctx, jobs.ModuleName, "hire_freelancer", caller, func() error {
		return n.jobs.HireFreelancer(caller, jobID, freelancer)
	})
}

func (n *Node) CompleteJob(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, jobs.ModuleName, "complete_job", caller, func() error {
		return n.jobs.CompleteJob(caller, jobID)
	})
}

func (n *Node) CancelJob(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, jobs.ModuleName, "cancel_job", caller, func() error {
		return n.jobs.CancelJob(caller, jobID)
	})
}

func (n *Node) InitiateJobDispute(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, jobs.ModuleName, "initiate_dispute", caller, func() error {
		return n.jobs.InitiateDispute(caller, jobID)
	})
}

func (n *Node) ResolveJobDispute(ctx context.Context, caller common.Address, jobID uint64, winner common.Address) error {
	return n.execute(ctx, jobs.ModuleName, "resolve_dispute", caller, func() error {
		return n.jobs.ResolveDispute(caller, jobID, winner)
	})
}

func (n *Node) ExtendJobDeadline(ctx context.Context, caller common.Address, jobID uint64, deadline int64) error {
	return n.execute(ctx, jobs.ModuleName, "extend_deadline", caller, func() error {
		return n.jobs.ExtendJobDeadline(caller, jobID, deadline)
	})
}

func (n *Node) IncreaseJobBudget(ctx context.Context, caller common.Address, jobID uint64, extra *uint256.Int) error {
	return n.execute(ctx, jobs.ModuleName, "increase_budget", caller, func() error {
		return n.jobs.IncreaseBudget(caller, jobID, extra)
	})
}

// --- escrow vault operations ---

func (n *Node) CreateEscrow(ctx context.Context, caller common.Address, jobID uint64, client, freelancer common.Address, amount *uint256.Int) (*escrow.Escrow, error) {
	var esc *escrow.Escrow
	err := n.execute(ctx, escrow.ModuleName, "create_escrow", caller, func() error {
		created, err := n.escrow.CreateEscrow(caller, jobID, client, freelancer, amount)
		esc = created
		return err
	})
	if err != nil {
		return nil, err
	}
	return esc, nil
}

func (n *Node) AddEscrowFunds(ctx context.Context, caller common.Address, jobID uint64, amount *uint256.Int) error {
	return n.execute(ctx, escrow.ModuleName, "add_funds", caller, func() error {
		return n.escrow.AddFunds(caller, jobID, amount)
	})
}

func (n *Node) ReleaseEscrow(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, escrow.ModuleName, "release_funds", caller, func() error {
		return n.escrow.ReleaseFunds(caller, jobID)
	})
}

func (n *Node) RefundEscrow(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, escrow.ModuleName, "refund_client", caller, func() error {
		return n.escrow.RefundClient(caller, jobID)
	})
}

func (n *Node) InitiateEscrowDispute(ctx context.Context, caller common.Address, jobID uint64) error {
	return n.execute(ctx, escrow.ModuleName, "initiate_dispute", caller, func() error {
		return n.escrow.InitiateDispute(caller, jobID)
	})
}

func (n *Node) ResolveEscrowDispute(ctx context.Context, caller common.Address, jobID uint64, winner common.Address) error {
	return n.execute(ctx, escrow.ModuleName, "resolve_dispute", caller, func() error {
		return n.escrow.ResolveDispute(caller, jobID, winner)
	})
}
