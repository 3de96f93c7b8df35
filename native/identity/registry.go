package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"gigchain/core/events"
	nativecommon "gigchain/native/common"
)

// Kind is the marketplace persona an identity registered as.
type Kind uint8

const (
	KindNone Kind = iota
	KindClient
	KindFreelancer
)

func (k Kind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindFreelancer:
		return "freelancer"
	default:
		return "none"
	}
}

// ParseKind converts a user supplied kind name.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "client":
		return KindClient, nil
	case "freelancer":
		return KindFreelancer, nil
	default:
		return KindNone, fmt.Errorf("%w: unknown identity kind %q", nativecommon.ErrInvalidValue, raw)
	}
}

var ErrAlreadyRegistered = fmt.Errorf("%w: identity already registered", nativecommon.ErrAlreadyExists)

type registryState interface {
	IdentityGet(addr common.Address) (uint8, int64, bool, error)
	IdentityPut(addr common.Address, kind uint8, registeredAt int64) error
}

// Registry answers whether an identity is a registered client or freelancer.
type Registry struct {
	state   registryState
	emitter events.Emitter
	nowFn   func() int64
}

func NewRegistry(state registryState, emitter events.Emitter) *Registry {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Registry{state: state, emitter: emitter, nowFn: func() int64 { return time.Now().Unix() }}
}

// SetNowFunc overrides the registration clock.
func (r *Registry) SetNowFunc(now func() int64) {
	if now != nil {
		r.nowFn = now
	}
}

// Register records addr as the given kind. An identity registers once.
func (r *Registry) Register(addr common.Address, kind Kind) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero identity", nativecommon.ErrInvalidValue)
	}
	if kind != KindClient && kind != KindFreelancer {
		return fmt.Errorf("%w: unknown identity kind %d", nativecommon.ErrInvalidValue, kind)
	}
	_, _, ok, err := r.state.IdentityGet(addr)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyRegistered
	}
	if err := r.state.IdentityPut(addr, uint8(kind), r.nowFn()); err != nil {
		return err
	}
	r.emitter.Emit(events.IdentityRegistered{Address: addr, Kind: kind.String()})
	return nil
}

// KindOf returns the registered kind, KindNone when unregistered.
func (r *Registry) KindOf(addr common.Address) Kind {
	kind, _, ok, err := r.state.IdentityGet(addr)
	if err != nil || !ok {
		return KindNone
	}
	return Kind(kind)
}

// IsRegistered reports whether addr registered as any kind.
func (r *Registry) IsRegistered(addr common.Address) bool {
	return r.KindOf(addr) != KindNone
}

// IsFreelancer reports whether addr registered as a freelancer.
func (r *Registry) IsFreelancer(addr common.Address) bool {
	return r.KindOf(addr) == KindFreelancer
}
