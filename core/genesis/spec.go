// core/genesis/spec.go
package genesis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"gigchain/crypto"
	"gigchain/native/access"
	"gigchain/native/bank"
	nativecommon "gigchain/native/common"
	"gigchain/native/identity"
)

// modulePrefix marks an allowance spender that names a custody module
// instead of an identity, e.g. "module:jobs".
const modulePrefix = "module:"

// Spec is the bootstrap file applied to an empty state.
type Spec struct {
	GenesisTime string              `yaml:"genesisTime" json:"genesisTime"`
	Roles       map[string][]string `yaml:"roles" json:"roles"`
	Identities  []IdentitySpec      `yaml:"identities" json:"identities"`
	Balances    map[string]string   `yaml:"balances" json:"balances"`
	Allowances  []AllowanceSpec     `yaml:"allowances" json:"allowances"`
	Paused      []string            `yaml:"paused" json:"paused"`

	genesisTimestamp time.Time
}

type IdentitySpec struct {
	Address string `yaml:"address" json:"address"`
	Kind    string `yaml:"kind" json:"kind"`
}

type AllowanceSpec struct {
	Owner   string `yaml:"owner" json:"owner"`
	Spender string `yaml:"spender" json:"spender"`
	Amount  string `yaml:"amount" json:"amount"`
}

// LoadSpec reads and validates a bootstrap file. YAML and JSON files are both
// accepted.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a bootstrap document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func (s *Spec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	roleNames := sortedKeys(s.Roles)
	admins := 0
	for _, role := range roleNames {
		normalized, err := access.NormalizeRole(role)
		if err != nil {
			return fmt.Errorf("roles[%q]: %w", role, err)
		}
		for i, account := range s.Roles[role] {
			if _, err := crypto.ParseIdentity(account); err != nil {
				return fmt.Errorf("roles[%q][%d]: %w", role, i, err)
			}
			if normalized == access.RoleAdmin {
				admins++
			}
		}
	}
	if admins == 0 {
		return fmt.Errorf("roles: at least one %s must be provided", access.RoleAdmin)
	}

	seen := make(map[common.Address]struct{}, len(s.Identities))
	for i, id := range s.Identities {
		addr, err := crypto.ParseIdentity(id.Address)
		if err != nil {
			return fmt.Errorf("identities[%d]: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("identities[%d]: duplicate address %q", i, id.Address)
		}
		seen[addr] = struct{}{}
		if _, err := identity.ParseKind(id.Kind); err != nil {
			return fmt.Errorf("identities[%d]: %w", i, err)
		}
	}

	for _, account := range sortedKeys(s.Balances) {
		if strings.HasPrefix(strings.TrimSpace(account), modulePrefix) {
			return fmt.Errorf("balances[%q]: %w", account, bank.ErrCustodyAccount)
		}
		addr, err := crypto.ParseIdentity(account)
		if err != nil {
			return fmt.Errorf("balances[%q]: %w", account, err)
		}
		if bank.IsModuleAccount(addr, access.ModuleJobs, access.ModuleEscrow, nativecommon.GlobalModule) {
			return fmt.Errorf("balances[%q]: %w", account, bank.ErrCustodyAccount)
		}
		if _, err := parseAmountString(s.Balances[account]); err != nil {
			return fmt.Errorf("balances[%q]: %w", account, err)
		}
	}

	for i, a := range s.Allowances {
		if _, err := crypto.ParseIdentity(a.Owner); err != nil {
			return fmt.Errorf("allowances[%d].owner: %w", i, err)
		}
		if _, err := ResolveAccount(a.Spender); err != nil {
			return fmt.Errorf("allowances[%d].spender: %w", i, err)
		}
		if _, err := parseAmountString(a.Amount); err != nil {
			return fmt.Errorf("allowances[%d].amount: %w", i, err)
		}
	}

	for i, module := range s.Paused {
		if _, err := access.NormalizeModule(module); err != nil {
			return fmt.Errorf("paused[%d]: %w", i, err)
		}
	}
	return nil
}

// ResolveAccount parses an identity or a "module:<name>" custody reference.
func ResolveAccount(raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(trimmed, modulePrefix); ok {
		module, err := access.NormalizeModule(name)
		if err != nil {
			return common.Address{}, err
		}
		return bank.ModuleAccount(module), nil
	}
	return crypto.ParseIdentity(trimmed)
}

func parseAmountString(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uint256.NewInt(0), nil
	}
	amount, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid genesisTime %q", value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
