package decode

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"dexindexer/internal/domain"
)

var (
	// no rule covers the event's runtime version; the event is skipped, not failed
	ErrUnrecognizedVersion = errors.New("unrecognized runtime version")
	// the event name was never registered
	ErrUnknownEvent = errors.New("unknown event")
	// args present but not in the shape the matched rule expects
	ErrMalformedEvent  = errors.New("malformed event args")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrOverlappingRule = errors.New("overlapping decode rule")
)

// DecodeFunc turns version-specific args into the canonical event
type DecodeFunc func(args json.RawMessage) (Event, error)

// Rule covers runtime versions [MinVersion, MaxVersion]; MaxVersion == 0 is open-ended
type Rule struct {
	MinVersion uint32
	MaxVersion uint32
	Decode     DecodeFunc
}

func (r Rule) covers(v uint32) bool {
	if v < r.MinVersion {
		return false
	}
	return r.MaxVersion == 0 || v <= r.MaxVersion
}

func (r Rule) overlaps(o Rule) bool {
	lo := max(r.MinVersion, o.MinVersion)
	rHi, oHi := r.MaxVersion, o.MaxVersion
	if rHi == 0 {
		rHi = ^uint32(0)
	}
	if oHi == 0 {
		oHi = ^uint32(0)
	}
	return lo <= min(rHi, oHi)
}

// Registry maps event name -> version-ranged decode rules. Adding a chain upgrade only appends rules
type Registry struct {
	mu    sync.RWMutex
	rules map[string][]Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string][]Rule, 16)}
}

// Register appends a rule; ranges of one event must not overlap
func (r *Registry) Register(name string, rule Rule) error {
	if rule.Decode == nil {
		return fmt.Errorf("decode func is required for %s", name)
	}
	if rule.MaxVersion != 0 && rule.MaxVersion < rule.MinVersion {
		return fmt.Errorf("invalid version range [%d, %d] for %s", rule.MinVersion, rule.MaxVersion, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rules[name] {
		if existing.overlaps(rule) {
			return fmt.Errorf("%w: %s [%d, %d]", ErrOverlappingRule, name, rule.MinVersion, rule.MaxVersion)
		}
	}

	rules := append(r.rules[name], rule)
	sort.Slice(rules, func(i, j int) bool { return rules[i].MinVersion < rules[j].MinVersion })
	r.rules[name] = rules
	return nil
}

func (r *Registry) mustRegister(name string, rules ...Rule) {
	for _, rule := range rules {
		if err := r.Register(name, rule); err != nil {
			panic(err)
		}
	}
}

// Decode selects the rule matching the event's runtime version and returns the canonical event
func (r *Registry) Decode(ev *domain.RawEvent) (Event, error) {
	r.mu.RLock()
	rules, ok := r.rules[ev.Name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Name)
	}

	for _, rule := range rules {
		if !rule.covers(ev.SpecVersion) {
			continue
		}
		out, err := rule.Decode(ev.Args)
		if err != nil {
			return nil, fmt.Errorf("decode %s@%d: %w", ev.Name, ev.SpecVersion, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%w: %s@%d", ErrUnrecognizedVersion, ev.Name, ev.SpecVersion)
}

// Names returns the registered event names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rules))
	for name := range r.rules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewDefaultRegistry registers every known encoding of every supported event
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerLoans(r)
	registerDex(r)
	return r
}
