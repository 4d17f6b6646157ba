package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ajitpratap0/hostbridge-go/pkg/protocol"
	"github.com/ajitpratap0/hostbridge-go/pkg/roster"
)

// Simulator is an in-memory host answering the four RPC methods. It stands
// in for a native shell when none is present and replies in the same loose
// shapes real hosts use.
type Simulator struct {
	latency time.Duration

	mu      sync.Mutex
	entries []roster.Entry
	removed map[string]struct{}
	picks   []string
}

// NewSimulator creates a simulator over seed, or the default 20-entry roster
// when seed is empty.
func NewSimulator(seed []roster.Entry, latency time.Duration) *Simulator {
	if len(seed) == 0 {
		seed = roster.Seed()
	}
	entries := make([]roster.Entry, len(seed))
	copy(entries, seed)
	return &Simulator{
		latency: latency,
		entries: entries,
		removed: make(map[string]struct{}),
	}
}

// CallAsync implements host.AsyncCaller
func (s *Simulator) CallAsync(ctx context.Context, method string, payload interface{}) (interface{}, error) {
	if err := sleepCtx(ctx, s.latency); err != nil {
		return nil, err
	}

	switch method {
	case protocol.MethodPing:
		return true, nil
	case protocol.MethodGetRoster:
		return map[string]interface{}{"data": s.activeMaps()}, nil
	case protocol.MethodReportPick:
		id, err := requestID(payload)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": s.pick(id)}, nil
	case protocol.MethodReportRemoval:
		id, err := requestID(payload)
		if err != nil {
			return nil, err
		}
		if s.remove(id) {
			return "true", nil
		}
		return "false", nil
	default:
		return nil, fmt.Errorf("simulator: unknown method %q", method)
	}
}

// Picks returns the ids reported as picked, in order
func (s *Simulator) Picks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.picks))
	copy(out, s.picks)
	return out
}

func (s *Simulator) activeMaps() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(s.entries))
	for _, e := range s.entries {
		if _, gone := s.removed[e.ID]; gone {
			continue
		}
		m := map[string]interface{}{"id": e.ID, "displayName": e.DisplayName}
		if e.SeatLabel != "" {
			m["seatLabel"] = e.SeatLabel
		}
		out = append(out, m)
	}
	return out
}

func (s *Simulator) activeIndex(id string) bool {
	if _, gone := s.removed[id]; gone {
		return false
	}
	for _, e := range s.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

func (s *Simulator) pick(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeIndex(id) {
		return false
	}
	s.picks = append(s.picks, id)
	return true
}

func (s *Simulator) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.activeIndex(id) {
		return false
	}
	if len(s.entries)-len(s.removed) <= roster.MinActive {
		return false
	}
	s.removed[id] = struct{}{}
	return true
}

func requestID(payload interface{}) (string, error) {
	switch v := payload.(type) {
	case protocol.EntryRequest:
		return v.ID, nil
	case *protocol.EntryRequest:
		return v.ID, nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("simulator: unexpected payload %T", payload)
	}
}
