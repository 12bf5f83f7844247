package oracle

import (
	"context"
	"sync"
)

// ScriptedResponse is one queued stub answer.
type ScriptedResponse struct {
	Text string
	Err  error
}

// Scripted is a deterministic Oracle for tests: it replays queued responses
// in order and records every request it receives. Once the script is
// exhausted it repeats the final response.
type Scripted struct {
	mu        sync.Mutex
	responses []ScriptedResponse
	calls     []Request
}

// NewScripted creates a scripted oracle with the given responses.
func NewScripted(responses ...ScriptedResponse) *Scripted {
	return &Scripted{responses: responses}
}

// Query implements Oracle.
func (s *Scripted) Query(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)

	if len(s.responses) == 0 {
		return "", context.Canceled
	}
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	r := s.responses[idx]
	return r.Text, r.Err
}

// Calls returns a copy of the recorded requests.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many queries were made.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
