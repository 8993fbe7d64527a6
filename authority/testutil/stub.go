// Package testutil provides test doubles for the authority package.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/c360studio/evorao/authority"
	"github.com/c360studio/evorao/taxonomy"
)

// ErrUnavailable is returned by StubAuthority for labels listed in Failing.
var ErrUnavailable = errors.New("authority unavailable")

// StubAuthority is a thread-safe in-memory authority.
//
// Usage:
//
//	stub := &StubAuthority{
//	    Results: map[string]*taxonomy.Result{
//	        "Rabies virus": {Status: taxonomy.StatusCurrent, Current: &taxonomy.Entity{Label: "Rabies lyssavirus"}},
//	    },
//	}
//	r := resolver.New(stub.Factory(), resolver.Options{})
//
// Labels missing from Results resolve to nil (an authority miss). Labels in
// Failing return ErrUnavailable for their first Failing[label] calls, or
// forever when the count is negative. Labels in Panicking panic. OnResolve,
// when set, runs before each call is answered; a call whose context is done
// by then returns the context error.
type StubAuthority struct {
	mu        sync.Mutex
	Results   map[string]*taxonomy.Result
	Failing   map[string]int
	Panicking map[string]bool
	OnResolve func(label string)
	calls     map[string]int
	clients   int
}

// Factory returns a Factory handing out per-call handles onto the stub.
func (s *StubAuthority) Factory() authority.Factory {
	return func() (authority.Client, error) {
		s.mu.Lock()
		s.clients++
		s.mu.Unlock()
		return stubClient{stub: s}, nil
	}
}

// Calls returns how many times label was resolved.
func (s *StubAuthority) Calls(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[label]
}

// TotalCalls returns the number of resolve calls across all labels.
func (s *StubAuthority) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// Clients returns how many client handles the factory created.
func (s *StubAuthority) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

func (s *StubAuthority) resolve(ctx context.Context, label string) (*taxonomy.Result, error) {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[label]++
	n := s.calls[label]
	fail, failing := s.Failing[label]
	panics := s.Panicking[label]
	res := s.Results[label]
	hook := s.OnResolve
	s.mu.Unlock()

	if hook != nil {
		hook(label)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if panics {
		panic("stub authority panic for " + label)
	}
	if failing && (fail < 0 || n <= fail) {
		return nil, ErrUnavailable
	}
	return res, nil
}

type stubClient struct {
	stub *StubAuthority
}

func (c stubClient) ResolveToLatest(ctx context.Context, label string) (*taxonomy.Result, error) {
	return c.stub.resolve(ctx, label)
}
