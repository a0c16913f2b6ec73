package geocode

import (
	"context"
	"sync/atomic"
)

// countingProvider is a Provider stub that records how often it was called.
type countingProvider struct {
	name      string
	available bool
	result    *Result
	err       error
	calls     atomic.Int32
}

func (m *countingProvider) Name() string    { return m.name }
func (m *countingProvider) Available() bool { return m.available }
func (m *countingProvider) Geocode(_ context.Context, _ string) (*Result, error) {
	m.calls.Add(1)
	return m.result, m.err
}
