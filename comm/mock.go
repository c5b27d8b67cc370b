package comm

import (
	"context"
	"sync"
)

// MockGroup is a configurable mock implementation of Group for use in tests.
// It allows setting up return values, tracking collective calls, and
// injecting errors for testing error paths.
type MockGroup struct {
	mu sync.RWMutex

	// RankValue and SizeValue are returned by Rank and Size.
	RankValue int
	SizeValue int

	// AllReduceMaxFunc is called by AllReduceMax if set. When unset,
	// AllReduceMax returns the input value unchanged.
	AllReduceMaxFunc func(ctx context.Context, value int64) (int64, error)

	// AllReduceSumFunc is called by AllReduceSum if set. When unset,
	// AllReduceSum leaves values unchanged.
	AllReduceSumFunc func(ctx context.Context, values []float64) error

	// BarrierFunc is called by Barrier if set.
	BarrierFunc func(ctx context.Context) error

	// CloseFunc is called by Close if set.
	CloseFunc func() error

	// Call tracking
	AllReduceMaxCalls []AllReduceMaxCall
	AllReduceSumCalls []AllReduceSumCall
	BarrierCalls      int
	CloseCalls        int
}

// Call tracking structs
type AllReduceMaxCall struct {
	Value int64
}

type AllReduceSumCall struct {
	Values []float64
}

// NewMockGroup creates a MockGroup reporting the given rank and size.
func NewMockGroup(rank, size int) *MockGroup {
	return &MockGroup{RankValue: rank, SizeValue: size}
}

// Compile-time check that MockGroup implements Group.
var _ Group = (*MockGroup)(nil)

func (m *MockGroup) Rank() int { return m.RankValue }

func (m *MockGroup) Size() int { return m.SizeValue }

func (m *MockGroup) AllReduceMax(ctx context.Context, value int64) (int64, error) {
	m.mu.Lock()
	m.AllReduceMaxCalls = append(m.AllReduceMaxCalls, AllReduceMaxCall{Value: value})
	m.mu.Unlock()

	if m.AllReduceMaxFunc != nil {
		return m.AllReduceMaxFunc(ctx, value)
	}
	return value, nil
}

func (m *MockGroup) AllReduceSum(ctx context.Context, values []float64) error {
	recorded := make([]float64, len(values))
	copy(recorded, values)
	m.mu.Lock()
	m.AllReduceSumCalls = append(m.AllReduceSumCalls, AllReduceSumCall{Values: recorded})
	m.mu.Unlock()

	if m.AllReduceSumFunc != nil {
		return m.AllReduceSumFunc(ctx, values)
	}
	return nil
}

func (m *MockGroup) Barrier(ctx context.Context) error {
	m.mu.Lock()
	m.BarrierCalls++
	m.mu.Unlock()

	if m.BarrierFunc != nil {
		return m.BarrierFunc(ctx)
	}
	return nil
}

func (m *MockGroup) Close() error {
	m.mu.Lock()
	m.CloseCalls++
	m.mu.Unlock()

	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
