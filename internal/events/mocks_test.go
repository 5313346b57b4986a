package events

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

// mockReader serves queued messages, then io.EOF.
type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockReader) FetchMessage(context.Context) (kafka.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, nil
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

type clearCall struct {
	userID  string
	orderID string
	items   []domain.OrderItem
}

type mockCartClearer struct {
	mu       sync.Mutex
	calls    []clearCall
	failures int
}

func (m *mockCartClearer) ClearOrdered(_ context.Context, userID, orderID string, items []domain.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, clearCall{userID, orderID, items})
	if m.failures > 0 {
		m.failures--
		return errors.New("mongo unavailable")
	}
	return nil
}

func (m *mockCartClearer) Calls() []clearCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]clearCall(nil), m.calls...)
}

type advanceCall struct {
	orderID  string
	status   domain.OrderStatus
	tracking string
}

type mockAdvancer struct {
	calls []advanceCall
	err   error
}

func (m *mockAdvancer) AdvanceStatus(_ context.Context, orderID string, next domain.OrderStatus, tracking string) (*domain.Order, error) {
	m.calls = append(m.calls, advanceCall{orderID, next, tracking})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.Order{ID: orderID, OrderNumber: "ORD-000001-AAAAAA", Status: next, TrackingNumber: tracking}, nil
}
