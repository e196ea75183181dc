// Package leases provides the optional cross-instance scheduler lease.
//
// Each process owns one in-memory scheduler per provider, which bounds call
// rate within that process. When the service runs with multiple replicas
// against a shared provider rate-limit budget, a replica acquires an etcd
// lease per provider before scheduling calls against it, extending the
// one-scheduler-per-provider guarantee across processes. With no endpoints
// configured, leasing is disabled and every replica schedules independently.
//
// Thread-safety: all methods are safe for concurrent use.
package leases

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

// Config configures the lease client.
type Config struct {
	// Endpoints lists the etcd cluster members. Empty disables leasing.
	Endpoints []string

	// Namespace prefixes every lease key. Defaults to "evalcore".
	Namespace string

	// TTL is the lease time-to-live in seconds. Defaults to 30.
	TTL int
}

// Manager acquires and releases per-provider scheduler leases.
type Manager struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu       sync.Mutex
	sessions map[string]*concurrency.Session
	mutexes  map[string]*concurrency.Mutex
	closed   bool
}

// NewManager connects to etcd and verifies connectivity. Returns (nil, nil)
// when no endpoints are configured: callers treat a nil manager as
// lease-free operation.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "evalcore"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("leases: connect etcd: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("leases: etcd status check failed: %w", err)
	}

	return &Manager{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
		sessions:  map[string]*concurrency.Session{},
		mutexes:   map[string]*concurrency.Mutex{},
	}, nil
}

func (m *Manager) key(providerID string) string {
	return fmt.Sprintf("/%s/scheduler-lease/%s", m.namespace, providerID)
}

// Acquire blocks until this process holds the provider's scheduler lease or
// the context is cancelled. Acquire is idempotent per provider: a held
// lease is reused.
func (m *Manager) Acquire(ctx context.Context, providerID string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("leases: manager closed")
	}
	if _, held := m.mutexes[providerID]; held {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	session, err := concurrency.NewSession(m.client, concurrency.WithTTL(m.ttl))
	if err != nil {
		return fmt.Errorf("leases: create session: %w", err)
	}

	mutex := concurrency.NewMutex(session, m.key(providerID))
	if err := mutex.Lock(ctx); err != nil {
		session.Close()
		return fmt.Errorf("leases: acquire %s: %w", providerID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		mutex.Unlock(context.Background())
		session.Close()
		return fmt.Errorf("leases: manager closed")
	}
	m.sessions[providerID] = session
	m.mutexes[providerID] = mutex
	return nil
}

// Release gives up the provider's lease if held.
func (m *Manager) Release(ctx context.Context, providerID string) error {
	m.mu.Lock()
	mutex := m.mutexes[providerID]
	session := m.sessions[providerID]
	delete(m.mutexes, providerID)
	delete(m.sessions, providerID)
	m.mu.Unlock()

	if mutex == nil {
		return nil
	}
	err := mutex.Unlock(ctx)
	if session != nil {
		session.Close()
	}
	if err != nil {
		return fmt.Errorf("leases: release %s: %w", providerID, err)
	}
	return nil
}

// Close releases every held lease and the etcd connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	mutexes := m.mutexes
	sessions := m.sessions
	m.mutexes = map[string]*concurrency.Mutex{}
	m.sessions = map[string]*concurrency.Session{}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for provider, mutex := range mutexes {
		mutex.Unlock(ctx)
		if s := sessions[provider]; s != nil {
			s.Close()
		}
	}
	return m.client.Close()
}
