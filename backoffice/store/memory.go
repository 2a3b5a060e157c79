// Package store provides in-memory Repository implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// collection keeps insertion order and upserts by id.
type collection[T engine.Identifiable] struct {
	order []string
	byID  map[string]T
}

func newCollection[T engine.Identifiable]() collection[T] {
	return collection[T]{byID: make(map[string]T)}
}

func (c *collection[T]) put(r T) {
	id := r.RecordID()
	if _, ok := c.byID[id]; !ok {
		c.order = append(c.order, id)
	}
	c.byID[id] = r
}

func (c *collection[T]) list() []T {
	result := make([]T, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.byID[id])
	}
	return result
}

type Memory struct {
	mu           sync.RWMutex
	lots         collection[engine.Lot]
	clients      collection[engine.Client]
	files        collection[engine.File]
	payments     collection[engine.Payment]
	documents    collection[engine.Document]
	certificates collection[engine.Certificate]
}

var _ backoffice.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	m := &Memory{}
	m.resetLocked()
	return m
}

func (m *Memory) resetLocked() {
	m.lots = newCollection[engine.Lot]()
	m.clients = newCollection[engine.Client]()
	m.files = newCollection[engine.File]()
	m.payments = newCollection[engine.Payment]()
	m.documents = newCollection[engine.Document]()
	m.certificates = newCollection[engine.Certificate]()
}

// Snapshot copies every collection under one read lock.
func (m *Memory) Snapshot(_ context.Context) (backoffice.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return backoffice.Snapshot{
		Lots:         m.lots.list(),
		Clients:      m.clients.list(),
		Files:        m.files.list(),
		Payments:     m.payments.list(),
		Documents:    m.documents.list(),
		Certificates: m.certificates.list(),
	}, nil
}

func (m *Memory) Import(_ context.Context, snap backoffice.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range snap.Lots {
		m.lots.put(r)
	}
	for _, r := range snap.Clients {
		m.clients.put(r)
	}
	for _, r := range snap.Files {
		m.files.put(r)
	}
	for _, r := range snap.Payments {
		m.payments.put(r)
	}
	for _, r := range snap.Documents {
		m.documents.put(r)
	}
	for _, r := range snap.Certificates {
		m.certificates.put(r)
	}
	return nil
}

func (m *Memory) SaveLot(_ context.Context, lot engine.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lots.put(lot)
	return nil
}

func (m *Memory) SaveClient(_ context.Context, client engine.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients.put(client)
	return nil
}

func (m *Memory) SaveFile(_ context.Context, file engine.File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files.put(file)
	return nil
}

func (m *Memory) SavePayment(_ context.Context, p engine.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments.put(p)
	return nil
}

func (m *Memory) SaveDocuments(_ context.Context, docs ...engine.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.documents.put(d)
	}
	return nil
}

func (m *Memory) SaveCertificates(_ context.Context, certs ...engine.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range certs {
		m.certificates.put(c)
	}
	return nil
}

func (m *Memory) UpdateDocuments(_ context.Context, fn func(all []engine.Document) ([]engine.Document, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, err := fn(m.documents.list())
	if err != nil {
		return err
	}
	for _, d := range docs {
		m.documents.put(d)
	}
	return nil
}

func (m *Memory) UpdateCertificates(_ context.Context, fn func(all []engine.Certificate) ([]engine.Certificate, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	certs, err := fn(m.certificates.list())
	if err != nil {
		return err
	}
	for _, c := range certs {
		m.certificates.put(c)
	}
	return nil
}

func (m *Memory) GetDocument(_ context.Context, id string) (engine.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.documents.byID[id]
	if !ok {
		return engine.Document{}, fmt.Errorf("%w: %s", backoffice.ErrDocumentNotFound, id)
	}
	return d, nil
}

func (m *Memory) GetCertificate(_ context.Context, id string) (engine.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.certificates.byID[id]
	if !ok {
		return engine.Certificate{}, fmt.Errorf("%w: %s", backoffice.ErrCertificateNotFound, id)
	}
	return c, nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return nil
}
