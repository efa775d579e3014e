package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/processor"
)

// MemoryStore 进程内存储，用于试运行（STORAGE_BACKEND=memory）和测试
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]collector.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string][]collector.Record)}
}

func memKey(name, table string) string {
	return name + "." + table
}

// Rows 返回某张表当前内容的副本
func (m *MemoryStore) Rows(name, table string) []collector.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[memKey(name, table)]
	out := make([]collector.Record, len(rows))
	copy(out, rows)
	return out
}

func (m *MemoryStore) Load(_ context.Context, name, table string) ([]collector.Record, error) {
	m.mu.Lock()
	_, ok := m.tables[memKey(name, table)]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoTable, name, table)
	}
	return m.Rows(name, table), nil
}

func (m *MemoryStore) Append(_ context.Context, name, table string, records []collector.Record) error {
	if len(records) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey(name, table)
	for _, r := range records {
		cp := make(collector.Record, len(r))
		for f, v := range r {
			cp[f] = v
		}
		m.tables[k] = append(m.tables[k], cp)
	}
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, name, table, field, value string) (bool, error) {
	for _, r := range m.Rows(name, table) {
		if r[field] == value {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DistinctValues(_ context.Context, name, table, field string) (processor.KeySet, error) {
	keys := processor.NewKeySet()
	for _, r := range m.Rows(name, table) {
		keys.Add(r[field])
	}
	return keys, nil
}
