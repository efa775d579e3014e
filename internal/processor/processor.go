package processor

import (
	"strings"

	"github.com/LJTian/FinNews/internal/collector"
)

// KeySet 存储中已存在的自然键（如 link、date）
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	ks := make(KeySet, len(keys))
	for _, k := range keys {
		ks.Add(k)
	}
	return ks
}

func (k KeySet) Add(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	k[key] = struct{}{}
}

func (k KeySet) Has(key string) bool {
	_, ok := k[strings.TrimSpace(key)]
	return ok
}

// SimpleProcessor 写入存储层前按自然键去重
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

// Process 丢弃键为空的记录、批内重复以及 existing 中已存在的记录，保持到达顺序
func (p *SimpleProcessor) Process(items []collector.Record, keyField string, existing KeySet) []collector.Record {
	out := make([]collector.Record, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		key := strings.TrimSpace(it[keyField])
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if existing.Has(key) {
			continue
		}
		out = append(out, it)
	}

	return out
}
