package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/processor"
)

// CheckErrorPolicy 存在性检查本身失败时的处理方式
type CheckErrorPolicy int

const (
	// CheckErrorFail 返回错误，不写入
	CheckErrorFail CheckErrorPolicy = iota
	// CheckErrorProceed 视为不存在并照常写入，可能产生重复行；Outcome.CheckFailed 会被置位
	CheckErrorProceed
)

func ParseCheckErrorPolicy(s string) (CheckErrorPolicy, error) {
	switch s {
	case "", "fail":
		return CheckErrorFail, nil
	case "proceed":
		return CheckErrorProceed, nil
	}
	return CheckErrorFail, fmt.Errorf("storage: unknown check error policy %q", s)
}

func (p CheckErrorPolicy) String() string {
	if p == CheckErrorProceed {
		return "proceed"
	}
	return "fail"
}

// Outcome 一次持久化的结果：Skipped 或 Appended(n)
type Outcome struct {
	Skipped  bool
	Appended int
	// CheckFailed 检查失败但按 CheckErrorProceed 继续写入
	CheckFailed bool
	CheckErr    error
}

func (o Outcome) String() string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.CheckFailed:
		return fmt.Sprintf("appended(%d, check failed)", o.Appended)
	default:
		return fmt.Sprintf("appended(%d)", o.Appended)
	}
}

// PersistIfNew 若存储中已有 keyField = keyValue 的行则跳过，否则追加全部记录。
// 先查后写，两个并发执行可能都通过检查；按每日单次运行的前提可以接受。
func PersistIfNew(ctx context.Context, b Backend, namespace, table, keyField, keyValue string,
	records []collector.Record, policy CheckErrorPolicy) (Outcome, error) {
	exists, err := b.Exists(ctx, namespace, table, keyField, keyValue)
	var out Outcome
	if err != nil {
		if policy != CheckErrorProceed {
			return out, fmt.Errorf("check %s.%s %s=%s: %w", namespace, table, keyField, keyValue, err)
		}
		log.Printf("warn: check %s.%s %s=%s failed, append anyway: %v", namespace, table, keyField, keyValue, err)
		out.CheckFailed = true
		out.CheckErr = err
	} else if exists {
		log.Printf("%s.%s already has %s=%s, skip", namespace, table, keyField, keyValue)
		return Outcome{Skipped: true}, nil
	}

	if err := b.Append(ctx, namespace, table, records); err != nil {
		return out, fmt.Errorf("append %s.%s: %w", namespace, table, err)
	}
	out.Appended = len(records)
	log.Printf("%s.%s %s=%s appended %d rows", namespace, table, keyField, keyValue, out.Appended)
	return out, nil
}

// AppendNew 读取一次已存在的键集合，只追加新记录（批内重复同样丢弃）
func AppendNew(ctx context.Context, b Backend, namespace, table, keyField string,
	records []collector.Record, policy CheckErrorPolicy) (Outcome, error) {
	var out Outcome
	existing, err := b.DistinctValues(ctx, namespace, table, keyField)
	if err != nil {
		if policy != CheckErrorProceed {
			return out, fmt.Errorf("load %s.%s %s keys: %w", namespace, table, keyField, err)
		}
		log.Printf("warn: load %s.%s %s keys failed, append without filter: %v", namespace, table, keyField, err)
		out.CheckFailed = true
		out.CheckErr = err
		existing = nil
	}

	fresh := processor.NewSimpleProcessor().Process(records, keyField, existing)
	if len(fresh) == 0 {
		out.Skipped = true
		log.Printf("%s.%s no new records by %s (got %d)", namespace, table, keyField, len(records))
		return out, nil
	}
	if err := b.Append(ctx, namespace, table, fresh); err != nil {
		return out, fmt.Errorf("append %s.%s: %w", namespace, table, err)
	}
	out.Appended = len(fresh)
	log.Printf("%s.%s fetched=%d appended=%d", namespace, table, len(records), out.Appended)
	return out, nil
}
