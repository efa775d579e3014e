package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidQuery       = errors.New("collector: invalid search query")
	ErrMissingCredentials = errors.New("collector: search credentials not configured")
)

// Record 统一采集后的基础结构：字段名 -> 文本值，字段集合随采集器不同而不同
type Record map[string]string

// Columns 返回记录集合中出现过的全部字段，preferred 中的字段排在最前，其余按字母序
func Columns(records []Record, preferred ...string) []string {
	seen := make(map[string]struct{})
	cols := make([]string, 0, len(preferred))
	for _, p := range preferred {
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		cols = append(cols, p)
	}
	var rest []string
	for _, r := range records {
		for k := range r {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

type SortOrder string

const (
	SortDate      SortOrder = "date"
	SortRelevance SortOrder = "relevance"
)

// MaxPageSize 上游单页最多返回 100 条
const MaxPageSize = 100

// SearchQuery 每次调用构造一次，之后只读
type SearchQuery struct {
	Keyword  string
	PageSize int
	MaxPages int
	Sort     SortOrder
}

func NewSearchQuery(keyword string, pageSize, maxPages int, sort SortOrder) (SearchQuery, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return SearchQuery{}, fmt.Errorf("%w: empty keyword", ErrInvalidQuery)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return SearchQuery{}, fmt.Errorf("%w: page size %d out of range 1..%d", ErrInvalidQuery, pageSize, MaxPageSize)
	}
	if maxPages < 1 {
		return SearchQuery{}, fmt.Errorf("%w: max pages %d", ErrInvalidQuery, maxPages)
	}
	switch sort {
	case "":
		sort = SortDate
	case SortDate, SortRelevance:
	default:
		return SearchQuery{}, fmt.Errorf("%w: unknown sort %q", ErrInvalidQuery, sort)
	}
	return SearchQuery{Keyword: keyword, PageSize: pageSize, MaxPages: maxPages, Sort: sort}, nil
}

// ResultPage 单次上游调用的结果，不直接入库
type ResultPage struct {
	Items          []Record
	TotalAvailable int
	StartOffset    int
}

// PageSource 抽象一个分页搜索接口，offset 从 1 开始
type PageSource interface {
	Name() string
	FetchPage(ctx context.Context, q SearchQuery, offset int) (ResultPage, error)
}

// UpstreamError 上游返回非 2xx 状态码
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Source, e.StatusCode, e.Body)
}
