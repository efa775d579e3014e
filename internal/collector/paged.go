package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	// DefaultOffsetCeiling 上游 start 参数的上限（Naver 搜索 API 为 1000）
	DefaultOffsetCeiling = 1000
	DefaultPageInterval  = 300 * time.Millisecond
)

// Termination 描述分页是如何结束的
type Termination string

const (
	TerminationCompleted   Termination = "completed"
	TerminationPageCap     Termination = "page_cap"
	TerminationExhausted   Termination = "pagination_exhausted"
	TerminationAborted     Termination = "aborted"
	TerminationEmptyResult Termination = "empty"
)

// CollectResult 一次采集的结果；Partial 为 true 时 Records 只是中途失败前已累积的部分
type CollectResult struct {
	Records     []Record
	Requests    int
	Total       int
	Termination Termination
	Partial     bool
	Err         error
}

// PagedCollector 将分页搜索接口拉取到底（或到页数上限），清洗后按到达顺序累积
type PagedCollector struct {
	Source        PageSource
	Cleaner       *Cleaner
	OffsetCeiling int
	PageInterval  time.Duration

	// 测试中替换为空实现
	sleep func(time.Duration)
}

func NewPagedCollector(src PageSource, cleaner *Cleaner) *PagedCollector {
	return &PagedCollector{
		Source:        src,
		Cleaner:       cleaner,
		OffsetCeiling: DefaultOffsetCeiling,
		PageInterval:  DefaultPageInterval,
		sleep:         time.Sleep,
	}
}

// Collect 第一页的错误直接返回；之后任一页失败则停止翻页，返回带 Partial 标记的部分结果
func (c *PagedCollector) Collect(ctx context.Context, q SearchQuery) (CollectResult, error) {
	if q.PageSize < 1 || q.PageSize > MaxPageSize || q.MaxPages < 1 {
		return CollectResult{}, fmt.Errorf("%w: %+v", ErrInvalidQuery, q)
	}
	name := c.Source.Name()
	log.Printf("fetch %s keyword=%q page_size=%d max_pages=%d...", name, q.Keyword, q.PageSize, q.MaxPages)

	first, err := c.Source.FetchPage(ctx, q, 1)
	res := CollectResult{Requests: 1}
	if err != nil {
		return res, fmt.Errorf("%s: first page: %w", name, err)
	}
	res.Total = first.TotalAvailable
	if first.TotalAvailable == 0 {
		res.Termination = TerminationEmptyResult
		res.Records = []Record{}
		return res, nil
	}

	totalPages := TotalPages(first.TotalAvailable, q.PageSize)
	res.Termination = TerminationCompleted
	if totalPages > q.MaxPages {
		totalPages = q.MaxPages
		res.Termination = TerminationPageCap
	}
	offsets := Offsets(first.TotalAvailable, q.PageSize, q.MaxPages, c.ceiling())

	res.Records = make([]Record, 0, len(first.Items))
	res.Records = c.appendCleaned(res.Records, first.Items)

	stopped := false
	for i, offset := range offsets[1:] {
		page := i + 2
		c.pause()
		p, err := c.Source.FetchPage(ctx, q, offset)
		res.Requests++
		if err != nil {
			log.Printf("%s: page %d (start=%d) failed, keep %d records: %v", name, page, offset, len(res.Records), err)
			res.Termination = TerminationAborted
			res.Partial = true
			res.Err = err
			stopped = true
			break
		}
		if len(p.Items) == 0 {
			stopped = true
			break
		}
		res.Records = c.appendCleaned(res.Records, p.Items)
	}
	if !stopped && len(offsets) < totalPages {
		log.Printf("%s: pagination exhausted at offset %d (ceiling %d)", name, offsets[len(offsets)-1], c.ceiling())
		res.Termination = TerminationExhausted
	}

	log.Printf("%s done, requests=%d records=%d termination=%s", name, res.Requests, len(res.Records), res.Termination)
	return res, nil
}

// Offsets 返回一次完整采集将会请求的 start 序列，Collect 按此序列翻页
func Offsets(total, pageSize, maxPages, ceiling int) []int {
	if total <= 0 || pageSize <= 0 {
		return []int{1}
	}
	pages := TotalPages(total, pageSize)
	if pages > maxPages {
		pages = maxPages
	}
	out := []int{1}
	offset := 1
	for page := 2; page <= pages; page++ {
		offset += pageSize
		if offset > ceiling {
			break
		}
		out = append(out, offset)
	}
	return out
}

// TotalPages 向上取整
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// IsUpstream 判断错误链中是否包含上游状态码错误
func IsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func (c *PagedCollector) appendCleaned(dst []Record, items []Record) []Record {
	for _, it := range items {
		dst = append(dst, c.Cleaner.Apply(it))
	}
	return dst
}

func (c *PagedCollector) ceiling() int {
	if c.OffsetCeiling <= 0 {
		return DefaultOffsetCeiling
	}
	return c.OffsetCeiling
}

func (c *PagedCollector) pause() {
	if c.PageInterval <= 0 {
		return
	}
	if c.sleep == nil {
		time.Sleep(c.PageInterval)
		return
	}
	c.sleep(c.PageInterval)
}
