// Package pipeline 关键词 -> 新闻采集 -> AI 摘要，面向交互式调用，结果始终是一条可展示的消息。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/config"
	"github.com/LJTian/FinNews/internal/summarizer"
)

const (
	DefaultMaxPages = 2
	DefaultDisplay  = 50
	// PreviewLimit 预览只展示前 50 条（标题 + 链接）
	PreviewLimit = 50
)

// Stage 标记失败发生在哪一步，空字符串表示成功
type Stage string

const (
	StageInput     Stage = "input"
	StageCollect   Stage = "collect"
	StageEmpty     Stage = "empty"
	StageSummarize Stage = "summarize"
)

type PreviewRow struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Result 一次管道执行的结果；Message 为摘要正文或提示信息
type Result struct {
	Keyword   string       `json:"keyword"`
	Message   string       `json:"message"`
	Preview   []PreviewRow `json:"preview"`
	Collected int          `json:"collected"`
	Partial   bool         `json:"partial"`
	Stage     Stage        `json:"stage,omitempty"`
	Err       error        `json:"-"`
}

// OK 摘要成功生成
func (r Result) OK() bool {
	return r.Stage == ""
}

type Pipeline struct {
	// Source 为 nil 表示未配置搜索凭据
	Source       collector.PageSource
	Cleaner      *collector.Cleaner
	Summarizer   summarizer.Summarizer
	PageInterval time.Duration
}

// New 按配置构造管道。摘要使用 SummaryCleanCharset（默认不过滤），与定时入库的清洗规则分开。
// 缺少搜索凭据或 API Key 时对应部分为 nil，调用时返回提示信息。
func New(cfg *config.Config) (*Pipeline, error) {
	charset, err := collector.ParseCharset(cfg.SummaryCleanCharset)
	if err != nil {
		return nil, fmt.Errorf("parse SUMMARY_CLEAN_CHARSET: %w", err)
	}
	p := &Pipeline{
		Cleaner:      &collector.Cleaner{Allow: charset, Fields: collector.NewsFields},
		PageInterval: cfg.PageInterval,
	}
	if id, secret, err := cfg.NaverCredentials(); err != nil {
		log.Printf("warn: %v, news search disabled", err)
	} else if src, err := collector.NewNaverNewsSource(id, secret); err == nil {
		p.Source = src
	}
	if key, err := cfg.GeminiKey(); err != nil {
		log.Printf("warn: %v, summary disabled", err)
	} else if g, err := summarizer.NewGeminiClient(summarizer.Config{APIKey: key, Model: cfg.GeminiModel, BaseURL: cfg.GeminiBaseURL}); err == nil {
		p.Summarizer = g
	}
	return p, nil
}

// Run 不返回 error：每一种失败都被转换为面向用户的消息
func (p *Pipeline) Run(ctx context.Context, keyword string, maxPages, display int) Result {
	keyword = strings.TrimSpace(keyword)
	res := Result{Keyword: keyword, Preview: []PreviewRow{}}
	if keyword == "" {
		res.Stage = StageInput
		res.Message = "키워드를 입력하세요."
		return res
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if display <= 0 {
		display = DefaultDisplay
	}

	out, err := p.Collect(ctx, keyword, maxPages, display)
	if err != nil {
		log.Printf("pipeline %q collect error: %v", keyword, err)
		res.Stage = StageCollect
		res.Err = err
		res.Message = fmt.Sprintf("네이버 뉴스 수집 중 오류 발생:\n%v", err)
		return res
	}
	records := out.Records
	res.Collected = len(records)
	res.Partial = out.Partial
	if len(records) == 0 {
		res.Stage = StageEmpty
		res.Message = fmt.Sprintf("'%s' 키워드로 뉴스가 없습니다.", keyword)
		return res
	}

	summary, err := p.summarize(ctx, keyword, records)
	if err != nil {
		log.Printf("pipeline %q summarize error: %v", keyword, err)
		res.Stage = StageSummarize
		res.Err = err
		res.Message = fmt.Sprintf("Gemini 요약 중 오류 발생:\n%v", err)
		// 摘要失败时给出全部已采集的标题和链接
		res.Preview = preview(records, len(records))
		return res
	}
	res.Message = summary
	res.Preview = preview(records, PreviewLimit)
	log.Printf("pipeline %q done, collected=%d partial=%v", keyword, res.Collected, res.Partial)
	return res
}

// Collect 只做采集和清洗，不做摘要
func (p *Pipeline) Collect(ctx context.Context, keyword string, maxPages, display int) (collector.CollectResult, error) {
	if p.Source == nil {
		return collector.CollectResult{}, collector.ErrMissingCredentials
	}
	q, err := collector.NewSearchQuery(keyword, display, maxPages, collector.SortDate)
	if err != nil {
		return collector.CollectResult{}, err
	}
	c := collector.NewPagedCollector(p.Source, p.Cleaner)
	c.PageInterval = p.PageInterval
	return c.Collect(ctx, q)
}

func (p *Pipeline) summarize(ctx context.Context, keyword string, records []collector.Record) (string, error) {
	if p.Summarizer == nil {
		return "", summarizer.ErrMissingAPIKey
	}
	if len(records) == 0 {
		return summarizer.NoNewsMessage(keyword), nil
	}
	out, err := p.Summarizer.Summarize(ctx, summarizer.BuildPrompt(keyword, records))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.New("empty summary")
	}
	return out, nil
}

func preview(records []collector.Record, limit int) []PreviewRow {
	if limit > len(records) {
		limit = len(records)
	}
	rows := make([]PreviewRow, 0, limit)
	for _, r := range records[:limit] {
		rows = append(rows, PreviewRow{Title: r["title"], Link: r["link"]})
	}
	return rows
}
