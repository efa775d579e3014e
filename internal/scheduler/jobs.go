package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/config"
	"github.com/LJTian/FinNews/internal/storage"
)

// NewsLinkKey 新闻以 link 去重
const NewsLinkKey = "link"

// RunReport 单个任务一次执行的结果
type RunReport struct {
	Job         string
	Keyword     string
	Outcome     storage.Outcome
	Requests    int
	Records     int
	Partial     bool
	Termination collector.Termination
}

// Job 一个可定时执行的采集任务
type Job interface {
	Name() string
	Spec() string
	Run(ctx context.Context) (RunReport, error)
}

// NewsJob 按关键词翻页采集新闻，只追加库中不存在的 link
type NewsJob struct {
	Query     collector.SearchQuery
	Database  string
	Table     string
	CronSpec  string
	Collector *collector.PagedCollector
	Store     storage.Backend
	Policy    storage.CheckErrorPolicy
}

func (j *NewsJob) Name() string { return "news:" + j.Query.Keyword }
func (j *NewsJob) Spec() string { return j.CronSpec }

// Run 中途失败时已采集的部分照常入库，随后返回错误
func (j *NewsJob) Run(ctx context.Context) (RunReport, error) {
	rep := RunReport{Job: j.Name(), Keyword: j.Query.Keyword}
	res, err := j.Collector.Collect(ctx, j.Query)
	rep.Requests = res.Requests
	if err != nil {
		return rep, err
	}
	rep.Records = len(res.Records)
	rep.Partial = res.Partial
	rep.Termination = res.Termination

	if len(res.Records) > 0 {
		out, err := storage.AppendNew(ctx, j.Store, j.Database, j.Table, NewsLinkKey, res.Records, j.Policy)
		rep.Outcome = out
		if err != nil {
			return rep, err
		}
	} else {
		rep.Outcome = storage.Outcome{Skipped: true}
	}

	if res.Partial {
		return rep, fmt.Errorf("partial collect (%d records kept): %w", len(res.Records), res.Err)
	}
	return rep, nil
}

// ExchangeRateJob 采集前一日汇率，同一日期只写入一次
type ExchangeRateJob struct {
	Fetcher  *collector.ExchangeRateFetcher
	Database string
	Table    string
	CronSpec string
	Store    storage.Backend
	Policy   storage.CheckErrorPolicy
}

func (j *ExchangeRateJob) Name() string { return j.Fetcher.Name() }
func (j *ExchangeRateJob) Spec() string { return j.CronSpec }

func (j *ExchangeRateJob) Run(ctx context.Context) (RunReport, error) {
	rep := RunReport{Job: j.Name(), Requests: 1}
	date, rows, err := j.Fetcher.Fetch()
	rep.Keyword = date
	if err != nil {
		return rep, err
	}
	rep.Records = len(rows)
	if len(rows) == 0 {
		return rep, fmt.Errorf("exchange rate %s: empty table", date)
	}
	out, err := storage.PersistIfNew(ctx, j.Store, j.Database, j.Table, collector.ExchangeRateKey, date, rows, j.Policy)
	rep.Outcome = out
	return rep, err
}

// JobsFromConfig 根据配置构造全部任务；缺少搜索凭据时新闻任务无法创建
func JobsFromConfig(cfg *config.Config, store storage.Backend) ([]Job, error) {
	policy, err := storage.ParseCheckErrorPolicy(cfg.CheckErrorPolicy)
	if err != nil {
		return nil, err
	}
	charset, err := collector.ParseCharset(cfg.CleanCharset)
	if err != nil {
		return nil, err
	}
	cleaner := &collector.Cleaner{Allow: charset, Fields: collector.NewsFields}

	var jobs []Job
	if len(cfg.Jobs.News) > 0 {
		id, secret, err := cfg.NaverCredentials()
		if err != nil {
			return nil, err
		}
		src, err := collector.NewNaverNewsSource(id, secret)
		if err != nil {
			return nil, err
		}
		for _, nj := range cfg.Jobs.News {
			q, err := collector.NewSearchQuery(nj.Keyword, nj.PageSize, nj.MaxPages, collector.SortOrder(strings.ToLower(nj.Sort)))
			if err != nil {
				return nil, fmt.Errorf("news job %q: %w", nj.Keyword, err)
			}
			c := collector.NewPagedCollector(src, cleaner)
			c.PageInterval = cfg.PageInterval
			jobs = append(jobs, &NewsJob{
				Query:     q,
				Database:  nj.Database,
				Table:     nj.Table,
				CronSpec:  nj.CronSpec,
				Collector: c,
				Store:     store,
				Policy:    policy,
			})
		}
	}

	if er := cfg.Jobs.ExchangeRate; er.Enabled {
		jobs = append(jobs, &ExchangeRateJob{
			Fetcher:  &collector.ExchangeRateFetcher{Now: config.Now},
			Database: er.Database,
			Table:    er.Table,
			CronSpec: er.CronSpec,
			Store:    store,
			Policy:   policy,
		})
	}

	if len(jobs) == 0 {
		return nil, errors.New("no jobs configured")
	}
	return jobs, nil
}
