package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/FinNews/internal/storage"
	"github.com/robfig/cron/v3"
	"gorm.io/datatypes"
)

const defaultStartupDelay = 15 * time.Second

type Scheduler struct {
	cron     *cron.Cron
	jobs     []Job
	recorder storage.RunRecorder
	runsDB   string

	// 同一时刻只执行一个任务
	mu sync.Mutex
	// RunOnStart 启动后延迟 StartupDelay（默认 15s）执行一轮全部任务
	RunOnStart   bool
	StartupDelay time.Duration
}

// New recorder 可为 nil，此时执行记录只写日志
func New(jobs []Job, recorder storage.RunRecorder, runsDB string) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:     c,
		jobs:     jobs,
		recorder: recorder,
		runsDB:   runsDB,
	}

	for _, j := range jobs {
		job := j
		if _, err := c.AddFunc(job.Spec(), func() { _ = s.runJob(context.Background(), job) }); err != nil {
			return nil, fmt.Errorf("add job %s (%s): %w", job.Name(), job.Spec(), err)
		}
		log.Printf("scheduled %s at %q", job.Name(), job.Spec())
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if !s.RunOnStart {
		return
	}
	// 延迟执行首轮采集，避免与服务启动争抢资源
	delay := s.StartupDelay
	if delay <= 0 {
		delay = defaultStartupDelay
	}
	time.AfterFunc(delay, func() {
		_ = s.RunOnce(context.Background())
	})
}

// Stop 等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce 依次执行全部任务，返回所有失败任务的合并错误
func (s *Scheduler) RunOnce(ctx context.Context) error {
	log.Println("start collect job...")
	var errs []error
	for _, j := range s.jobs {
		if err := s.runJob(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name(), err))
		}
	}
	log.Printf("collect job done (%d jobs, %d failed)", len(s.jobs), len(errs))
	return errors.Join(errs...)
}

func (s *Scheduler) runJob(ctx context.Context, j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	log.Printf("run %s...", name)
	started := time.Now()
	rep, err := j.Run(ctx)
	finished := time.Now()
	if err != nil {
		log.Printf("run %s error: %v", name, err)
	} else {
		log.Printf("%s done, requests=%d records=%d outcome=%s", name, rep.Requests, rep.Records, rep.Outcome)
	}
	s.record(ctx, rep, err, started, finished)
	return err
}

func (s *Scheduler) record(ctx context.Context, rep RunReport, runErr error, started, finished time.Time) {
	if s.recorder == nil {
		return
	}
	rl := &storage.RunLog{
		Job:        rep.Job,
		Keyword:    rep.Keyword,
		Outcome:    rep.Outcome.String(),
		Requests:   rep.Requests,
		Records:    rep.Records,
		Partial:    rep.Partial,
		StartedAt:  started,
		FinishedAt: finished,
		Detail: datatypes.JSONMap{
			"termination": string(rep.Termination),
			"appended":    rep.Outcome.Appended,
			"skipped":     rep.Outcome.Skipped,
		},
	}
	if runErr != nil {
		rl.Error = runErr.Error()
		if rep.Outcome.Appended == 0 && !rep.Outcome.Skipped {
			rl.Outcome = "failed"
		}
	}
	if rep.Outcome.CheckFailed {
		rl.Detail["check_error"] = rep.Outcome.CheckErr.Error()
	}
	if err := s.recorder.RecordRun(ctx, s.runsDB, rl); err != nil {
		log.Printf("warn: record run %s: %v", rep.Job, err)
	}
}
