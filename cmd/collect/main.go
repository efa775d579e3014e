package main

import (
	"context"
	"log"

	"github.com/LJTian/FinNews/internal/config"
	"github.com/LJTian/FinNews/internal/scheduler"
	"github.com/LJTian/FinNews/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动触发或由外部 cron 调用，任一任务失败则非零退出
func main() {
	cfg := config.Load()

	store, err := storage.Open(cfg.StorageBackend, storage.SQLConfig{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Params:   cfg.DBParams,
		Dir:      cfg.SQLiteDir,
	}, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	jobs, err := scheduler.JobsFromConfig(cfg, store)
	if err != nil {
		log.Fatalf("init jobs failed: %v", err)
	}

	recorder, _ := store.(storage.RunRecorder)
	s, err := scheduler.New(jobs, recorder, cfg.RunsDatabase)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮采集任务后退出
	if err := s.RunOnce(context.Background()); err != nil {
		log.Fatalf("collect failed: %v", err)
	}
}
