package main

import (
	"log"

	"github.com/LJTian/FinNews/internal/api"
	"github.com/LJTian/FinNews/internal/config"
	"github.com/LJTian/FinNews/internal/pipeline"
	"github.com/LJTian/FinNews/internal/scheduler"
	"github.com/LJTian/FinNews/internal/storage"
	"github.com/gin-gonic/gin"
)

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

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	recorder, _ := store.(storage.RunRecorder)
	runs, _ := store.(api.RunLister)

	var sched *scheduler.Scheduler
	jobs, err := scheduler.JobsFromConfig(cfg, store)
	if err != nil {
		log.Printf("warn: scheduler disabled: %v", err)
	} else {
		sched, err = scheduler.New(jobs, recorder, cfg.RunsDatabase)
		if err != nil {
			log.Fatalf("init scheduler failed: %v", err)
		}
		sched.RunOnStart = true
		sched.Start()
	}

	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, p, runs, cfg.RunsDatabase)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		// 退出前等待正在执行的任务结束
		if sched != nil {
			sched.Stop()
		}
		log.Fatalf("server exit: %v", err)
	}
}
