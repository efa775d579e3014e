package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/pipeline"
	"github.com/LJTian/FinNews/internal/storage"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

// RunLister 支持查询执行记录的存储（目前只有 SQL 后端）
type RunLister interface {
	ListRuns(ctx context.Context, name string, limit int) ([]storage.RunLog, error)
}

type Server struct {
	store    storage.Backend
	pipeline *pipeline.Pipeline
	runs     RunLister
	runsDB   string
}

// NewServer runs 可为 nil
func NewServer(store storage.Backend, p *pipeline.Pipeline, runs RunLister, runsDB string) *Server {
	return &Server{store: store, pipeline: p, runs: runs, runsDB: runsDB}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))

	r.GET("/health", s.health)
	r.GET("/", s.index)
	r.POST("/search", s.search)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.POST("/summary", s.summary)
		v1.GET("/records", s.listRecords)
		v1.GET("/runs", s.listRuns)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Keyword":  "",
		"MaxPages": pipeline.DefaultMaxPages,
		"Display":  pipeline.DefaultDisplay,
	})
}

// search 表单提交，渲染摘要和新闻预览
func (s *Server) search(c *gin.Context) {
	keyword := c.PostForm("keyword")
	maxPages := intParam(c.PostForm("max_pages"), pipeline.DefaultMaxPages, 1, 5)
	display := intParam(c.PostForm("display"), pipeline.DefaultDisplay, 10, collector.MaxPageSize)

	res := s.pipeline.Run(c.Request.Context(), keyword, maxPages, display)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Keyword":  res.Keyword,
		"MaxPages": maxPages,
		"Display":  display,
		"Result":   res,
	})
}

func (s *Server) listNews(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		fail(c, http.StatusBadRequest, "bad_request", "keyword is required")
		return
	}
	pages := intParam(c.Query("pages"), pipeline.DefaultMaxPages, 1, 10)
	display := intParam(c.Query("display"), pipeline.DefaultDisplay, 1, collector.MaxPageSize)

	res, err := s.pipeline.Collect(c.Request.Context(), keyword, pages, display)
	if err != nil {
		collectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"keyword":     keyword,
			"total":       res.Total,
			"requests":    res.Requests,
			"termination": res.Termination,
			"partial":     res.Partial,
			"items":       res.Records,
		},
	})
}

type summaryRequest struct {
	Keyword  string `json:"keyword"`
	MaxPages int    `json:"max_pages"`
	Display  int    `json:"display"`
}

func (s *Server) summary(c *gin.Context) {
	var req summaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res := s.pipeline.Run(c.Request.Context(), req.Keyword, req.MaxPages, req.Display)

	status, code := http.StatusOK, "ok"
	switch res.Stage {
	case pipeline.StageInput:
		status, code = http.StatusBadRequest, "bad_request"
	case pipeline.StageCollect:
		status, code = collectStatus(res.Err)
	case pipeline.StageEmpty:
		code = "no_news"
	case pipeline.StageSummarize:
		status, code = http.StatusBadGateway, "summarize_error"
	}
	c.JSON(status, gin.H{
		"code":    code,
		"message": res.Message,
		"data":    res,
	})
}

func (s *Server) listRecords(c *gin.Context) {
	db, table := c.Query("db"), c.Query("table")
	if db == "" || table == "" {
		fail(c, http.StatusBadRequest, "bad_request", "db and table are required")
		return
	}
	limit := intParam(c.Query("limit"), 100, 1, 1000)

	rows, err := s.store.Load(c.Request.Context(), db, table)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		fail(c, http.StatusBadRequest, "bad_request", err.Error())
		return
	case errors.Is(err, storage.ErrNoTable):
		fail(c, http.StatusNotFound, "not_found", err.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	// 返回最新的 limit 行
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data": gin.H{
			"columns": collector.Columns(rows, collector.ExchangeRateKey, "title", "link"),
			"items":   rows,
		},
	})
}

func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		fail(c, http.StatusNotImplemented, "not_supported", "run log requires the sql backend")
		return
	}
	limit := intParam(c.Query("limit"), 50, 1, 500)
	runs, err := s.runs.ListRuns(c.Request.Context(), s.runsDB, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    runs,
	})
}

func collectError(c *gin.Context, err error) {
	status, code := collectStatus(err)
	fail(c, status, code, err.Error())
}

func collectStatus(err error) (int, string) {
	switch {
	case errors.Is(err, collector.ErrInvalidQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, collector.ErrMissingCredentials):
		return http.StatusServiceUnavailable, "not_configured"
	}
	if _, ok := collector.IsUpstream(err); ok {
		return http.StatusBadGateway, "upstream_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

// intParam 解析失败时取默认值，并限制在 [lo, hi]
func intParam(raw string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
