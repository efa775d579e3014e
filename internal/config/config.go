package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingNaverCredentials = errors.New("config: NAVER_CLIENT_ID / NAVER_CLIENT_SECRET not set")
	ErrMissingGeminiKey        = errors.New("config: GEMINI_API_KEY not set")
)

// Config 进程启动时构造一次，之后显式传给需要的组件
type Config struct {
	AppPort       string
	BasicAuthUser string
	BasicAuthPass string

	// 存储：sql 或 redis（memory 仅用于试运行）
	StorageBackend string
	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBParams       string
	SQLiteDir      string
	RedisAddr      string
	// 存在性检查失败时：fail（默认）/ proceed
	CheckErrorPolicy string
	// 定时任务执行记录写入的库
	RunsDatabase string

	NaverClientID     string
	NaverClientSecret string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// 清洗白名单，见 collector.ParseCharset；CleanCharset 用于定时入库
	CleanCharset string
	// SummaryCleanCharset 用于交互式摘要，默认为空即不过滤，保留数字和标点
	SummaryCleanCharset string

	PageInterval time.Duration

	Jobs JobsConfig
}

// JobsConfig 定时任务，可由 JOBS_FILE 指向的 YAML 覆盖
type JobsConfig struct {
	News         []NewsJobConfig       `yaml:"news"`
	ExchangeRate ExchangeRateJobConfig `yaml:"exchange_rate"`
}

type NewsJobConfig struct {
	Keyword  string `yaml:"keyword"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	PageSize int    `yaml:"page_size"`
	MaxPages int    `yaml:"max_pages"`
	Sort     string `yaml:"sort"`
	CronSpec string `yaml:"cron"`
}

type ExchangeRateJobConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`
	CronSpec string `yaml:"cron"`
}

// Load 先读进程环境变量，再读 ENV_FILES 中列出的 dotenv 文件（只读取，不写回进程环境）
func Load() *Config {
	files := splitList(os.Getenv("ENV_FILES"))
	vals, err := readEnvFiles(files)
	if err != nil {
		log.Printf("warn: read env files %v: %v", files, err)
	}
	get := func(key, def string) string {
		if vals == nil {
			return getEnv(key, def)
		}
		return getEnvFrom(vals, key, def)
	}

	cfg := &Config{
		AppPort:       get("APP_PORT", "7860"),
		BasicAuthUser: get("APP_BASIC_USER", ""),
		BasicAuthPass: get("APP_BASIC_PASS", ""),

		StorageBackend:   get("STORAGE_BACKEND", "sql"),
		DBDriver:         get("DB_DRIVER", "mysql"),
		DBHost:           get("DB_HOST", "localhost"),
		DBPort:           get("DB_PORT", "3306"),
		DBUser:           get("DB_USER", "fintech_news"),
		DBPassword:       get("DB_PASSWORD", ""),
		DBParams:         get("DB_PARAMS", ""),
		SQLiteDir:        get("SQLITE_DIR", "data"),
		RedisAddr:        get("REDIS_ADDR", "localhost:6379"),
		CheckErrorPolicy: get("CHECK_ERROR_POLICY", "fail"),
		RunsDatabase:     get("RUNS_DATABASE", "finnews"),

		NaverClientID:     get("NAVER_CLIENT_ID", ""),
		NaverClientSecret: get("NAVER_CLIENT_SECRET", ""),

		GeminiAPIKey:  get("GEMINI_API_KEY", ""),
		GeminiModel:   get("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: get("GEMINI_BASE_URL", ""),

		CleanCharset:        get("CLEAN_CHARSET", "korean"),
		SummaryCleanCharset: get("SUMMARY_CLEAN_CHARSET", ""),
		PageInterval:        getDuration(get("PAGE_INTERVAL", ""), 300*time.Millisecond),

		Jobs: defaultJobs(get),
	}

	if path := get("JOBS_FILE", ""); path != "" {
		jobs, err := LoadJobsFile(path)
		if err != nil {
			log.Printf("warn: load jobs file %s: %v, keep env jobs", path, err)
		} else {
			cfg.Jobs = jobs
		}
	}

	log.Printf("config loaded: port=%s storage=%s driver=%s news_jobs=%d", cfg.AppPort, cfg.StorageBackend, cfg.DBDriver, len(cfg.Jobs.News))
	return cfg
}

// NaverCredentials 缺失时在任何网络调用之前返回错误
func (c *Config) NaverCredentials() (string, string, error) {
	if c.NaverClientID == "" || c.NaverClientSecret == "" {
		return "", "", ErrMissingNaverCredentials
	}
	return c.NaverClientID, c.NaverClientSecret, nil
}

func (c *Config) GeminiKey() (string, error) {
	if c.GeminiAPIKey == "" {
		return "", ErrMissingGeminiKey
	}
	return c.GeminiAPIKey, nil
}

func defaultJobs(get func(key, def string) string) JobsConfig {
	jobs := JobsConfig{
		ExchangeRate: ExchangeRateJobConfig{
			Enabled:  get("EXCHANGE_RATE_ENABLED", "true") == "true",
			Database: "ex_rate",
			Table:    "ex_rate",
			CronSpec: get("EXCHANGE_RATE_CRON", "0 9 * * *"),
		},
	}
	for _, kw := range splitList(get("NEWS_KEYWORDS", "")) {
		jobs.News = append(jobs.News, NewsJobConfig{
			Keyword:  kw,
			Database: get("NEWS_DATABASE", "fintech_news"),
			Table:    get("NEWS_TABLE", "news"),
			PageSize: getInt(get("NEWS_PAGE_SIZE", ""), 100),
			MaxPages: getInt(get("NEWS_MAX_PAGES", ""), 11),
			Sort:     get("NEWS_SORT", "date"),
			CronSpec: get("NEWS_CRON", "0 8 * * *"),
		})
	}
	return jobs
}

// LoadJobsFile 读取 YAML 格式的任务定义，未填写的字段使用默认值
func LoadJobsFile(path string) (JobsConfig, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return JobsConfig{}, err
	}
	var jobs JobsConfig
	if err := yaml.Unmarshal(bs, &jobs); err != nil {
		return JobsConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range jobs.News {
		j := &jobs.News[i]
		if strings.TrimSpace(j.Keyword) == "" {
			return JobsConfig{}, fmt.Errorf("parse %s: news[%d] keyword is required", path, i)
		}
		if j.Database == "" {
			j.Database = "fintech_news"
		}
		if j.Table == "" {
			j.Table = "news"
		}
		if j.PageSize == 0 {
			j.PageSize = 100
		}
		if j.MaxPages == 0 {
			j.MaxPages = 11
		}
		if j.Sort == "" {
			j.Sort = "date"
		}
		if j.CronSpec == "" {
			j.CronSpec = "0 8 * * *"
		}
	}
	if jobs.ExchangeRate.Database == "" {
		jobs.ExchangeRate.Database = "ex_rate"
	}
	if jobs.ExchangeRate.Table == "" {
		jobs.ExchangeRate.Table = "ex_rate"
	}
	if jobs.ExchangeRate.CronSpec == "" {
		jobs.ExchangeRate.CronSpec = "0 9 * * *"
	}
	return jobs, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return godotenv.Read(existing...)
}

func getEnv(key, def string) string {
	return getEnvFrom(nil, key, def)
}

// getEnvFrom 进程环境变量优先，其次 dotenv 文件，最后默认值
func getEnvFrom(file map[string]string, key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := file[key]; v != "" {
		return v
	}
	return def
}

func getInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
