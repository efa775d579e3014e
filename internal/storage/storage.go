package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/LJTian/FinNews/internal/collector"
	"github.com/LJTian/FinNews/internal/processor"
	"github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrUnsupportedDriver = errors.New("storage: unsupported driver")
	ErrInvalidName       = errors.New("storage: invalid database or table name")
	ErrNoTable           = errors.New("storage: table does not exist")
)

// Backend 存储协作者：只追加，不做 upsert / 去重
type Backend interface {
	Load(ctx context.Context, name, table string) ([]collector.Record, error)
	Append(ctx context.Context, name, table string, records []collector.Record) error
	Exists(ctx context.Context, name, table, field, value string) (bool, error)
	DistinctValues(ctx context.Context, name, table, field string) (processor.KeySet, error)
}

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// SQLConfig 数据库服务器连接信息，库名在每次调用时指定
type SQLConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	// Params 追加到 DSN 的参数，postgres 为 "k=v k=v"，mysql 为 "k=v&k=v"
	Params string
	// Dir sqlite 数据文件目录，每个库一个 <name>.db
	Dir string
}

// SQLStore 基于 gorm 的存储实现，每次调用独立获取并释放连接
type SQLStore struct {
	cfg        SQLConfig
	gormConfig *gorm.Config
}

func NewSQLStore(cfg SQLConfig) (*SQLStore, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	if cfg.Driver == DriverSQLite && cfg.Dir == "" {
		cfg.Dir = "data"
	}
	return &SQLStore{
		cfg:        cfg,
		gormConfig: &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)},
	}, nil
}

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

func validName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Conn 一次调用范围内的数据库连接
type Conn struct {
	DB *gorm.DB
}

func (c *Conn) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Connect 确保库存在（不存在则创建）后打开到该库的连接，调用方负责 Close
func (s *SQLStore) Connect(ctx context.Context, name string) (*Conn, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if err := s.ensureDatabase(ctx, name); err != nil {
		return nil, fmt.Errorf("ensure database %s: %w", name, err)
	}
	db, err := gorm.Open(s.dialector(name), s.gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", name, err)
	}
	return &Conn{DB: db.WithContext(ctx)}, nil
}

func (s *SQLStore) withConn(ctx context.Context, name string, fn func(db *gorm.DB) error) error {
	conn, err := s.Connect(ctx, name)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn.DB)
}

func (s *SQLStore) ensureDatabase(ctx context.Context, name string) error {
	switch s.cfg.Driver {
	case DriverSQLite:
		return os.MkdirAll(s.cfg.Dir, 0o755)
	case DriverMySQL:
		root, err := gorm.Open(gormmysql.Open(s.mysqlDSN("")), s.gormConfig)
		if err != nil {
			return err
		}
		defer closeDB(root)
		return root.WithContext(ctx).Exec("CREATE DATABASE IF NOT EXISTS ?", clause.Table{Name: name}).Error
	case DriverPostgres:
		root, err := gorm.Open(postgres.Open(s.postgresDSN("postgres")), s.gormConfig)
		if err != nil {
			return err
		}
		defer closeDB(root)
		var n int64
		if err := root.WithContext(ctx).Raw("SELECT count(*) FROM pg_database WHERE datname = ?", name).Scan(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		return root.WithContext(ctx).Exec("CREATE DATABASE ?", clause.Table{Name: name}).Error
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedDriver, s.cfg.Driver)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *SQLStore) dialector(name string) gorm.Dialector {
	switch s.cfg.Driver {
	case DriverMySQL:
		return gormmysql.Open(s.mysqlDSN(name))
	case DriverPostgres:
		return postgres.Open(s.postgresDSN(name))
	default:
		return sqlite.Open(s.sqlitePath(name))
	}
}

func (s *SQLStore) postgresDSN(name string) string {
	params := s.cfg.Params
	if params == "" {
		params = "sslmode=disable TimeZone=UTC"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s %s",
		s.cfg.Host, s.cfg.User, s.cfg.Password, name, s.cfg.Port, params)
}

func (s *SQLStore) mysqlDSN(name string) string {
	mc := mysql.NewConfig()
	mc.User = s.cfg.User
	mc.Passwd = s.cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	mc.DBName = name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	if s.cfg.Params != "" {
		if vals, err := url.ParseQuery(s.cfg.Params); err == nil {
			for k := range vals {
				mc.Params[k] = vals.Get(k)
			}
		}
	}
	return mc.FormatDSN()
}

func (s *SQLStore) sqlitePath(name string) string {
	return filepath.Join(s.cfg.Dir, name+".db")
}

// Load 读取整张表
func (s *SQLStore) Load(ctx context.Context, name, table string) ([]collector.Record, error) {
	if err := validName(table); err != nil {
		return nil, err
	}
	var out []collector.Record
	err := s.withConn(ctx, name, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(table) {
			return fmt.Errorf("%w: %s.%s", ErrNoTable, name, table)
		}
		var rows []map[string]any
		if err := db.Table(table).Find(&rows).Error; err != nil {
			return err
		}
		out = make([]collector.Record, 0, len(rows))
		for _, row := range rows {
			r := make(collector.Record, len(row))
			for k, v := range row {
				r[k] = toText(v)
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

// Append 追加写入；表或列不存在时按 TEXT 创建
func (s *SQLStore) Append(ctx context.Context, name, table string, records []collector.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validName(table); err != nil {
		return err
	}
	cols := collector.Columns(records)
	return s.withConn(ctx, name, func(db *gorm.DB) error {
		if err := ensureTable(db, table, cols); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
		rows := make([]map[string]any, 0, len(records))
		for _, r := range records {
			row := make(map[string]any, len(cols))
			for _, c := range cols {
				if v, ok := r[c]; ok {
					row[c] = v
				} else {
					row[c] = nil
				}
			}
			rows = append(rows, row)
		}
		return db.Table(table).Create(&rows).Error
	})
}

func ensureTable(db *gorm.DB, table string, cols []string) error {
	m := db.Migrator()
	if !m.HasTable(table) {
		defs := make([]string, len(cols))
		args := make([]any, 0, len(cols)+1)
		args = append(args, clause.Table{Name: table})
		for i, c := range cols {
			defs[i] = "? TEXT"
			args = append(args, clause.Column{Name: c})
		}
		return db.Exec("CREATE TABLE ? ("+strings.Join(defs, ", ")+")", args...).Error
	}
	for _, c := range cols {
		if m.HasColumn(table, c) {
			continue
		}
		if err := db.Exec("ALTER TABLE ? ADD COLUMN ? TEXT", clause.Table{Name: table}, clause.Column{Name: c}).Error; err != nil {
			return err
		}
	}
	return nil
}

// Exists 查询 field = value 的行是否存在；表不存在视为不存在
func (s *SQLStore) Exists(ctx context.Context, name, table, field, value string) (bool, error) {
	if err := validName(table); err != nil {
		return false, err
	}
	var found bool
	err := s.withConn(ctx, name, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(table) {
			return nil
		}
		var n int64
		err := db.Table(table).
			Where(clause.Eq{Column: clause.Column{Name: field}, Value: value}).
			Limit(1).
			Count(&n).Error
		found = n > 0
		return err
	})
	return found, err
}

// DistinctValues 返回 field 列的去重取值，用于批量去重
func (s *SQLStore) DistinctValues(ctx context.Context, name, table, field string) (processor.KeySet, error) {
	if err := validName(table); err != nil {
		return nil, err
	}
	keys := processor.NewKeySet()
	err := s.withConn(ctx, name, func(db *gorm.DB) error {
		if !db.Migrator().HasTable(table) {
			return nil
		}
		var vals []sql.NullString
		if err := db.Table(table).Distinct().Pluck(field, &vals).Error; err != nil {
			return err
		}
		for _, v := range vals {
			if v.Valid {
				keys.Add(v.String)
			}
		}
		return nil
	})
	return keys, err
}

func toText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
