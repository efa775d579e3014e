package storage

import "fmt"

const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Open 按名称选择存储后端；memory 仅用于试运行，进程退出即丢失
func Open(kind string, sqlCfg SQLConfig, redisAddr string) (Backend, error) {
	switch kind {
	case "", BackendSQL:
		s, err := NewSQLStore(sqlCfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		return NewRedisStore(redisAddr), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", kind)
}
