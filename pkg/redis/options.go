package redis

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// AsynqOptions parses the URL into the connection options used by the task
// queue, the worker and the scheduler. Queue names carry the prefix instead
// of the keys, see PrefixQueue.
func (c *Config) AsynqOptions() (*asynq.RedisClientOpt, error) {
	opt, err := c.Options()
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewAsynqRedisOptions(opt), nil
}

// NewAsynqRedisOptions copies the connection settings of a go-redis client
// into asynq options so that both share one server, database and TLS setup.
func NewAsynqRedisOptions(opt *redis.Options) *asynq.RedisClientOpt {
	return &asynq.RedisClientOpt{
		Network:      opt.Network,
		Addr:         opt.Addr,
		Username:     opt.Username,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.DialTimeout,
		ReadTimeout:  opt.ReadTimeout,
		WriteTimeout: opt.WriteTimeout,
		PoolSize:     opt.PoolSize,
		TLSConfig:    opt.TLSConfig,
	}
}
