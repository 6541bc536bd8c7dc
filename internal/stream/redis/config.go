package redis

const (
	DefaultStream       = "tlm-prompts"
	DefaultResultStream = "tlm-results"
	DefaultGroup        = "tlm-group"
)

type RedisStreamConfig struct {
	RedisAddr     string
	RedisPassword string
	Stream        string
	ResultStream  string
	Group         string
	ConsumerName  string
}

// NewRedisStreamConfig fills empty stream names with the defaults.
func NewRedisStreamConfig(redisAddr string, redisPassword string, stream string, resultStream string, group string, consumerName string) *RedisStreamConfig {
	if stream == "" {
		stream = DefaultStream
	}
	if resultStream == "" {
		resultStream = DefaultResultStream
	}
	if group == "" {
		group = DefaultGroup
	}
	if consumerName == "" {
		consumerName = "tlm-consumer"
	}

	return &RedisStreamConfig{
		RedisAddr:     redisAddr,
		RedisPassword: redisPassword,
		Stream:        stream,
		ResultStream:  resultStream,
		Group:         group,
		ConsumerName:  consumerName,
	}
}
