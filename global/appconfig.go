package global

import "time"

type AppConfig struct {
	NodeID  string // 节点ID, owner tag for the presence mirror
	Port    int    // http 启动端口
	NodeNum int64  // snowflake node number

	AllowedOrigins string // comma separated; empty allows every origin

	HeartbeatInterval time.Duration // probe cadence
	HeartbeatDeadline time.Duration // ack deadline after a probe
	SendQueueSize     int           // per connection outbound buffer
	HistoryLimit      int           // messages replayed on reconnect

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	MongoURI      string
	MongoDatabase string

	NatsServers  string
	KafkaBrokers string
	KafkaTopic   string

	JWTSecret string
}
