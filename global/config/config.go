package config

import (
	"context"
	"os"
	"strconv"
	"time"

	"SupportChat/global"
	"SupportChat/logger"
	"SupportChat/service/mgo"
	redis "SupportChat/service/storage/redis"
	ids "SupportChat/tools/ids"
)

var Global = global.AppConfig{
	NodeID:  "gateway_1", // 节点ID
	Port:    8080,
	NodeNum: 100,

	HeartbeatInterval: 25 * time.Second,
	HeartbeatDeadline: 10 * time.Second,
	SendQueueSize:     256,
	HistoryLimit:      50,

	RedisAddr:     "127.0.0.1:6379",
	RedisPassword: "",
	RedisDB:       0,

	MongoURI:      "mongodb://localhost:27017",
	MongoDatabase: "supportChat",

	NatsServers:  "nats://127.0.0.1:4222",
	KafkaBrokers: "127.0.0.1:9092",
	KafkaTopic:   "support_message_archive",

	JWTSecret: "mN9b1f8zPq+W2xjX/45sKcVd0TfyoG+3Hp5Z8q9Rj1o=",
}

// ConfigAll loads env overrides and brings up the shared clients.
// Redis and Mongo failures are logged, not fatal: the engine runs
// without the mirror and the dashboard, message persistence falls
// back to whatever store main wires in.
func ConfigAll() {
	loadEnv()
	ConfigIds()
	ConfigRedis()
	ConfigMgo()
}

func ConfigIds() {
	ids.SetNodeID(Global.NodeNum)
}

func GetJwtSecret() []byte {
	return []byte(Global.JWTSecret)
}

func ConfigRedis() {
	err := redis.Init(redis.Config{
		Addr:     Global.RedisAddr,
		Password: Global.RedisPassword,
		DB:       Global.RedisDB,
	})
	if err != nil {
		logger.Warnf("[config] redis unavailable at %s: %v", Global.RedisAddr, err)
	}
}

func ConfigMgo() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := mgo.Init(ctx, mgo.Config{
		URI:      Global.MongoURI,
		Database: Global.MongoDatabase,
	})
	if err != nil {
		logger.Warnf("[config] mongo unavailable at %s: %v", Global.MongoURI, err)
	}
}

func loadEnv() {
	setStr(&Global.NodeID, "SC_NODE_ID")
	setInt(&Global.Port, "SC_PORT")
	setStr(&Global.AllowedOrigins, "SC_ALLOWED_ORIGINS")
	setStr(&Global.RedisAddr, "SC_REDIS_ADDR")
	setStr(&Global.RedisPassword, "SC_REDIS_PASSWORD")
	setInt(&Global.RedisDB, "SC_REDIS_DB")
	setStr(&Global.MongoURI, "SC_MONGO_URI")
	setStr(&Global.MongoDatabase, "SC_MONGO_DB")
	setStr(&Global.NatsServers, "SC_NATS_SERVERS")
	setStr(&Global.KafkaBrokers, "SC_KAFKA_BROKERS")
	setStr(&Global.KafkaTopic, "SC_KAFKA_TOPIC")
	setStr(&Global.JWTSecret, "SC_JWT_SECRET")
	setDur(&Global.HeartbeatInterval, "SC_HEARTBEAT_INTERVAL")
	setDur(&Global.HeartbeatDeadline, "SC_HEARTBEAT_DEADLINE")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDur(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
