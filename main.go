package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	config "SupportChat/global/config"
	"SupportChat/logger"
	"SupportChat/middleware"
	midsec "SupportChat/middleware/security"
	"SupportChat/module/support/store"
	"SupportChat/service/chat"
	"SupportChat/service/kafka"
	"SupportChat/service/mgo"
	"SupportChat/service/natsx"
	"SupportChat/service/storage"
	redis "SupportChat/service/storage/redis"

	"github.com/gin-gonic/gin"
)

func main() {

	config.ConfigAll()
	defer logger.Sync()

	cfg := config.Global

	// 1) Pick the conversation store. Mongo when reachable, the
	// in-memory store otherwise so a dev box needs no services.
	var convStore chat.ConversationStore
	if mgo.Ready() {
		convStore = store.NewRepo(mgo.GetDB())
	} else {
		logger.Warnf("[main] mongo not ready, using in-memory store")
		convStore = store.NewMemory()
	}

	// 2) Optional side channels.
	var export chat.EventExporter
	if nc, err := natsx.NewClient(natsx.Config{
		Servers: strings.Split(cfg.NatsServers, ","),
		Name:    cfg.NodeID,
	}); err != nil {
		logger.Warnf("[main] nats unavailable: %v", err)
	} else {
		defer nc.Close()
		export = natsx.NewPresenceExporter(nc, "")
	}

	var archive chat.MessageArchiver
	if ar, err := kafka.NewArchiver(kafka.Config{
		Brokers: strings.Split(cfg.KafkaBrokers, ","),
		Topic:   cfg.KafkaTopic,
	}); err != nil {
		logger.Warnf("[main] kafka unavailable: %v", err)
	} else {
		defer func() { _ = ar.Close() }()
		archive = ar
	}

	// 3) Engine.
	mirror := storage.NewMirror(storage.MirrorConfig{NodeID: cfg.NodeID})
	srv := chat.NewServer(chat.Options{
		Heartbeat: chat.MonitorConf{
			Interval: cfg.HeartbeatInterval,
			Deadline: cfg.HeartbeatDeadline,
		},
		HistoryLimit: int64(cfg.HistoryLimit),
		Store:        convStore,
		Mirror:       mirror,
		Archive:      archive,
		Export:       export,
	})
	srv.Start()
	defer srv.Stop()

	g := chat.NewGateway(srv, cfg.SendQueueSize)

	// 4) HTTP + WebSocket.
	r := gin.New()
	r.Use(gin.Recovery())

	var origins []string
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}
	r.GET("/ws", middleware.Origin(origins...), g.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeID})
	})

	api := r.Group("/api", midsec.Middleware(midsec.DefaultOptions(config.GetJwtSecret())))
	api.GET("/online", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"identities": srv.ListOnlineIdentities()})
	})
	api.GET("/online/:identity", func(c *gin.Context) {
		identity := c.Param("identity")
		online := srv.IsOnline(identity)
		if !online {
			// not on this node; the mirror answers for the fleet
			if m, err := mirror.IsOnline(c.Request.Context(), identity); err == nil {
				online = m
			}
		}
		c.JSON(http.StatusOK, gin.H{"identity": identity, "online": online})
	})

	httpSrv := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: r}
	go func() {
		logger.Infof("[HTTP] Listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("[main] shutting down")
	_ = httpSrv.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = mgo.Close(shutdownCtx)
	_ = redis.Close()
}
