package mgo

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	mgoOnce sync.Once
	mgoMgr  *Manager
)

type Manager struct {
	client *mongo.Client
	db     *mongo.Database
}

type Config struct {
	URI      string
	Database string
	Timeout  time.Duration // connect/ping timeout, default 5s
}

// Init connects the process-wide Mongo client (singleton) and pings
// the primary so a bad URI fails at boot, not on the first message.
func Init(ctx context.Context, c Config) error {
	var initErr error
	mgoOnce.Do(func() {
		if c.Timeout <= 0 {
			c.Timeout = 5 * time.Second
		}
		cctx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()

		cli, err := mongo.Connect(cctx, options.Client().ApplyURI(c.URI))
		if err != nil {
			initErr = err
			return
		}
		if err := cli.Ping(cctx, readpref.Primary()); err != nil {
			initErr = err
			return
		}
		mgoMgr = &Manager{client: cli, db: cli.Database(c.Database)}
	})
	return initErr
}

// GetDB returns the shared database handle; call Init first.
func GetDB() *mongo.Database {
	if mgoMgr == nil {
		panic("mongo not initialized, call Init first")
	}
	return mgoMgr.db
}

// Ready reports whether Init succeeded.
func Ready() bool { return mgoMgr != nil }

func Close(ctx context.Context) error {
	if mgoMgr == nil {
		return nil
	}
	return mgoMgr.client.Disconnect(ctx)
}
