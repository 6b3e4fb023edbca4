package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sync.evalgo.org/common"
	"sync.evalgo.org/config"
	"sync.evalgo.org/content"
	"sync.evalgo.org/db"
	"sync.evalgo.org/demo"
	"sync.evalgo.org/engine"
	eveHTTP "sync.evalgo.org/http"
	"sync.evalgo.org/httpapi"
	"sync.evalgo.org/lock"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/server"
	"sync.evalgo.org/tracker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the sync server against the demo Note backend",
	Run:   runServe,
}

// runServe mirrors the teacher's runServer: load configuration, wire
// services, start the Echo server in the background, and wait for
// SIGINT/SIGTERM to shut it down gracefully.
func runServe(cmd *cobra.Command, args []string) {
	dsn := viper.GetString("db")
	if dsn == "" {
		// Fall back to the package config's env-driven defaults
		// (SYNC_DB_DSN etc.) before giving up — --db/--config only
		// cover the viper-bound flag path.
		dsn = config.LoadDatabaseConfig("SYNC_DB").DSN
	}

	fmt.Printf("serve: connecting (dsn=%s, jwt_secret=%s)\n", dsn, common.MaskSecret(viper.GetString("jwt_secret")))

	gdb, err := db.Connect(dsn, db.DefaultPoolConfig())
	if err != nil {
		fatalf("serve: %v", err)
	}

	registry := content.NewRegistry()
	if _, err := registry.Register(&demo.Note{}, "Note", "notes", content.Both); err != nil {
		fatalf("serve: register Note: %v", err)
	}

	if err := db.Migrate(gdb, append(oplog.Models(), &content.ContentType{}, &demo.Note{})...); err != nil {
		fatalf("serve: %v", err)
	}

	var opts []engine.Option
	opts = append(opts, engine.WithRegistry(registry))
	if redisURL := viper.GetString("redis_url"); redisURL != "" {
		mutex, err := lock.NewRedisMutex(context.Background(), lock.Config{RedisURL: redisURL})
		if err != nil {
			fatalf("serve: %v", err)
		}
		opts = append(opts, engine.WithMutex(mutex))
	}

	eng := engine.SetEngine(gdb, opts...)
	if err := tracker.Register(gdb, registry, eng); err != nil {
		fatalf("serve: register tracker: %v", err)
	}
	store := oplog.NewStore(gdb)
	backend := demo.NewBackend(gdb)

	api := &httpapi.API{
		Push: server.Deps{
			DB:       gdb,
			Engine:   eng,
			Store:    store,
			Registry: registry,
			Apply:    backend,
			NodeSecret: func(nodeID string) (string, error) {
				node, err := store.Node(nodeID)
				if err != nil {
					return "", err
				}
				return node.Secret, nil
			},
		},
		Pull: server.PullDeps{
			Store:    store,
			Registry: registry,
			Fetch:    backend,
		},
		Repair: server.RepairDeps{
			Store:    store,
			Registry: registry,
			Fetch:    backend,
		},
		Query: server.QueryDeps{
			Registry: registry,
			Rows:     backend,
		},
		Register:       server.RegisterDeps{Store: store},
		QueryJWTSecret: viper.GetString("jwt_secret"),
		ServiceName:    "sync-engine",
		ServiceVersion: "0.1.0",
	}

	runConfig := eveHTTP.DefaultRunServerConfig("sync-engine", "sync engine", api.ServiceVersion)
	runConfig.Port = viper.GetInt("port")

	if err := eveHTTP.RunServer(runConfig, func(e *echo.Echo) error {
		e.HTTPErrorHandler = eveHTTP.CustomHTTPErrorHandler
		api.Register(e)
		return nil
	}); err != nil {
		fatalf("serve: %v", err)
	}
	if err := engine.DropAll(); err != nil {
		fmt.Fprintf(os.Stderr, "serve: drop engine: %v\n", err)
	}
}
