package cli

import (
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"sync.evalgo.org/config"
	"sync.evalgo.org/content"
	"sync.evalgo.org/db"
	"sync.evalgo.org/demo"
	"sync.evalgo.org/engine"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/tracker"
)

// localState is this node's own half of a sync: its database, content
// registry, engine, and operation log, wired the same way serve wires
// the server's. pull/repair/push/note all operate against it rather
// than the remote server, which they only ever reach through newClient.
type localState struct {
	DB       *gorm.DB
	Engine   *engine.Engine
	Store    *oplog.Store
	Registry *content.Registry
	Backend  *demo.Backend
}

// openLocal connects to --db (falling back to the SYNC_DB_* environment
// defaults, same as serve), migrates the sync tables plus the demo Note
// schema, installs the process-wide engine, and registers tracker hooks
// so direct mutations against Backend's *gorm.DB are recorded into the
// operation log. A host application wiring its own schema in place of
// package demo would do the same three calls against its own models.
func openLocal() *localState {
	dsn := viper.GetString("db")
	if dsn == "" {
		dsn = config.LoadDatabaseConfig("SYNC_DB").DSN
	}

	gdb, err := db.Connect(dsn, db.DefaultPoolConfig())
	if err != nil {
		fatalf("local database: %v", err)
	}

	registry := content.NewRegistry()
	if _, err := registry.Register(&demo.Note{}, "Note", "notes", content.Both); err != nil {
		fatalf("local database: register Note: %v", err)
	}
	if err := db.Migrate(gdb, append(oplog.Models(), &content.ContentType{}, &demo.Note{})...); err != nil {
		fatalf("local database: %v", err)
	}

	eng := engine.SetEngine(gdb, engine.WithRegistry(registry))
	if err := tracker.Register(gdb, registry, eng); err != nil {
		fatalf("local database: register tracker: %v", err)
	}

	return &localState{
		DB:       gdb,
		Engine:   eng,
		Store:    oplog.NewStore(gdb),
		Registry: registry,
		Backend:  demo.NewBackend(gdb),
	}
}
