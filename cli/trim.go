package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sync.evalgo.org/db"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/server"
)

// trimCmd runs the server-side periodic log trim (spec.md §4.11)
// against --db directly; a real deployment runs it as a scheduled job
// alongside serve rather than by hand.
var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "trim the server's operation log once every registered node has acknowledged a pull",
	Run: func(cmd *cobra.Command, args []string) {
		dsn := viper.GetString("db")
		if dsn == "" {
			fatalf("trim: --db is required")
		}

		gdb, err := db.Connect(dsn, db.DefaultPoolConfig())
		if err != nil {
			fatalf("trim: %v", err)
		}
		store := oplog.NewStore(gdb)

		err = server.Trim(server.TrimDeps{
			Store: store,
			Acked: func(nodeID string) (int64, error) {
				node, err := store.Node(nodeID)
				if err != nil {
					return 0, err
				}
				return node.LastAckedVersionID, nil
			},
		})
		if err != nil {
			fatalf("trim: %v", err)
		}
		fmt.Println("trim: done")
	},
}
