package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sync.evalgo.org/common"
	"sync.evalgo.org/demo"
	"sync.evalgo.org/engine"
	"sync.evalgo.org/merge"
	"sync.evalgo.org/oplog"
)

var pullLatestVersionID int64

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "pull every version after the local log's latest version and merge it in",
	Run: func(cmd *cobra.Command, args []string) {
		local := openLocal()

		latest, err := local.Store.LatestVersionID()
		if err != nil {
			fatalf("pull: read local latest version: %v", err)
		}
		if cmd.Flags().Changed("latest-version-id") {
			latest = pullLatestVersionID
		}

		pending, err := local.Store.Unversioned()
		if err != nil {
			fatalf("pull: read local log: %v", err)
		}

		msg, err := newClient().Pull(common.Ptr(latest), pending)
		if err != nil {
			fatalf("pull: %v", err)
		}

		// Merge runs inside one transaction with tracker listening
		// disabled and foreign keys relaxed, the same guard server.Push
		// wraps its own apply step in (see server/push.go), so Apply's
		// row mutations are never re-tracked as new local operations.
		err = local.DB.Transaction(func(tx *gorm.DB) error {
			return local.Engine.WithListeningDisabled(func() error {
				return engine.WithForeignKeysRelaxed(tx, func(tx *gorm.DB) error {
					deps := merge.Deps{
						Store:    oplog.NewStore(tx),
						Registry: local.Registry,
						Apply:    demo.NewBackend(tx),
					}
					return merge.Merge(msg, deps)
				})
			})
		})
		if err != nil {
			fatalf("pull: merge: %v", err)
		}

		fmt.Printf("pull: merged %d version(s), %d operation(s)\n", len(msg.Versions), len(msg.Operations))
	},
}

func init() {
	pullCmd.Flags().Int64Var(&pullLatestVersionID, "latest-version-id", 0, "override the local log's latest applied version id")
}
