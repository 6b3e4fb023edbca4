package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sync.evalgo.org/demo"
	"sync.evalgo.org/oplog"

	"sync.evalgo.org/merge"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "rebuild the local database from the server's full snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		local := openLocal()

		payload, latest, err := newClient().Repair()
		if err != nil {
			fatalf("repair: %v", err)
		}

		err = local.DB.Transaction(func(tx *gorm.DB) error {
			return local.Engine.WithListeningDisabled(func() error {
				backend := demo.NewBackend(tx)
				return merge.Repair(payload, latest, local.Registry, backend, backend, oplog.NewStore(tx))
			})
		})
		if err != nil {
			fatalf("repair: %v", err)
		}

		fmt.Printf("repair: rebuilt local database from snapshot at version %d\n", latest)
	},
}
