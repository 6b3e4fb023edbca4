package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"sync.evalgo.org/demo"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/tracker"
)

// noteCmd is the demo host application's own CUD surface: plain GORM
// writes against demo.Note, tracked into the operation log by package
// tracker's callbacks rather than anything bespoke to these commands.
// A real host application wires tracker.Register the same way openLocal
// does and gets the same tracking for its own models.
var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "create, update, or delete a row in the local demo Note table",
}

var (
	noteTitle string
	noteBody  string
)

var noteCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "insert a note and record it in the local operation log",
	Run: func(cmd *cobra.Command, args []string) {
		local := openLocal()
		n := &demo.Note{Title: noteTitle, Body: noteBody}

		runTracked(local, func(tx *gorm.DB) error {
			return tx.Create(n).Error
		})

		fmt.Printf("note: created id=%d\n", n.ID)
	},
}

var noteUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "update a note's title/body and record it in the local operation log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseRowID(args[0])
		local := openLocal()

		runTracked(local, func(tx *gorm.DB) error {
			return tx.Model(&demo.Note{}).Where("id = ?", id).Updates(map[string]interface{}{
				"title": noteTitle,
				"body":  noteBody,
			}).Error
		})

		fmt.Printf("note: updated id=%d\n", id)
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "delete a note and record it in the local operation log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseRowID(args[0])
		local := openLocal()

		runTracked(local, func(tx *gorm.DB) error {
			return tx.Where("id = ?", id).Delete(&demo.Note{}).Error
		})

		fmt.Printf("note: deleted id=%d\n", id)
	},
}

func parseRowID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fatalf("note: %q is not a row id", s)
	}
	return id
}

// runTracked runs fn inside a transaction with a fresh, non-internal
// tracker session attached to its context, draining the session's
// queue into the local operation log on success and discarding it on
// failure — the commit/rollback halves package tracker's doc comment
// describes.
func runTracked(local *localState, fn func(tx *gorm.DB) error) {
	session := tracker.NewSession(false)
	ctx := tracker.WithSession(context.Background(), session)

	err := local.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		return session.Drain(oplog.NewStore(tx))
	})
	if err != nil {
		session.Discard()
		fatalf("note: %v", err)
	}
}

func init() {
	noteCreateCmd.Flags().StringVar(&noteTitle, "title", "", "note title")
	noteCreateCmd.Flags().StringVar(&noteBody, "body", "", "note body")
	noteUpdateCmd.Flags().StringVar(&noteTitle, "title", "", "note title")
	noteUpdateCmd.Flags().StringVar(&noteBody, "body", "", "note body")

	noteCmd.AddCommand(noteCreateCmd, noteUpdateCmd, noteDeleteCmd)
}
