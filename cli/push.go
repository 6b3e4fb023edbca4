package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sync.evalgo.org/client"
	"sync.evalgo.org/common"
	"sync.evalgo.org/compress"
	"sync.evalgo.org/oplog"
	"sync.evalgo.org/syncmsg"
)

var (
	pushLatestVersionID int64
	pushOpsFile         string
	pushPayloadFile     string
	pushFromLog         bool
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "sign and push operations to the server, from --ops-file or --from-log",
	Run: func(cmd *cobra.Command, args []string) {
		if pushFromLog {
			runPushFromLog(cmd)
			return
		}
		if pushOpsFile == "" {
			fatalf("push: one of --ops-file or --from-log is required")
		}

		opsBytes, err := os.ReadFile(pushOpsFile)
		if err != nil {
			fatalf("push: read %s: %v", pushOpsFile, err)
		}
		var ops []oplog.Operation
		if err := json.Unmarshal(opsBytes, &ops); err != nil {
			fatalf("push: decode %s: %v", pushOpsFile, err)
		}

		payload := syncmsg.NewPayload()
		if pushPayloadFile != "" {
			payloadBytes, err := os.ReadFile(pushPayloadFile)
			if err != nil {
				fatalf("push: read %s: %v", pushPayloadFile, err)
			}
			if err := json.Unmarshal(payloadBytes, payload); err != nil {
				fatalf("push: decode %s: %v", pushPayloadFile, err)
			}
		}

		var latest *int64
		if cmd.Flags().Changed("latest-version-id") {
			latest = common.Ptr(pushLatestVersionID)
		}

		versionID, err := newClient().Push(latest, ops, payload, nil)
		if err != nil {
			if rej, ok := err.(*client.RejectionError); ok && rej.PullSuggested() {
				fatalf("push: rejected, pull first: %v", rej.Reasons)
			}
			fatalf("push: %v", err)
		}
		fmt.Printf("new version: %d\n", versionID)
	},
}

// runPushFromLog pushes whatever is sitting in the local operation log
// instead of a hand-assembled file: compress.InDatabase folds it down to
// its net effect first (spec.md §4.3), matching what a host application
// accumulates via package tracker between pushes. On success the pushed
// operations and the new version id are recorded locally the same way
// server.Push's apply step records them server-side (see
// server/push.go), so the next push or compression pass never sees them
// again.
func runPushFromLog(cmd *cobra.Command) {
	local := openLocal()

	reduced, err := compress.InDatabase(local.Store)
	if err != nil {
		fatalf("push: compress local log: %v", err)
	}
	if len(reduced) == 0 {
		fmt.Println("push: nothing to push")
		return
	}

	payload := syncmsg.NewPayload()
	for _, op := range reduced {
		if op.Command == oplog.Delete {
			continue
		}
		obj, found, err := local.Backend.Fetch(op.ContentTypeID, op.RowID)
		if err != nil {
			fatalf("push: fetch row %d: %v", op.RowID, err)
		}
		if found {
			payload.Add(obj)
		}
	}

	latest, err := local.Store.LatestVersionID()
	if err != nil {
		fatalf("push: read local latest version: %v", err)
	}

	versionID, err := newClient().Push(common.Ptr(latest), reduced, payload, nil)
	if err != nil {
		if rej, ok := err.(*client.RejectionError); ok && rej.PullSuggested() {
			fatalf("push: rejected, pull first: %v", rej.Reasons)
		}
		fatalf("push: %v", err)
	}

	orders := make([]int64, 0, len(reduced))
	for _, op := range reduced {
		orders = append(orders, op.Order)
	}
	nodeID := viper.GetString("node_id")
	if err := local.Store.AppendVersion(&oplog.Version{VersionID: versionID, Created: time.Now(), NodeID: &nodeID}); err != nil {
		fatalf("push: record local version: %v", err)
	}
	if err := local.Store.RelinkToVersion(orders, versionID); err != nil {
		fatalf("push: relink local operations: %v", err)
	}

	fmt.Printf("new version: %d (%d operation(s))\n", versionID, len(reduced))
}

func init() {
	pushCmd.Flags().Int64Var(&pushLatestVersionID, "latest-version-id", 0, "highest version id already applied locally")
	pushCmd.Flags().StringVar(&pushOpsFile, "ops-file", "", "path to a JSON array of operations to push")
	pushCmd.Flags().StringVar(&pushPayloadFile, "payload-file", "", "path to the JSON payload backing non-delete operations")
	pushCmd.Flags().BoolVar(&pushFromLog, "from-log", false, "push the compressed local operation log instead of --ops-file")
}
