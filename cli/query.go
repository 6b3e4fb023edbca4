package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:   "query <model> [col=value ...]",
	Short: "filter one model's rows by equality on known columns",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		model := args[0]
		filter := make(map[string]string, len(args)-1)
		for _, kv := range args[1:] {
			col, val, ok := strings.Cut(kv, "=")
			if !ok {
				fatalf("query: %q is not in col=value form", kv)
			}
			filter[col] = val
		}

		payload, err := newClient().Query(model, filter)
		if err != nil {
			fatalf("query: %v", err)
		}
		out, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Println(string(out))
	},
}
