package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register <registry-user-id>",
	Short: "register this node with the server and print its new secret",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		node, err := newClient().Register(args[0])
		if err != nil {
			fatalf("register: %v", err)
		}
		out, _ := json.MarshalIndent(node, "", "  ")
		fmt.Println(string(out))
	},
}
