// Command syncctl operates a sync engine node: register, push, pull,
// repair, and query against a running server, or run the server itself.
// See package cli for the command tree.
package main

import (
	"log"

	"sync.evalgo.org/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
