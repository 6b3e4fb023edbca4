// Command syncctl is the installable entry point for package cli
// (`go install sync.evalgo.org/cmd/syncctl`).
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
