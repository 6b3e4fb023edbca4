// Package cli implements syncctl, the sync engine's operational CLI: a
// thin wrapper over package client for register/push/pull/repair/query
// against a running server, plus a serve command that stands up the
// Echo server (package httpapi) against the demo Note backend (package
// demo). It follows the teacher's cobra/viper root-command pattern:
// persistent flags bound to viper keys, an optional config file, and
// automatic environment variable overrides.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sync.evalgo.org/client"
)

var cfgFile string

// RootCmd is the syncctl entry point.
var RootCmd = &cobra.Command{
	Use:   "syncctl",
	Short: "operate a sync engine node: register, push, pull, repair, query, trim, serve",
	Long: `syncctl is the operational CLI for the centralized,
occasionally-connected sync engine. It can act as a client against a
running server (register/push/pull/repair/query, plus note to mutate
the local demo Note table) or run the server itself (serve/trim), using
the demo Note backend if no host application schema is wired in.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.syncctl.yaml)")
	RootCmd.PersistentFlags().String("server-url", "http://localhost:8080", "sync server base URL")
	RootCmd.PersistentFlags().String("node-id", "", "this node's id")
	RootCmd.PersistentFlags().String("secret", "", "this node's push-signing secret")
	RootCmd.PersistentFlags().String("db", "", "this node's PostgreSQL connection string (server DB for serve/trim, local DB for pull/repair/push/note)")
	RootCmd.PersistentFlags().String("jwt-secret", "", "JWT secret guarding GET /query (serve only; empty disables the guard)")
	RootCmd.PersistentFlags().String("token", "", "bearer token to attach to /query requests (client commands only)")
	RootCmd.PersistentFlags().Int("port", 8080, "HTTP port (serve only)")
	RootCmd.PersistentFlags().String("redis-url", "", "Redis URL for the listening mutex (serve only; empty means no external serialization)")

	viper.BindPFlag("server_url", RootCmd.PersistentFlags().Lookup("server-url"))
	viper.BindPFlag("node_id", RootCmd.PersistentFlags().Lookup("node-id"))
	viper.BindPFlag("secret", RootCmd.PersistentFlags().Lookup("secret"))
	viper.BindPFlag("db", RootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("jwt_secret", RootCmd.PersistentFlags().Lookup("jwt-secret"))
	viper.BindPFlag("token", RootCmd.PersistentFlags().Lookup("token"))
	viper.BindPFlag("port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("redis_url", RootCmd.PersistentFlags().Lookup("redis-url"))

	RootCmd.AddCommand(registerCmd, pushCmd, pullCmd, repairCmd, queryCmd, noteCmd, trimCmd, serveCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".syncctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// newClient builds a client.Client from the bound flags/config.
func newClient() *client.Client {
	c := client.New(viper.GetString("server_url"), viper.GetString("node_id"), viper.GetString("secret"))
	c.BearerToken = viper.GetString("token")
	return c
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
