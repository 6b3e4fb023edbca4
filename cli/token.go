package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sync.evalgo.org/auth"
)

var tokenRoles string
var tokenExpiration time.Duration

// tokenCmd mints a query-guard JWT for a registry user, signed with
// --jwt-secret. Operators hand the access token to a node so its
// GET /query calls pass the echo-jwt middleware serve installs when
// QueryJWTSecret is set.
var tokenCmd = &cobra.Command{
	Use:   "token <registry-user-id>",
	Short: "mint a JWT for GET /query, signed with --jwt-secret",
	Args:  cobra.ExactArgs(1),
	Run:   runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenRoles, "roles", auth.RoleUser, "comma-separated roles to embed in the token claims")
	tokenCmd.Flags().DurationVar(&tokenExpiration, "expiration", 24*time.Hour, "access token lifetime")
	RootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) {
	secret := viper.GetString("jwt_secret")
	if secret == "" {
		fatalf("token: --jwt-secret is required")
	}

	user := &auth.RegistryUser{ID: args[0], Username: args[0], Roles: strings.Split(tokenRoles, ",")}
	svc := auth.NewTokenService(secret, tokenExpiration, 7*24*time.Hour)

	pair, err := svc.GenerateTokenPair(user)
	if err != nil {
		fatalf("token: %v", err)
	}

	out, err := json.MarshalIndent(pair, "", "  ")
	if err != nil {
		fatalf("token: %v", err)
	}
	fmt.Println(string(out))
}
