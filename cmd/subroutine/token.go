package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	tokens "github.com/artpar/subroutine/adapters/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Long: `Issue a bearer token naming a user as the current user.

The token is signed with auth.token_secret and lasts auth.token_ttl.
Send it as "Authorization: Bearer <token>" to POST /ops/{name}.

Examples:
  subroutine token 1
  subroutine token 7 --type AdminUser`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

var (
	tokenUserType string
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenUserType, "type", "", "user type claim (default: auth.user_type)")
}

func runToken(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret must be set to issue tokens the server accepts")
	}

	userType := tokenUserType
	if userType == "" {
		userType = cfg.Auth.UserType
	}

	ts := tokens.NewTokenService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)
	token, exp, err := ts.GenerateToken(id, userType)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, token)
	fmt.Fprintf(out, "# expires %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	return nil
}
