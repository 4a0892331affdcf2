package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WessleyAI/technews/engine/auth"
)

func (a *app) tokenCmd() *cobra.Command {
	var (
		secret, user, email string
		ttl                 time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if user == "" {
				return fmt.Errorf("--user is required")
			}
			tok, err := auth.NewJWTVerifier(secret).Issue(auth.Identity{UserID: user, Email: email}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, tok)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	f.StringVar(&user, "user", "", "user id (token subject)")
	f.StringVar(&email, "email", "", "email claim")
	f.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
