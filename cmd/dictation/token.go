package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/dictation/auth"
)

// newTokenCmd issues a bearer token for local testing. It needs only the
// auth section, so no components are started.
func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token USERNAME",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configFile, opts.envFile)
			if err != nil {
				return err
			}
			verifier, err := auth.NewJWTVerifier(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := verifier.Issue(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
