package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/MrEthical07/goIssuer/password"
	"github.com/spf13/cobra"
)

func newHashPasswordCmd(a *app) *cobra.Command {
	var plaintext string

	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the argon2id hash of a password",
		Long:  "hash-password reads --password or, when absent, the first line of stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if plaintext == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading password from stdin: %w", err)
				}
				plaintext = strings.TrimRight(line, "\r\n")
			}

			hasher, err := password.NewHasher(password.DefaultConfig())
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(plaintext)
			if err != nil {
				return err
			}
			a.logger.Debug().Msg("password hashed")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().StringVar(&plaintext, "password", "", "password to hash")
	return cmd
}
