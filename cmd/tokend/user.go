package main

import (
	"fmt"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users in the credential store",
	}
	cmd.AddCommand(newUserAddCmd(a), newUserDeleteCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var (
		username string
		plain    string
		rec      = goIssuer.IdentityRecord{PrimaryID: -1, PrimaryGroupID: -1, RoleID: -1}
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rdb := redis.NewClient(redisOptions(a.v))
			defer rdb.Close()

			store, err := a.newStore(rdb)
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), username, plain, rec); err != nil {
				return err
			}
			a.logger.Info().Str("username", username).Msg("user stored")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&username, "username", "", "username")
	f.StringVar(&plain, "password", "", "password")
	f.StringVar(&rec.Email, "email", "", "email claim")
	f.Int64Var(&rec.PrimaryID, "primary-id", -1, "primarySid claim")
	f.Int64Var(&rec.PrimaryGroupID, "group-id", -1, "primaryGroupSid claim")
	f.Int64Var(&rec.RoleID, "role-id", -1, "role claim")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Remove a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb := redis.NewClient(redisOptions(a.v))
			defer rdb.Close()

			store, err := a.newStore(rdb)
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			a.logger.Info().Str("username", args[0]).Msg("user deleted")
			return nil
		},
	}
}
