package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/todo-crud/internal/application"
	"github.com/example/todo-crud/internal/persistence/sqlite"
)

func newUserCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var params application.RegisterParams
	add := &cobra.Command{
		Use:   "add",
		Short: "Register an account",
		Long:  `Register an account. This is the only way to create administrators.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := a.openStore(ctx, true)
			if err != nil {
				return err
			}
			defer a.closeStore(pool)

			users := newUserStoreAdapter(sqlite.NewUserRepository(pool))
			service := application.NewUserService(users, a.hashParams, time.Now, a.logger)
			user, err := service.Register(ctx, params)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> admin=%t\n", user.ID, user.Email, user.IsAdmin)
			return nil
		},
	}
	add.Flags().StringVar(&params.Email, "email", "", "account email")
	add.Flags().StringVar(&params.DisplayName, "name", "", "display name")
	add.Flags().StringVar(&params.Password, "password", "", "initial password")
	add.Flags().BoolVar(&params.IsAdmin, "admin", false, "grant administrator rights")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("password")

	cmd.AddCommand(add)
	return cmd
}
