package main

import (
	"context"
	"fmt"

	"rbacadmin/internal/models"
	"rbacadmin/internal/services"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create default groups, menus and the bootstrap admin",
	Long:  `Idempotently creates the default groups and menus, grants the admin group every menu and creates the admin account from the ADMIN_* settings.`,
	Args:  cobra.NoArgs,
	RunE:  withEnv(runSeed),
}

func runSeed(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
	b := e.cfg.Bootstrap
	err := services.NewBootstrapper(e.db).Seed(ctx, services.AdminAccount{
		Username: b.AdminUsername,
		Password: b.AdminPassword,
		Email:    b.AdminEmail,
		FullName: b.AdminFullName,
	})
	e.record(ctx, cmd, models.AuditCreate, models.ResourceGroups, 0, map[string]interface{}{
		"adminUsername": b.AdminUsername,
	}, err)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "seed data ready")
	return nil
}

var initGroupsCmd = &cobra.Command{
	Use:   "init-groups",
	Short: "Create the default admin, checker and maker groups",
	Args:  cobra.NoArgs,
	RunE:  withEnv(runInitGroups),
}

func runInitGroups(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
	err := services.NewBootstrapper(e.db).InitGroups(ctx)
	e.record(ctx, cmd, models.AuditCreate, models.ResourceGroups, 0, nil, err)
	if err != nil {
		return err
	}
	for _, g := range services.DefaultGroups {
		fmt.Fprintf(cmd.OutOrStdout(), "group %s ready\n", g.Name)
	}
	return nil
}
