package main

import (
	"context"
	"fmt"

	"rbacadmin/internal/models"
	"rbacadmin/internal/services"

	"github.com/spf13/cobra"
)

type createUserOptions struct {
	username string
	password string
	email    string
	fullName string
	admin    bool
	groups   []string
}

var createUserOpts createUserOptions

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a user account",
	Example: `  rbacctl create-user --username alice --password 's3cret!' --email alice@example.com \
    --full-name "Alice Chen" --group maker`,
	Args: cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
		return runCreateUser(ctx, e, cmd, createUserOpts)
	}),
}

func runCreateUser(ctx context.Context, e *env, cmd *cobra.Command, o createUserOptions) error {
	groups := services.NewGroupService(e.db)

	groupIDs := make([]uint, 0, len(o.groups))
	for _, name := range o.groups {
		g, err := groups.GetByName(ctx, name)
		if err != nil {
			return fmt.Errorf("group %q: %w", name, err)
		}
		groupIDs = append(groupIDs, g.ID)
	}

	user, err := services.NewUserService(e.db).Create(ctx, services.CreateUserRequest{
		Username: o.username,
		Password: o.password,
		FullName: o.fullName,
		Email:    o.email,
		IsAdmin:  o.admin,
		GroupIDs: groupIDs,
	})
	var userID uint
	if user != nil {
		userID = user.ID
	}
	e.record(ctx, cmd, models.AuditCreate, models.ResourceUser, userID, map[string]interface{}{
		"username": o.username,
		"email":    o.email,
		"isAdmin":  o.admin,
		"groupIds": groupIDs,
	}, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id=%d)\n", user.Username, user.ID)
	return nil
}

var assignGroupCmd = &cobra.Command{
	Use:     "assign-group <username> <group>",
	Short:   "Add a user to a group",
	Example: "  rbacctl assign-group alice checker",
	Args:    cobra.ExactArgs(2),
	RunE:    withEnv(runAssignGroup),
}

func runAssignGroup(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
	user, err := services.NewUserService(e.db).GetByUsername(ctx, args[0])
	if err != nil {
		return err
	}
	groups := services.NewGroupService(e.db)
	group, err := groups.GetByName(ctx, args[1])
	if err != nil {
		return err
	}
	err = groups.AddMember(ctx, group.ID, user.ID)
	e.record(ctx, cmd, models.AuditAddUserToGroup, models.ResourceGroup, group.ID, map[string]interface{}{
		"userId":   user.ID,
		"username": user.Username,
	}, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %s added to group %s\n", user.Username, group.Name)
	return nil
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&createUserOpts.username, "username", "", "Login name")
	f.StringVar(&createUserOpts.password, "password", "", "Initial password")
	f.StringVar(&createUserOpts.email, "email", "", "Email address")
	f.StringVar(&createUserOpts.fullName, "full-name", "", "Display name")
	f.BoolVar(&createUserOpts.admin, "admin", false, "Grant the administrator flag")
	f.StringSliceVar(&createUserOpts.groups, "group", nil, "Group name to join (repeatable)")
	for _, name := range []string{"username", "password", "email", "full-name"} {
		_ = createUserCmd.MarkFlagRequired(name)
	}
}
