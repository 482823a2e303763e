package main

import (
	"context"
	"fmt"

	"rbacadmin/internal/models"
	"rbacadmin/internal/services"

	"github.com/spf13/cobra"
)

var purgeDays int

var purgeAuditCmd = &cobra.Command{
	Use:   "purge-audit",
	Short: "Delete audit log entries older than the retention window",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, _ []string) error {
		return runPurgeAudit(ctx, e, cmd, purgeDays)
	}),
}

func runPurgeAudit(ctx context.Context, e *env, cmd *cobra.Command, days int) error {
	if days == 0 {
		days = e.cfg.Audit.RetentionDays
	}
	deleted, err := services.NewAuditLogService(e.db).PurgeOlderThan(ctx, days)
	e.record(ctx, cmd, models.AuditCleanLogs, models.ResourceAudit, 0, map[string]interface{}{
		"days":    days,
		"deleted": deleted,
	}, err)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %d audit entries older than %d days\n", deleted, days)
	return nil
}

func init() {
	purgeAuditCmd.Flags().IntVar(&purgeDays, "days", 0, "Retention in days (defaults to AUDIT_RETENTION_DAYS)")
}
