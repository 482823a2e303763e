package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/database"
	"rbacadmin/internal/models"
	"rbacadmin/pkg/config"
	"rbacadmin/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const cliUserAgent = "rbacctl"

var (
	commandTimeout time.Duration
	operator       string
)

var rootCmd = &cobra.Command{
	Use:           "rbacctl",
	Short:         "RBAC admin maintenance tool",
	Long:          `Operator commands for users, groups, menu grants and audit retention. Reads the same environment as the server. Every change is written to the audit log under the operator name.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env 命令运行所需的配置、数据库与审计存储
type env struct {
	cfg      *config.Config
	db       *gorm.DB
	store    *audit.GormStore
	operator string
}

func newEnv(cfg *config.Config, db *gorm.DB, operator string) *env {
	return &env{cfg: cfg, db: db, store: audit.NewGormStore(db, nil), operator: operator}
}

func (e *env) close() {
	if err := database.Close(e.db); err != nil {
		logger.GetLogger().Warnf("Failed to close database: %v", err)
	}
}

// record 写入一条命令行操作的审计记录。写入失败只记日志，不影响命令结果
func (e *env) record(ctx context.Context, cmd *cobra.Command, action models.AuditAction, resource models.AuditResource, resourceID uint, details map[string]interface{}, opErr error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	details["source"] = "cli"
	details["command"] = cmd.Name()
	details["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if opErr != nil {
		details["result"] = "failed"
		details["error"] = opErr.Error()
	} else {
		details["result"] = "ok"
	}

	var rid *string
	if resourceID != 0 {
		s := fmt.Sprintf("%d", resourceID)
		rid = &s
	}

	err := e.store.Write(ctx, audit.Event{
		Username:   e.operator,
		Action:     action,
		Resource:   resource,
		ResourceID: rid,
		UserAgent:  cliUserAgent,
		Details:    details,
	})
	if err != nil {
		logger.GetLogger().WithFields(logrus.Fields{
			"action":   action,
			"resource": resource,
		}).WithError(err).Warn("failed to record cli audit event")
	}
}

// openEnv 加载配置、连接数据库并执行迁移
func openEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Initialize(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return newEnv(cfg, db, operator), nil
}

type runFunc func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error

// withEnv 包装需要数据库的命令
func withEnv(run runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.close()

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()
		return run(ctx, e, cmd, args)
	}
}

func defaultOperator() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return cliUserAgent
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&commandTimeout, "timeout", time.Minute, "Timeout for a single command")
	rootCmd.PersistentFlags().StringVar(&operator, "operator", defaultOperator(), "Name recorded as the actor in audit entries")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(initGroupsCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(assignGroupCmd)
	rootCmd.AddCommand(grantMenuCmd)
	rootCmd.AddCommand(checkPermissionCmd)
	rootCmd.AddCommand(purgeAuditCmd)
}
