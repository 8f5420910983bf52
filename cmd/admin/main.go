// Package main is the operator CLI: schema migration, role seeding,
// bootstrap admin accounts and dead-letter inspection.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/roles"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
	"github.com/learnhub/backend/pkg/utils"
)

var defaultRoles = []string{models.RoleAdmin, models.RoleMentor, models.RoleStudent, models.RoleWriter}

func main() {
	logger := newLogger()
	defer logger.Sync()

	if err := newRootCmd(logger).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "learnhub-admin",
		Short:        "Operator commands for the learnhub backend",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(logger), newSeedRolesCmd(logger), newCreateAdminCmd(logger), newDeadLettersCmd(logger))
	return root
}

func newMigrateCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), logger, func(ctx context.Context, pool *pgxpool.Pool) error {
				return database.Migrate(ctx, pool, logger)
			})
		},
	}
}

func newSeedRolesCmd(logger *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-roles",
		Short: "Create the built-in roles if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPool(cmd.Context(), logger, func(ctx context.Context, pool *pgxpool.Pool) error {
				n, err := roles.Seed(ctx, pool, defaultRoles...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "roles created: %d\n", n)
				return nil
			})
		},
	}
}

func newCreateAdminCmd(logger *zap.Logger) *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account; the password is read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			hash, err := utils.HashPassword(password)
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), logger, func(ctx context.Context, pool *pgxpool.Pool) error {
				if _, err := roles.Seed(ctx, pool, models.RoleAdmin); err != nil {
					return err
				}
				u, err := auth.InsertUser(ctx, pool, auth.NewUser{
					Email:        email,
					PasswordHash: hash,
					FullName:     strings.TrimSpace(name),
					Role:         models.RoleAdmin,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin created: %s (%s)\n", u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&name, "name", "Administrator", "admin full name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newDeadLettersCmd(logger *zap.Logger) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List jobs parked in the dead-letter queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			rdb, err := redis.NewClient(ctx, redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			}, logger)
			if err != nil {
				return err
			}
			defer rdb.Close()
			return printDeadLetters(ctx, cmd.OutOrStdout(), queue.NewQueue(rdb.Client, logger), limit)
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 50, "maximum number of jobs to list")
	return cmd
}

type deadLetterSource interface {
	DeadLetters(ctx context.Context, n int64) ([]string, error)
}

func printDeadLetters(ctx context.Context, w io.Writer, src deadLetterSource, limit int64) error {
	raw, err := src.DeadLetters(ctx, limit)
	if err != nil {
		return fmt.Errorf("read dead letters: %w", err)
	}
	for _, entry := range raw {
		job, err := queue.DecodeJob(entry)
		if err != nil {
			fmt.Fprintf(w, "unreadable\t%s\n", entry)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\tattempt=%d\t%s\t%s\n",
			job.ID, job.Type, job.Attempt, job.CreatedAt.Format(time.RFC3339), job.Payload)
	}
	fmt.Fprintf(w, "dead letters: %d\n", len(raw))
	return nil
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	var password string
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = string(b)
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	return password, nil
}

func withPool(ctx context.Context, logger *zap.Logger, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), 2, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
