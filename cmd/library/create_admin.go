package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/example/university-library/internal/application"
	"github.com/example/university-library/internal/config"
	"github.com/example/university-library/internal/ledger"
	"github.com/example/university-library/internal/logging"
	"github.com/example/university-library/internal/persistence"
)

func newCreateAdminCommand() *cobra.Command {
	var (
		name  string
		email string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long:  "Creates an administrator account, prompting for the password on the terminal. Intended for bootstrapping a fresh installation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" {
				return fmt.Errorf("both --name and --email are required")
			}

			password, err := promptPassword()
			if err != nil {
				return err
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx := context.Background()
			storage, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.close()

			if err := storage.migrate(ctx); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}

			hash, err := application.CreatePasswordHash(password, application.DefaultArgon2idParams)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}

			now := time.Now().UTC()
			member := persistence.Member{
				ID:           uuid.NewString(),
				Name:         strings.TrimSpace(name),
				Email:        strings.ToLower(strings.TrimSpace(email)),
				PasswordHash: hash,
				Role:         string(ledger.RoleAdmin),
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := storage.repos.members.CreateMember(ctx, member); err != nil {
				return fmt.Errorf("create administrator: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "administrator %s created with id %s\n", member.Email, member.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name of the administrator")
	cmd.Flags().StringVar(&email, "email", "", "login email of the administrator")
	return cmd
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password prompt requires an interactive terminal")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password confirmation: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
