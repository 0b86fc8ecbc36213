package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"construction-safety-assistant/internal/config"
	"construction-safety-assistant/utils"

	"github.com/spf13/cobra"
)

var (
	subject string
	ttl     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "admintoken",
	Short: "Mint an admin bearer token for the /admin and /gpu endpoints",
	Long: `Signs a short-lived admin JWT with CW_ADMIN_JWT_SECRET. Pass it as
"Authorization: Bearer <token>" when calling admin routes.`,
	SilenceUsage: true,
	RunE:         runAdminToken,
}

func init() {
	rootCmd.Flags().StringVar(&subject, "subject", "operator", "who the token is issued to")
	rootCmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
}

func runAdminToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.AdminJWTSecret == "" {
		return errors.New("CW_ADMIN_JWT_SECRET is not set; admin routes are open")
	}
	if ttl <= 0 {
		return errors.New("--ttl must be positive")
	}

	token, err := utils.GenerateJWT(subject, utils.RoleAdmin, cfg.AdminJWTSecret, ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	cmd.Println(token)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
