package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/lead-tracker/internal/config"
	"github.com/jonathan/lead-tracker/internal/server"
)

var tokenUser string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token",
	Long:  `Sign a bearer token for the REST API with JWT_SECRET. Defaults to the configured user_id.`,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User ID to issue the token for")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	userStr := tokenUser
	if userStr == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		userStr = cfg.UserID
	}
	userID, err := uuid.Parse(userStr)
	if err != nil {
		return fmt.Errorf("a user UUID is required (--user or user_id): %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}
	token, err := server.NewJWTService(jwtConfig).GenerateToken(userID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}
