package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sengage/internal/platform"
)

var loginPlatform string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a platform and persist the session",
	Long: `Prompts for credentials, performs the platform login, and persists the
session so later discover/engage runs can reuse it.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVar(&loginPlatform, "platform", "instagram", "Platform to log in to")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	adapter, err := platform.New(platform.Platform(loginPlatform), cfg.Platforms[loginPlatform], logger)
	if err != nil {
		return fmt.Errorf("failed to initialize adapter: %w", err)
	}
	defer adapter.Close()

	fmt.Print("Username: ")
	reader := bufio.NewReader(os.Stdin)
	username, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	fmt.Print("Password: ")
	passBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := platform.Credentials{
		Username: strings.TrimSpace(username),
		Password: string(passBytes),
	}
	if err := adapter.Login(ctx, creds); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Println("Logged in successfully.")
	return nil
}
