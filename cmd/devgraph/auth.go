package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devintel/devgraph/internal/config"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage credentials in the OS keychain",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store GitHub token and LLM API key in the OS keychain",
	RunE:  runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials from the OS keychain",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which credentials are stored",
	RunE:  runAuthStatus,
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		return fmt.Errorf("OS keychain not available (headless system or Linux without libsecret); set GITHUB_TOKEN and LLM_API_KEY instead")
	}

	token, err := promptSecret("GitHub token (blank to skip): ")
	if err != nil {
		return err
	}
	if token != "" {
		if err := km.SetGitHubToken(token); err != nil {
			return err
		}
		fmt.Println("GitHub token saved.")
	}

	apiKey, err := promptSecret("LLM API key (blank to skip): ")
	if err != nil {
		return err
	}
	if apiKey != "" {
		if err := km.SaveAPIKey(apiKey); err != nil {
			return err
		}
		fmt.Println("LLM API key saved.")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if err := km.DeleteGitHubToken(); err != nil {
		return err
	}
	if err := km.DeleteAPIKey(); err != nil {
		return err
	}
	fmt.Println("Credentials removed from keychain.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()
	if !km.IsAvailable() {
		fmt.Println("Keychain: unavailable")
		return nil
	}

	token, _ := km.GetGitHubToken()
	apiKey, _ := km.GetAPIKey()
	fmt.Printf("GitHub token: %s\n", presence(token))
	fmt.Printf("LLM API key:  %s\n", presence(apiKey))
	return nil
}

func presence(secret string) string {
	if secret == "" {
		return "not set"
	}
	return "set"
}

func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	bytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(string(bytes)), nil
}
