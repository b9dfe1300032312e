package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"

	"github.com/user/blurt/internal/calendar"
	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/config"
	"github.com/user/blurt/internal/scheduler"
)

// oauthRedirect is where Google sends the browser after consent. Nothing
// listens there; the user copies the code parameter back into setup.
const oauthRedirect = "http://localhost"

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("Blurt Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Store.Driver = prompt(scanner, "Store driver (file, sqlite, postgres)", cfg.Store.Driver)
		if cfg.Store.Driver == "postgres" {
			cfg.Store.DSN = prompt(scanner, "Postgres URL", cfg.Store.DSN)
		}

		tz := prompt(scanner, "Time zone", cfg.Timezone)
		if _, err := clock.Load(tz); err != nil {
			fmt.Println("  ", err, "- keeping", cfg.Timezone)
		} else {
			cfg.Timezone = tz
		}

		schedule := prompt(scanner, "Group sync schedule (cron)", cfg.Sync.Schedule)
		if schedule == "" {
			cfg.Sync.Schedule = ""
		} else if err := scheduler.Validate(schedule); err != nil {
			fmt.Println("  ", err, "- keeping", cfg.Sync.Schedule)
		} else {
			cfg.Sync.Schedule = schedule
		}

		cfg.HTTP.Listen = prompt(scanner, "Webhook listen address", cfg.HTTP.Listen)
		cfg.HTTP.AuthUser = prompt(scanner, "Webhook user", cfg.HTTP.AuthUser)
		if password := prompt(scanner, "Webhook password (empty keeps current)", ""); password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			cfg.HTTP.AuthPasswordHash = string(hash)
		}

		cfg.Manifest.AudioURLPrefix = prompt(scanner, "Audio URL prefix (optional)", cfg.Manifest.AudioURLPrefix)
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)

		cfg.Calendar.ClientID = prompt(scanner, "Google OAuth client id (optional)", cfg.Calendar.ClientID)
		if cfg.Calendar.ClientID != "" {
			cfg.Calendar.ClientSecret = prompt(scanner, "Google OAuth client secret", cfg.Calendar.ClientSecret)
			cfg.Calendar.CalendarID = prompt(scanner, "Calendar id", cfg.Calendar.CalendarID)
			if err := authorizeCalendar(cmd.Context(), scanner, cfg); err != nil {
				fmt.Println("  calendar not authorised:", err)
			} else {
				cfg.Calendar.Enabled = true
			}
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// authorizeCalendar runs the OAuth consent flow and stores the token.
func authorizeCalendar(ctx context.Context, scanner *bufio.Scanner, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	oc := calendar.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret, oauthRedirect)
	url := oc.AuthCodeURL("blurt-setup", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Println()
	fmt.Println("Open this URL, approve access, then paste the code parameter of the page you land on:")
	fmt.Println(url)
	code := prompt(scanner, "Code", "")
	if code == "" {
		return fmt.Errorf("no code entered")
	}
	tok, err := oc.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	return calendar.SaveToken(cfg.TokenFile(), tok)
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
