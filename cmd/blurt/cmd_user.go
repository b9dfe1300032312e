package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userShowCmd, userManifestCmd)
	userManifestCmd.Flags().Bool("publish", false, "write the manifest files and notify devices")
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Inspect users",
}

var userShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Print a user document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := context.Background()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.store.User(ctx, args[0])
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("user not found: %s", args[0])
		}
		return printJSON(u)
	},
}

var userManifestCmd = &cobra.Command{
	Use:   "manifest <user-id>",
	Short: "Build a user's notification manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := context.Background()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		publish, _ := cmd.Flags().GetBool("publish")
		if !publish {
			m, err := a.manifests.Build(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(m)
		}
		m, err := a.publisher.Publish(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Published %d entries to %s\n", len(m.Results), a.publisher.Path(m.SignalID))
		return nil
	},
}
