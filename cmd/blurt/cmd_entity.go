package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/blurt/internal/types"
)

func init() {
	rootCmd.AddCommand(entityCmd)
	entityCmd.AddCommand(entityPutCmd, entityDeleteCmd)
}

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Write events, announcements and groups through the write triggers",
}

func readDoc(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

var entityPutCmd = &cobra.Command{
	Use:   "put <event|announcement|group> <id> <file|->",
	Short: "Create or replace a document",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := context.Background()

		data, err := readDoc(args[2])
		if err != nil {
			return fmt.Errorf("read document: %w", err)
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var out any
		if args[0] == "group" || args[0] == "groups" {
			var g types.Group
			if err := json.Unmarshal(data, &g); err != nil {
				return fmt.Errorf("parse group: %w", err)
			}
			g.ID = args[1]
			if err := a.writer.PutGroup(ctx, &g); err != nil {
				return err
			}
			out = &g
		} else {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			var item types.Item
			if err := json.Unmarshal(data, &item); err != nil {
				return fmt.Errorf("parse %s: %w", kind, err)
			}
			item.ID = args[1]
			if err := a.writer.PutItem(ctx, kind, &item); err != nil {
				return err
			}
			out = &item
		}
		return printJSON(out)
	},
}

var entityDeleteCmd = &cobra.Command{
	Use:   "delete <event|announcement|group> <id>",
	Short: "Delete a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx := context.Background()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if args[0] == "group" || args[0] == "groups" {
			err = a.writer.DeleteGroup(ctx, args[1])
		} else {
			kind, perr := types.ParseKind(args[0])
			if perr != nil {
				return perr
			}
			err = a.writer.DeleteItem(ctx, kind, args[1])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Deleted %s %s.\n", args[0], args[1])
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
