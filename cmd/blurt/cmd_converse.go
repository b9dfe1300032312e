package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/types"
)

func init() {
	rootCmd.AddCommand(converseCmd)
	converseCmd.Flags().String("email", "", "sign in as this email when asked")
	converseCmd.Flags().String("name", "", "display name for sign-in")
	converseCmd.Flags().String("locale", "en-US", "locale for sign-in")
	converseCmd.Flags().String("session", "local", "session name")
}

var converseCmd = &cobra.Command{
	Use:   "converse",
	Short: "Talk to the dialogue machine from the terminal",
	Long:  "Talk to the dialogue machine from the terminal. Lines are matched against the prompt catalog, /quit exits.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		a.gateway.Start(ctx)
		defer a.gateway.Stop()

		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		locale, _ := cmd.Flags().GetString("locale")
		session, _ := cmd.Flags().GetString("session")

		c := &console{
			gateway: a.gateway,
			key:     types.NewSessionKey("cli", session),
		}
		if email != "" {
			c.account = &types.Identity{Email: email, Name: name, Locale: locale}
		}
		return c.run(ctx, bufio.NewScanner(os.Stdin))
	},
}

type console struct {
	gateway  *gateway.Gateway
	key      types.SessionKey
	account  *types.Identity
	signedIn bool
}

func (c *console) run(ctx context.Context, in *bufio.Scanner) error {
	if err := c.say(ctx, dialog.Request{Event: conversation.EventWelcome}); err != nil {
		return err
	}
	for {
		fmt.Print("> ")
		if !in.Scan() {
			fmt.Println()
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		}
		if err := c.say(ctx, dialog.Request{Text: line}); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

func (c *console) say(ctx context.Context, req dialog.Request) error {
	if c.signedIn {
		req.Identity = c.account
	}
	res, err := c.turn(ctx, req)
	if err != nil {
		return err
	}
	if res.Response.Kind == conversation.OutcomeSignIn {
		if c.account == nil {
			fmt.Printf("%s (sign-in needed: restart with --email)\n", res.Response.Reply.Text())
			return nil
		}
		res, err = c.turn(ctx, dialog.Request{
			Event:    conversation.EventSignedIn,
			Identity: c.account,
			SignIn:   &conversation.SignInResult{Status: "OK"},
		})
		if err != nil {
			return err
		}
		c.signedIn = true
	}
	fmt.Println(res.Response.Reply.Text())
	if res.Response.Kind == conversation.OutcomeClose {
		fmt.Println("(conversation closed)")
	}
	return nil
}

func (c *console) turn(ctx context.Context, req dialog.Request) (*gateway.Result, error) {
	return c.gateway.HandleInbound(ctx, &gateway.Inbound{
		SessionKey: c.key,
		Source:     "cli",
		Request:    req,
	})
}
