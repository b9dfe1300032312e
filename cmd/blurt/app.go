package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/blurt/internal/broadcast"
	"github.com/user/blurt/internal/calendar"
	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/config"
	"github.com/user/blurt/internal/conversation"
	"github.com/user/blurt/internal/delivery"
	"github.com/user/blurt/internal/device"
	"github.com/user/blurt/internal/dialog"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/gateway"
	"github.com/user/blurt/internal/manifest"
	"github.com/user/blurt/internal/propagate"
	"github.com/user/blurt/internal/sqlstore"
	"github.com/user/blurt/internal/state"
	"github.com/user/blurt/internal/types"
)

// app holds every component a command may need. Nothing in it runs until
// a command starts it.
type app struct {
	cfg       *config.Config
	clock     *clock.Clock
	docs      types.DocStore
	store     *entity.Store
	sessions  *state.SessionStore
	journal   *state.Journal
	runner    *dialog.Runner
	gateway   *gateway.Gateway
	writer    *propagate.Writer
	sync      *broadcast.Synchronizer
	manifests *manifest.Builder
	publisher *manifest.Publisher
	notices   *delivery.Registry
	devices   *device.Hub
}

func openStore(cfg *config.Config) (types.DocStore, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "", "file":
		return state.NewFileStore(filepath.Join(cfg.DataDir, "store")), nil
	}
	s, err := sqlstore.Open(cfg.Store.Driver, cfg.StoreDSN())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	return s, nil
}

func openCalendar(ctx context.Context, cfg *config.Config, clk *clock.Clock) (calendar.Calendar, error) {
	if !cfg.Calendar.Enabled {
		slog.Warn("calendar disabled, attendance is kept in memory")
		return calendar.NewMemory(clk), nil
	}
	oc := calendar.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret, oauthRedirect)
	client, err := calendar.NewOAuthClient(ctx, oc, cfg.TokenFile())
	if err != nil {
		return nil, fmt.Errorf("calendar auth (run blurt setup): %w", err)
	}
	return calendar.NewGoogle(ctx, client, cfg.Calendar.BaseURL, cfg.Calendar.CalendarID, clk)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	clk, err := clock.Load(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	docs, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	cal, err := openCalendar(ctx, cfg, clk)
	if err != nil {
		docs.Close()
		return nil, err
	}

	var catalog *dialog.Catalog
	if cfg.Dialog.PromptsPath != "" {
		if catalog, err = dialog.Load(cfg.Dialog.PromptsPath); err != nil {
			docs.Close()
			return nil, err
		}
	}

	store := entity.New(docs)
	machine := conversation.NewMachine(&conversation.Deps{
		Store:       store,
		Calendar:    cal,
		Clock:       clk,
		NewSignalID: entity.RandomSignalID,
	})
	runner := dialog.NewRunner(machine, catalog, cfg.Dialog.HopLimit, nil)
	sessions := state.NewSessionStore(cfg.DataDir)
	journal := state.NewJournal(cfg.DataDir)

	a := &app{
		cfg:      cfg,
		clock:    clk,
		docs:     docs,
		store:    store,
		sessions: sessions,
		journal:  journal,
		runner:   runner,
		gateway:  gateway.New(sessions, journal, docs, runner, int64(cfg.MaxConcurrent)),
		sync:     broadcast.New(store, clk, nil),
		notices:  delivery.NewRegistry(),
		devices:  device.NewHub(nil),
	}
	a.writer = propagate.NewWriter(store, propagate.NewController(store, clk, nil))
	a.manifests = manifest.NewBuilder(store, clk, &manifest.AssetNamer{Prefix: cfg.Manifest.AudioURLPrefix})
	a.publisher = manifest.NewPublisher(a.manifests, cfg.ManifestDir(), a.notices, nil)
	return a, nil
}

func (a *app) Close() error {
	return a.docs.Close()
}

// telegramUsers turns the configured chat links into sign-in identities.
func telegramUsers(cfg *config.Config) map[string]types.Identity {
	users := make(map[string]types.Identity, len(cfg.Telegram.Users))
	for id, u := range cfg.Telegram.Users {
		users[id] = types.Identity{Email: u.Email, Name: u.Name, Locale: u.Locale}
	}
	return users
}
