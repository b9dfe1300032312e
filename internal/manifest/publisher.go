package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/user/blurt/internal/delivery"
)

// Notifier is told each time a manifest is republished.
type Notifier interface {
	Notify(ctx context.Context, n delivery.Notice) error
}

// Status is the device busy marker written next to each manifest.
type Status struct {
	Status bool `json:"status"`
}

// Publisher writes manifests under dir/notifiers and notifies devices.
type Publisher struct {
	builder  *Builder
	dir      string
	notifier Notifier
	logger   *slog.Logger
}

// NewPublisher creates a Publisher. notifier may be nil.
func NewPublisher(builder *Builder, dir string, notifier Notifier, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{builder: builder, dir: dir, notifier: notifier, logger: logger}
}

// Path returns where the manifest for signalID is written.
func (p *Publisher) Path(signalID string) string {
	return filepath.Join(p.dir, "notifiers", signalID+".json")
}

// StatusPath returns where the status marker for signalID is written.
func (p *Publisher) StatusPath(signalID string) string {
	return filepath.Join(p.dir, "notifiers", signalID+"-status.json")
}

// Publish rebuilds and writes the manifest of userID, then notifies. A
// notifier failure is logged; the written files stand.
func (p *Publisher) Publish(ctx context.Context, userID string) (*Manifest, error) {
	m, err := p.builder.Build(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(p.Path(m.SignalID), m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := writeJSON(p.StatusPath(m.SignalID), Status{Status: m.IsFromSheets}); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	p.logger.Info("manifest published", "user_id", userID, "signal_id", m.SignalID, "entries", len(m.Results))

	if p.notifier != nil {
		n := delivery.Notice{
			Kind:     delivery.KindManifestUpdated,
			UserID:   m.UserID,
			SignalID: m.SignalID,
			Count:    len(m.Results),
			Path:     "notifiers/" + m.SignalID + ".json",
		}
		if err := p.notifier.Notify(ctx, n); err != nil {
			p.logger.Warn("manifest notify failed", "user_id", userID, "error", err)
		}
	}
	return m, nil
}

// writeJSON writes v to path via a temp file and rename.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
