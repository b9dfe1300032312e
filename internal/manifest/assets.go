package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/types"
)

// AssetNamer derives the audio URLs a device plays for a user. The files are
// produced out of band as <prefix>/<signal_id>-<kind>.mp3.
type AssetNamer struct {
	Prefix string
}

// URL returns the address of the kind ("event", "announcement" or
// "schedule") recording for signalID.
func (a *AssetNamer) URL(signalID, kind string) string {
	name := fmt.Sprintf("%s-%s.mp3", signalID, kind)
	if a.Prefix == "" {
		return name
	}
	return strings.TrimSuffix(a.Prefix, "/") + "/" + name
}

// Ensure fills in the user's missing audio fields and persists them. Fields
// already set are never overwritten.
func (a *AssetNamer) Ensure(ctx context.Context, store *entity.Store, user *types.User) (*types.User, error) {
	fields := map[string]any{}
	out := *user
	for _, f := range []struct {
		kind, key string
		dst       *string
	}{
		{"event", "event_audio", &out.EventAudio},
		{"announcement", "announcement_audio", &out.AnnouncementAudio},
		{"schedule", "schedule_audio", &out.ScheduleAudio},
	} {
		if *f.dst != "" {
			continue
		}
		*f.dst = a.URL(user.SignalID, f.kind)
		fields[f.key] = *f.dst
	}
	if len(fields) == 0 {
		return user, nil
	}
	if err := store.Merge(ctx, types.CollectionUsers, user.ID, fields); err != nil {
		return nil, fmt.Errorf("store audio urls: %w", err)
	}
	return &out, nil
}
