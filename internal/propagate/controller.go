// Package propagate keeps the per-group and per-user queues in step with the
// event, announcement and group documents as they are written.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// Controller reacts to document writes. before is nil on creation and after
// is nil on deletion.
type Controller struct {
	store  *entity.Store
	clock  *clock.Clock
	logger *slog.Logger
}

func NewController(store *entity.Store, clk *clock.Clock, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, clock: clk, logger: logger}
}

// ItemWritten reconciles the group queues touched by an event or announcement.
func (c *Controller) ItemWritten(ctx context.Context, kind types.Kind, before, after *types.Item) error {
	if after == nil {
		if before == nil {
			return nil
		}
		c.logger.Debug("item deleted", "kind", kind, "id", before.ID, "groups", len(before.Groups))
		return c.each(ctx, before.Groups, func(ctx context.Context, gid string) error {
			return c.cancel(ctx, kind, gid, before.ID)
		})
	}

	if c.stale(kind, after) {
		c.logger.Debug("item stale, skipping", "kind", kind, "id", after.ID)
		return nil
	}

	var removed []string
	if before != nil {
		removed = listset.Remove(before.Groups, after.Groups...)
	}

	if !after.IsActive.True() {
		return c.each(ctx, after.Groups, func(ctx context.Context, gid string) error {
			return c.cancel(ctx, kind, gid, after.ID)
		})
	}

	var units fanout
	for _, gid := range listset.Add(after.Groups) {
		units.Go(func() error { return c.notify(ctx, kind, gid, after.ID) })
	}
	for _, gid := range listset.Add(removed) {
		units.Go(func() error { return c.cancel(ctx, kind, gid, after.ID) })
	}
	if err := units.Wait(); err != nil {
		return fmt.Errorf("propagate %s %s: %w", kind, after.ID, err)
	}
	return nil
}

// GroupWritten hands the group's pending notifications to members that just
// joined. Deleting a group propagates nothing.
func (c *Controller) GroupWritten(ctx context.Context, before, after *types.Group) error {
	if after == nil {
		return nil
	}
	var prev []string
	if before != nil {
		prev = before.Members
	}
	joined := listset.Remove(listset.Add(after.Members), prev...)
	if len(joined) == 0 {
		return nil
	}

	events, err := c.store.ChildList(ctx, entity.GroupQueue(types.CollectionEventsToNotify, after.ID))
	if err != nil {
		return fmt.Errorf("read group %s events: %w", after.ID, err)
	}
	announcements, err := c.store.ChildList(ctx, entity.GroupQueue(types.CollectionAnnouncementsToNotify, after.ID))
	if err != nil {
		return fmt.Errorf("read group %s announcements: %w", after.ID, err)
	}

	c.logger.Debug("group members joined", "group", after.ID, "members", joined)
	return c.each(ctx, joined, func(ctx context.Context, uid string) error {
		if err := c.store.Add(ctx, entity.UserList(uid, types.FieldEventsToNotify), events...); err != nil {
			return err
		}
		return c.store.Add(ctx, entity.UserList(uid, types.FieldAnnouncementsToNotify), announcements...)
	})
}

// stale reports whether the item's window has already closed: events from
// their start, announcements from their end. Unparseable dates
// count as stale.
func (c *Controller) stale(kind types.Kind, item *types.Item) bool {
	at := item.StartDatetime
	if kind == types.KindAnnouncement {
		at = item.EndDatetime
	}
	t, err := c.clock.Parse(at)
	if err != nil {
		c.logger.Warn("unparseable datetime", "kind", kind, "id", item.ID, "value", at)
		return true
	}
	return !c.clock.Now().Before(t)
}

func (c *Controller) notify(ctx context.Context, kind types.Kind, gid, id string) error {
	if err := c.store.Remove(ctx, entity.GroupQueue(kind.CancelledQueue(), gid), id); err != nil {
		return err
	}
	return c.store.Add(ctx, entity.GroupQueue(kind.NotifyQueue(), gid), id)
}

func (c *Controller) cancel(ctx context.Context, kind types.Kind, gid, id string) error {
	if err := c.store.Remove(ctx, entity.GroupQueue(kind.NotifyQueue(), gid), id); err != nil {
		return err
	}
	return c.store.Add(ctx, entity.GroupQueue(kind.CancelledQueue(), gid), id)
}

func (c *Controller) each(ctx context.Context, ids []string, fn func(context.Context, string) error) error {
	var units fanout
	for _, id := range listset.Add(ids) {
		units.Go(func() error { return fn(ctx, id) })
	}
	return units.Wait()
}

// fanout runs independent units on the caller's context. A failing unit
// neither cancels nor hides its siblings: Wait joins every error.
type fanout struct {
	g    errgroup.Group
	mu   sync.Mutex
	errs []error
}

func (f *fanout) Go(fn func() error) {
	f.g.Go(func() error {
		if err := fn(); err != nil {
			f.mu.Lock()
			f.errs = append(f.errs, err)
			f.mu.Unlock()
		}
		return nil
	})
}

func (f *fanout) Wait() error {
	f.g.Wait()
	return errors.Join(f.errs...)
}
