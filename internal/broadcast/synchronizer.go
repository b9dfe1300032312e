// Package broadcast periodically folds every group's queues into the queues
// of its members and reaps notifications whose window has passed.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// Report summarises one run.
type Report struct {
	Groups  int `json:"groups"`
	Members int `json:"members"`
	Reaped  int `json:"reaped"`
}

type Synchronizer struct {
	store  *entity.Store
	clock  *clock.Clock
	logger *slog.Logger
}

func New(store *entity.Store, clk *clock.Clock, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, clock: clk, logger: logger}
}

type queues struct {
	eventsNotify, eventsCancelled               []string
	announcementsNotify, announcementsCancelled []string
}

// membership accumulates what one member should receive across all groups.
type membership struct {
	events, eventsCancel               []string
	announcements, announcementsCancel []string
}

// Run executes one reconciliation pass. Member failures do not stop other
// members; they are joined into the returned error.
func (s *Synchronizer) Run(ctx context.Context) (Report, error) {
	var report Report

	groups, err := s.store.Groups(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch groups: %w", err)
	}
	report.Groups = len(groups)

	var reaped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, group := range groups {
		g.Go(func() error {
			n, err := s.reap(gctx, group.ID)
			reaped.Add(int64(n))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Reaped = int(reaped.Load())

	perGroup := make([]queues, len(groups))
	g, gctx = errgroup.WithContext(ctx)
	for i, group := range groups {
		g.Go(func() error {
			q, err := s.collect(gctx, group.ID)
			perGroup[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	order := []string{}
	members := map[string]*membership{}
	for i, group := range groups {
		q := perGroup[i]
		for _, uid := range group.Members {
			m, ok := members[uid]
			if !ok {
				m = &membership{}
				members[uid] = m
				order = append(order, uid)
			}
			m.events = listset.Add(m.events, q.eventsNotify...)
			m.eventsCancel = listset.Add(m.eventsCancel, q.eventsCancelled...)
			m.announcements = listset.Add(m.announcements, q.announcementsNotify...)
			m.announcementsCancel = listset.Add(m.announcementsCancel, q.announcementsCancelled...)
		}
	}
	// Notify sets are complete before any cancel set is trimmed.
	for _, m := range members {
		m.eventsCancel = listset.Remove(m.eventsCancel, m.events...)
		m.announcementsCancel = listset.Remove(m.announcementsCancel, m.announcements...)
	}
	report.Members = len(order)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, uid := range order {
		m := members[uid]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.apply(ctx, uid, m); err != nil {
				s.logger.Error("sync member failed", "user", uid, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.logger.Info("sync complete", "groups", report.Groups, "members", report.Members, "reaped", report.Reaped, "failed", len(errs))
	return report, errors.Join(errs...)
}

// reap drops expired ids from the group's notify queues. Expired ids are not
// cancelled.
func (s *Synchronizer) reap(ctx context.Context, gid string) (int, error) {
	now := s.clock.Now()
	total := 0
	for _, kind := range []types.Kind{types.KindAnnouncement, types.KindEvent} {
		ref := entity.GroupQueue(kind.NotifyQueue(), gid)
		ids, err := s.store.ChildList(ctx, ref)
		if err != nil {
			return total, fmt.Errorf("read %s: %w", ref, err)
		}
		var expired []string
		for _, id := range ids {
			item, err := s.store.Item(ctx, kind, id)
			if err != nil {
				return total, err
			}
			if item != nil && s.expired(kind, item, now) {
				expired = append(expired, id)
			}
		}
		if err := s.store.Remove(ctx, ref, expired...); err != nil {
			return total, err
		}
		total += len(expired)
	}
	return total, nil
}

// expired reports whether the item's notification window has passed:
// announcements after their end, events from their start. Items with
// unparseable dates are kept.
func (s *Synchronizer) expired(kind types.Kind, item *types.Item, now time.Time) bool {
	at := item.StartDatetime
	if kind == types.KindAnnouncement {
		at = item.EndDatetime
	}
	t, err := s.clock.Parse(at)
	if err != nil {
		s.logger.Warn("unparseable datetime", "kind", kind, "id", item.ID, "value", at)
		return false
	}
	if kind == types.KindAnnouncement {
		return now.After(t)
	}
	return !now.Before(t)
}

func (s *Synchronizer) collect(ctx context.Context, gid string) (queues, error) {
	var q queues
	targets := []struct {
		c   types.Collection
		dst *[]string
	}{
		{types.CollectionEventsToNotify, &q.eventsNotify},
		{types.CollectionEventsCancelled, &q.eventsCancelled},
		{types.CollectionAnnouncementsToNotify, &q.announcementsNotify},
		{types.CollectionAnnouncementsCancelled, &q.announcementsCancelled},
	}
	for _, target := range targets {
		list, err := s.store.ChildList(ctx, entity.GroupQueue(target.c, gid))
		if err != nil {
			return q, fmt.Errorf("read %s/%s: %w", target.c, gid, err)
		}
		*target.dst = list
	}
	return q, nil
}

func (s *Synchronizer) apply(ctx context.Context, uid string, m *membership) error {
	events := entity.UserList(uid, types.FieldEventsToNotify)
	announcements := entity.UserList(uid, types.FieldAnnouncementsToNotify)
	if err := s.store.Add(ctx, events, m.events...); err != nil {
		return err
	}
	if err := s.store.Remove(ctx, events, m.eventsCancel...); err != nil {
		return err
	}
	if err := s.store.Add(ctx, announcements, m.announcements...); err != nil {
		return err
	}
	return s.store.Remove(ctx, announcements, m.announcementsCancel...)
}
