package conversation

import (
	"sort"
	"time"

	"github.com/user/blurt/internal/clock"
	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// window is an item with its parsed bounds. Items whose dates do not parse
// are dropped before filtering.
type window struct {
	item       *types.Item
	start, end time.Time
}

func windows(clk *clock.Clock, items []*types.Item) []window {
	out := make([]window, 0, len(items))
	for _, it := range items {
		start, end, ok := clk.Window(it.StartDatetime, it.EndDatetime)
		if !ok {
			continue
		}
		out = append(out, window{item: it, start: start, end: end})
	}
	return out
}

// partition splits ws into the sorted items that pass keep and the ids that
// fail drop.
func partition(ws []window, keep, drop func(window) bool) (valid []*types.Item, stale []string) {
	passed := make([]window, 0, len(ws))
	for _, w := range ws {
		if keep(w) {
			passed = append(passed, w)
		}
		if drop(w) {
			stale = append(stale, w.item.ID)
		}
	}
	sort.SliceStable(passed, func(i, j int) bool { return passed[i].start.Before(passed[j].start) })
	valid = make([]*types.Item, 0, len(passed))
	for _, w := range passed {
		valid = append(valid, w.item)
	}
	return valid, stale
}

// filterEvents keeps events that have not started and are not already
// attended. An event starting right now counts as started. Started or
// attended ones are returned for cleanup.
func filterEvents(clk *clock.Clock, items []*types.Item, attending []string) ([]*types.Item, []string) {
	now := clk.Now()
	return partition(windows(clk, items),
		func(w window) bool {
			return now.Before(w.start) && now.Before(w.end) && !listset.Contains(attending, w.item.ID)
		},
		func(w window) bool {
			return !now.Before(w.start) || listset.Contains(attending, w.item.ID)
		})
}

// filterAnnouncements keeps announcements strictly inside their window and
// reports the ended ones.
func filterAnnouncements(clk *clock.Clock, items []*types.Item) ([]*types.Item, []string) {
	now := clk.Now()
	return partition(windows(clk, items),
		func(w window) bool { return now.After(w.start) && now.Before(w.end) },
		func(w window) bool { return !now.Before(w.end) })
}

// filterSchedules keeps attended events that have not started and reports
// the started ones.
func filterSchedules(clk *clock.Clock, items []*types.Item) ([]*types.Item, []string) {
	now := clk.Now()
	return partition(windows(clk, items),
		func(w window) bool { return now.Before(w.start) },
		func(w window) bool { return !now.Before(w.start) })
}

// upcoming reports whether any item starts after now.
func upcoming(clk *clock.Clock, items []*types.Item) bool {
	now := clk.Now()
	for _, w := range windows(clk, items) {
		if now.Before(w.start) {
			return true
		}
	}
	return false
}

func ids(items []*types.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

// NotifiableEvents returns the events worth announcing, sorted by start.
func NotifiableEvents(clk *clock.Clock, items []*types.Item, attending []string) []*types.Item {
	valid, _ := filterEvents(clk, items, attending)
	return valid
}

// LiveAnnouncements returns the announcements inside their window, sorted by start.
func LiveAnnouncements(clk *clock.Clock, items []*types.Item) []*types.Item {
	valid, _ := filterAnnouncements(clk, items)
	return valid
}

// UpcomingSchedules returns the attended events that have not started, sorted by start.
func UpcomingSchedules(clk *clock.Clock, items []*types.Item) []*types.Item {
	valid, _ := filterSchedules(clk, items)
	return valid
}
