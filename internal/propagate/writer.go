package propagate

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/blurt/internal/entity"
	"github.com/user/blurt/internal/types"
)

// Writer stores entity documents and runs the controller with the previous
// and new versions, the way a document-change trigger would.
type Writer struct {
	store *entity.Store
	ctrl  *Controller
}

func NewWriter(store *entity.Store, ctrl *Controller) *Writer {
	return &Writer{store: store, ctrl: ctrl}
}

func (w *Writer) PutEvent(ctx context.Context, item *types.Item) error {
	return w.putItem(ctx, types.KindEvent, item)
}

func (w *Writer) DeleteEvent(ctx context.Context, id string) error {
	return w.deleteItem(ctx, types.KindEvent, id)
}

func (w *Writer) PutAnnouncement(ctx context.Context, item *types.Item) error {
	return w.putItem(ctx, types.KindAnnouncement, item)
}

func (w *Writer) DeleteAnnouncement(ctx context.Context, id string) error {
	return w.deleteItem(ctx, types.KindAnnouncement, id)
}

// PutItem dispatches on kind.
func (w *Writer) PutItem(ctx context.Context, kind types.Kind, item *types.Item) error {
	return w.putItem(ctx, kind, item)
}

// DeleteItem dispatches on kind.
func (w *Writer) DeleteItem(ctx context.Context, kind types.Kind, id string) error {
	return w.deleteItem(ctx, kind, id)
}

func (w *Writer) PutGroup(ctx context.Context, group *types.Group) error {
	if group == nil || strings.TrimSpace(group.ID) == "" {
		return fmt.Errorf("put group: missing id")
	}
	before, err := w.store.Group(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("read group %s: %w", group.ID, err)
	}
	if err := w.store.Put(ctx, types.CollectionGroups, group.ID, group); err != nil {
		return fmt.Errorf("write group %s: %w", group.ID, err)
	}
	return w.ctrl.GroupWritten(ctx, before, group)
}

func (w *Writer) DeleteGroup(ctx context.Context, id string) error {
	before, err := w.store.Group(ctx, id)
	if err != nil {
		return fmt.Errorf("read group %s: %w", id, err)
	}
	if before == nil {
		return entity.ErrNotFound
	}
	if err := w.store.Delete(ctx, types.CollectionGroups, id); err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	return w.ctrl.GroupWritten(ctx, before, nil)
}

func (w *Writer) putItem(ctx context.Context, kind types.Kind, item *types.Item) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("put %s: missing id", kind)
	}
	before, err := w.store.Item(ctx, kind, item.ID)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", kind, item.ID, err)
	}
	if err := w.store.Put(ctx, kind.Collection(), item.ID, item); err != nil {
		return fmt.Errorf("write %s %s: %w", kind, item.ID, err)
	}
	return w.ctrl.ItemWritten(ctx, kind, before, item)
}

func (w *Writer) deleteItem(ctx context.Context, kind types.Kind, id string) error {
	before, err := w.store.Item(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", kind, id, err)
	}
	if before == nil {
		return entity.ErrNotFound
	}
	if err := w.store.Delete(ctx, kind.Collection(), id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	return w.ctrl.ItemWritten(ctx, kind, before, nil)
}
