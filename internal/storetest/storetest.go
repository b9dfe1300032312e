// Package storetest holds the behaviour every types.DocStore must share.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/blurt/internal/types"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) types.DocStore) {
	t.Run("GetMissing", func(t *testing.T) {
		store := open(t)
		doc, err := store.Get(context.Background(), types.CollectionUsers, "nobody")
		require.NoError(t, err)
		require.Nil(t, doc)
	})

	t.Run("PutGetAll", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, types.CollectionGroups, "g1", json.RawMessage(`{"id":"g1","members":["u1"]}`)))
		require.NoError(t, store.Put(ctx, types.CollectionGroups, "g2", json.RawMessage(`{"id":"g2"}`)))

		doc, err := store.Get(ctx, types.CollectionGroups, "g1")
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"g1","members":["u1"]}`, string(doc))

		all, err := store.All(ctx, types.CollectionGroups)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.JSONEq(t, `{"id":"g2"}`, string(all["g2"]))

		empty, err := store.All(ctx, types.CollectionEvents)
		require.NoError(t, err)
		require.Empty(t, empty)
	})

	t.Run("AwkwardIDs", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		for _, id := range []string{"a/b", "..", "jane,doe@example,com"} {
			require.NoError(t, store.Put(ctx, types.CollectionUsers, id, json.RawMessage(`{"id":"x"}`)))
			doc, err := store.Get(ctx, types.CollectionUsers, id)
			require.NoError(t, err)
			require.NotNil(t, doc, id)
		}
		all, err := store.All(ctx, types.CollectionUsers)
		require.NoError(t, err)
		require.Len(t, all, 3)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, types.CollectionEvents, "e1", json.RawMessage(`{"id":"e1"}`)))
		require.NoError(t, store.Delete(ctx, types.CollectionEvents, "e1"))
		require.NoError(t, store.Delete(ctx, types.CollectionEvents, "e1"))
		doc, err := store.Get(ctx, types.CollectionEvents, "e1")
		require.NoError(t, err)
		require.Nil(t, doc)
	})

	t.Run("UpdateCreatesAndSkips", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		err := store.Update(ctx, types.CollectionEventsToNotify, "g1", func(cur json.RawMessage) (json.RawMessage, error) {
			require.Nil(t, cur)
			return json.RawMessage(`["e1"]`), nil
		})
		require.NoError(t, err)

		err = store.Update(ctx, types.CollectionEventsToNotify, "g1", func(cur json.RawMessage) (json.RawMessage, error) {
			require.JSONEq(t, `["e1"]`, string(cur))
			return nil, nil
		})
		require.NoError(t, err)

		doc, err := store.Get(ctx, types.CollectionEventsToNotify, "g1")
		require.NoError(t, err)
		require.JSONEq(t, `["e1"]`, string(doc))
	})

	t.Run("UpdateErrorLeavesDocument", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		require.NoError(t, store.Put(ctx, types.CollectionEventsToNotify, "g1", json.RawMessage(`["e1"]`)))

		boom := fmt.Errorf("boom")
		err := store.Update(ctx, types.CollectionEventsToNotify, "g1", func(json.RawMessage) (json.RawMessage, error) {
			return nil, boom
		})
		require.ErrorIs(t, err, boom)

		doc, err := store.Get(ctx, types.CollectionEventsToNotify, "g1")
		require.NoError(t, err)
		require.JSONEq(t, `["e1"]`, string(doc))
	})

	t.Run("ConcurrentUpdatesNotLost", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		const writers = 40

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- store.Update(ctx, types.CollectionEventsToNotify, "g1", func(cur json.RawMessage) (json.RawMessage, error) {
					var list []string
					if cur != nil {
						if err := json.Unmarshal(cur, &list); err != nil {
							return nil, err
						}
					}
					list = append(list, fmt.Sprintf("e%d", i))
					return json.Marshal(list)
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		doc, err := store.Get(ctx, types.CollectionEventsToNotify, "g1")
		require.NoError(t, err)
		var list []string
		require.NoError(t, json.Unmarshal(doc, &list))
		require.Len(t, list, writers)
	})
}
