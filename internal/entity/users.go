package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/user/blurt/internal/types"
)

// UserKey canonicalises an email address into a document id. The result is
// stable across case, surrounding whitespace and Unicode normalisation form,
// and contains no '.' so it is safe as a key in path-like stores.
func UserKey(email string) string {
	key := norm.NFKC.String(strings.TrimSpace(email))
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, ".", ",")
}

var signalWords = []string{
	"amber", "anchor", "apple", "arrow", "autumn", "badge", "bamboo", "beacon",
	"berry", "birch", "blossom", "breeze", "bridge", "brook", "canyon", "cedar",
	"cherry", "cloud", "cobalt", "comet", "coral", "cotton", "crane", "crystal",
	"dawn", "delta", "desert", "dolphin", "dune", "echo", "ember", "falcon",
	"fern", "field", "flame", "forest", "garden", "glacier", "harbor", "hazel",
	"horizon", "island", "ivory", "jade", "lagoon", "lantern", "lemon", "lotus",
	"maple", "meadow", "mint", "moss", "nectar", "ocean", "olive", "orbit",
	"pebble", "pepper", "pine", "planet", "prairie", "quartz", "rain", "river",
	"saffron", "shadow", "silver", "sparrow", "spruce", "stone", "summit", "tiger",
	"timber", "topaz", "tulip", "valley", "velvet", "willow", "winter", "zephyr",
}

// RandomSignalID returns three random words joined with "-".
func RandomSignalID() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = signalWords[rand.IntN(len(signalWords))]
	}
	return strings.Join(words, "-")
}

// EnsureUser creates the user document for identity on first sign-in and
// otherwise refreshes its profile fields. Queues and the signal id of an
// existing user are kept.
func (s *Store) EnsureUser(ctx context.Context, identity types.Identity, newSignalID func() string) (*types.User, bool, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, false, fmt.Errorf("ensure user: identity has no email")
	}
	if newSignalID == nil {
		newSignalID = RandomSignalID
	}
	id := UserKey(identity.Email)

	var (
		user    types.User
		created bool
	)
	err := s.docs.Update(ctx, types.CollectionUsers, id, func(cur json.RawMessage) (json.RawMessage, error) {
		created = cur == nil
		fields := map[string]json.RawMessage{}
		if cur != nil {
			decoded, err := decodeFields(cur, UserList(id, ""))
			if err != nil {
				return nil, err
			}
			fields = decoded
		}
		set := func(k string, v any) error {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			fields[k] = raw
			return nil
		}

		profile := map[string]string{"id": id, "email": identity.Email, "name": identity.Name, "locale": identity.Locale}
		for k, v := range profile {
			if v == "" {
				continue
			}
			if err := set(k, v); err != nil {
				return nil, err
			}
		}
		if raw, ok := fields["signal_id"]; !ok || string(raw) == `""` || string(raw) == "null" {
			if err := set("signal_id", newSignalID()); err != nil {
				return nil, err
			}
		}
		if created {
			if err := set("is_from_sheets", false); err != nil {
				return nil, err
			}
		}

		next, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(next, &user); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("ensure user %s: %w", id, err)
	}
	s.changed(ctx, types.CollectionUsers, id)
	return &user, created, nil
}
