package config

import (
	"reflect"
	"testing"
)

func TestFlatten(t *testing.T) {
	cases := map[string]struct {
		in   map[string]any
		want map[string]any
	}{
		"empty":        {map[string]any{}, map[string]any{}},
		"empty object": {map[string]any{"a": map[string]any{}}, map[string]any{}},
		"top level": {
			map[string]any{"log_level": "info", "max_concurrent": 2.0},
			map[string]any{"log_level": "info", "max_concurrent": 2.0},
		},
		"nested": {
			map[string]any{
				"store":    map[string]any{"driver": "sqlite", "dsn": ""},
				"http":     map[string]any{"enabled": true},
				"timezone": "Asia/Singapore",
			},
			map[string]any{"store.driver": "sqlite", "store.dsn": "", "http.enabled": true, "timezone": "Asia/Singapore"},
		},
		"telegram users": {
			map[string]any{"telegram": map[string]any{"users": map[string]any{"42": map[string]any{"email": "carol@example.com"}}}},
			map[string]any{"telegram.users.42.email": "carol@example.com"},
		},
		"lists stay whole": {
			map[string]any{"dialog": map[string]any{"hops": []any{1.0, 2.0}}},
			map[string]any{"dialog.hops": []any{1.0, 2.0}},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := Flatten(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Flatten = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUnflatten(t *testing.T) {
	got := Unflatten(map[string]any{
		"log_level":             "debug",
		"store.driver":          "postgres",
		"calendar.enabled":      false,
		"telegram.users.7.name": "Dan",
	})
	want := map[string]any{
		"log_level": "debug",
		"store":     map[string]any{"driver": "postgres"},
		"calendar":  map[string]any{"enabled": false},
		"telegram":  map[string]any{"users": map[string]any{"7": map[string]any{"name": "Dan"}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unflatten = %v, want %v", got, want)
	}
	if len(Unflatten(map[string]any{})) != 0 {
		t.Error("expected empty result for empty input")
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	cfg := defaults()
	cfg.Telegram.Users = map[string]TelegramUser{"42": {Email: "carol@example.com", Locale: "en-US"}}
	m, err := ToMap(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if back := Unflatten(Flatten(m)); !reflect.DeepEqual(back, m) {
		t.Errorf("round trip changed the config:\n got %v\nwant %v", back, m)
	}
}

func TestMaskSecrets(t *testing.T) {
	got := MaskSecrets(map[string]any{
		"store.driver":            "postgres",
		"store.dsn":               "postgres://u:p@db/blurt",
		"calendar.client_secret":  "GOCSPX-abcdef1234",
		"http.auth_password_hash": "$2a$10$xyzw9876",
		"telegram.token":          "123456:ABCdefGHIjkl",
		"log_level":               "info",
	})
	want := map[string]any{
		"store.driver":            "postgres",
		"store.dsn":               "***lurt",
		"calendar.client_secret":  "***1234",
		"http.auth_password_hash": "***9876",
		"telegram.token":          "***Ijkl",
		"log_level":               "info",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MaskSecrets = %v, want %v", got, want)
	}
}

func TestMaskSecretsShortValues(t *testing.T) {
	for in, want := range map[string]string{"": "", "ab": "***ab", "abcd": "***abcd", "abcde": "***bcde"} {
		if got := MaskSecrets(map[string]any{"telegram.token": in})["telegram.token"]; got != want {
			t.Errorf("mask %q = %v, want %q", in, got, want)
		}
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("store.dsn") || IsSecretKey("store.driver") {
		t.Error("unexpected secret classification")
	}
}
