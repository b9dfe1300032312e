package delivery

import (
	"context"
	"errors"
	"testing"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var got Notice
	reg.Register("devices", func(_ context.Context, n Notice) error {
		got = n
		return nil
	})

	n := Notice{Kind: KindManifestUpdated, UserID: "bob", SignalID: "amber-brook-cedar", Count: 2}
	if err := reg.Deliver(context.Background(), "devices", n); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != n {
		t.Errorf("expected %+v, got %+v", n, got)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver(context.Background(), "unknown", Notice{})
	if err == nil {
		t.Fatal("expected error for unregistered sink, got nil")
	}
}

func TestRegistryNotifyReachesEverySink(t *testing.T) {
	reg := NewRegistry()

	var deviceCalls, telegramCalls int
	reg.Register("telegram", func(context.Context, Notice) error {
		telegramCalls++
		return errors.New("chat not found")
	})
	reg.Register("devices", func(context.Context, Notice) error {
		deviceCalls++
		return nil
	})

	err := reg.Notify(context.Background(), Notice{Kind: KindManifestUpdated})
	if err == nil {
		t.Fatal("expected the telegram failure to be reported")
	}
	if deviceCalls != 1 || telegramCalls != 1 {
		t.Errorf("expected one call per sink, got devices=%d telegram=%d", deviceCalls, telegramCalls)
	}
	if names := reg.Sinks(); len(names) != 2 || names[0] != "devices" {
		t.Errorf("unexpected sinks %v", names)
	}
}

func TestRegistryNotifyWithoutSinks(t *testing.T) {
	if err := NewRegistry().Notify(context.Background(), Notice{}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
