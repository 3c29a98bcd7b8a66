package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/oriys/booster/internal/config"
)

func TestAdapterDisabledByDefault(t *testing.T) {
	a := &Adapter{}
	if a.Enabled() {
		t.Fatal("adapter with no client should report disabled")
	}

	ctx := context.Background()
	if _, err := a.Get(ctx, "k"); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Get on disabled adapter = %v, want ErrDisabled", err)
	}
	if err := a.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrDisabled) {
		t.Fatalf("Set on disabled adapter = %v, want ErrDisabled", err)
	}
}

func TestNewFromConfigEmptyURLDisabled(t *testing.T) {
	a, err := NewFromConfig(context.Background(), config.RedisConfig{})
	if err != nil {
		t.Fatalf("NewFromConfig with empty url: %v", err)
	}
	if a.Enabled() {
		t.Fatal("adapter built from empty config should be disabled")
	}
}
