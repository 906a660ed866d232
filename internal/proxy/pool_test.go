package proxy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/registry-crawler/internal/proxy"
)

func TestCheckoutCheckinCycle(t *testing.T) {
	t.Parallel()
	pool := proxy.NewPool([]string{"http://p1:8080", "http://p2:8080"}, "", time.Second, zap.NewNop())

	first, err := pool.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	second, err := pool.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if first == second {
		t.Fatal("same proxy leased twice")
	}

	if _, err := pool.Checkout(context.Background()); !errors.Is(err, proxy.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	pool.Checkin(first, true)
	again, err := pool.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout after checkin: %v", err)
	}
	if again != first {
		t.Fatalf("expected %s back in rotation, got %s", first, again)
	}
}

func TestUnhealthyCheckinQuarantines(t *testing.T) {
	t.Parallel()
	pool := proxy.NewPool([]string{"http://p1:8080"}, "", time.Second, zap.NewNop())

	leased, err := pool.Checkout(context.Background())
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	pool.Checkin(leased, false)

	if _, err := pool.Checkout(context.Background()); !errors.Is(err, proxy.ErrExhausted) {
		t.Fatalf("quarantined proxy re-leased: %v", err)
	}
}

func TestEmptyPool(t *testing.T) {
	t.Parallel()
	pool := proxy.NewPool(nil, "", time.Second, zap.NewNop())
	if !pool.Empty() {
		t.Fatal("expected empty pool")
	}
	if _, err := pool.Checkout(context.Background()); !errors.Is(err, proxy.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestCheckinUnknownProxyIgnored(t *testing.T) {
	t.Parallel()
	pool := proxy.NewPool([]string{"http://p1:8080"}, "", time.Second, zap.NewNop())
	pool.Checkin("http://stranger:1", true)

	if _, err := pool.Checkout(context.Background()); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := pool.Checkout(context.Background()); !errors.Is(err, proxy.ErrExhausted) {
		t.Fatal("stranger proxy entered rotation")
	}
}
