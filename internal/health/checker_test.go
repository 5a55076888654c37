package health

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type staticChecker struct {
	name    string
	healthy bool
}

func (c staticChecker) Check(context.Context) CheckResult {
	res := CheckResult{Name: c.name, Healthy: c.healthy}
	if !c.healthy {
		res.Error = "down"
	}
	return res
}

func TestProbeRunner(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		r := NewProbeRunner(time.Second, staticChecker{"a", true}, staticChecker{"b", true})
		ok, results := r.Ready(context.Background())
		if !ok {
			t.Fatal("expected ready")
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
	})

	t.Run("one failing makes it unready", func(t *testing.T) {
		r := NewProbeRunner(time.Second, staticChecker{"a", true}, staticChecker{"b", false})
		ok, results := r.Ready(context.Background())
		if ok {
			t.Fatal("expected unready")
		}
		if results[1].Error != "down" {
			t.Fatalf("expected error surfaced, got %+v", results[1])
		}
	})

	t.Run("nil checkers are skipped", func(t *testing.T) {
		r := NewProbeRunner(time.Second, nil, staticChecker{"a", true}, nil)
		ok, results := r.Ready(context.Background())
		if !ok || len(results) != 1 {
			t.Fatalf("expected 1 healthy result, got ok=%v results=%v", ok, results)
		}
	})

	t.Run("nil runner is always ready", func(t *testing.T) {
		var r *ProbeRunner
		if ok, _ := r.Ready(context.Background()); !ok {
			t.Fatal("nil runner must report ready")
		}
	})
}

func TestRedisChecker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checker := NewRedisChecker(client)
	res := checker.Check(context.Background())
	if !res.Healthy {
		t.Fatalf("expected healthy redis, got %+v", res)
	}

	srv.Close()
	res = checker.Check(context.Background())
	if res.Healthy {
		t.Fatal("expected unhealthy after server shutdown")
	}
}

func TestNewCheckersNilGuards(t *testing.T) {
	if NewDBChecker(nil) != nil {
		t.Error("NewDBChecker(nil) must return nil")
	}
	if NewRedisChecker(nil) != nil {
		t.Error("NewRedisChecker(nil) must return nil")
	}
}
