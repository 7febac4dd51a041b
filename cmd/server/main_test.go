package main

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "  ", "value", "other"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := firstNonEmpty("", "   "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" a , ,b,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected result: %v", got)
	}
	if splitAndTrim("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}

func TestResolveDuration(t *testing.T) {
	if got := resolveDuration(5*time.Second, "FRAMECAST_TEST_UNSET", time.Minute); got != 5*time.Second {
		t.Fatalf("flag should win, got %v", got)
	}
	t.Setenv("FRAMECAST_TEST_DURATION", "250ms")
	if got := resolveDuration(0, "FRAMECAST_TEST_DURATION", time.Minute); got != 250*time.Millisecond {
		t.Fatalf("env should apply, got %v", got)
	}
	if got := resolveDuration(0, "FRAMECAST_TEST_UNSET", time.Minute); got != time.Minute {
		t.Fatalf("fallback should apply, got %v", got)
	}
}

func TestOpenStoreDefaultsToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store, err := openStore("", path, "")
	if err != nil {
		t.Fatalf("openStore: %v", err)
	}
	if store == nil {
		t.Fatal("expected a repository")
	}
}

func TestOpenStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := openStore("cassandra", "", ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestOpenStorePostgresRequiresDSN(t *testing.T) {
	if _, err := openStore("postgres", "", ""); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}

func TestOpenSessionsMemory(t *testing.T) {
	sessions, closer, err := openSessions(sessionSettings{Driver: "memory", TTL: time.Hour})
	if err != nil {
		t.Fatalf("openSessions: %v", err)
	}
	if sessions == nil {
		t.Fatal("expected a session manager")
	}
	if closer != nil {
		t.Fatal("memory store needs no closer")
	}
}

func TestOpenSessionsRedisRequiresAddr(t *testing.T) {
	if _, _, err := openSessions(sessionSettings{Driver: "redis", TTL: time.Hour}); err == nil {
		t.Fatal("expected error for redis without address")
	}
}

func TestOpenLiveCommentQueueDrivers(t *testing.T) {
	queue, err := openLiveCommentQueue(livecommentQueueSettings{}, nil)
	if err != nil {
		t.Fatalf("memory queue: %v", err)
	}
	if queue == nil {
		t.Fatal("expected a queue")
	}
	if _, err := openLiveCommentQueue(livecommentQueueSettings{Driver: "redis"}, nil); err == nil {
		t.Fatal("expected error for redis without address")
	}
	if _, err := openLiveCommentQueue(livecommentQueueSettings{Driver: "kafka"}, nil); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}
