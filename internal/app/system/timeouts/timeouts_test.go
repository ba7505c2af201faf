package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure_IgnoresZero(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Set{Read: 7 * time.Second})
	if Read() != 7*time.Second {
		t.Errorf("expected Read 7s, got %v", Read())
	}
	if List() != Defaults().List {
		t.Errorf("expected List to keep default, got %v", List())
	}

	Reset()
	if Current() != Defaults() {
		t.Errorf("expected defaults after Reset, got %+v", Current())
	}
}

func TestFromLookup(t *testing.T) {
	vals := map[string]string{"ping": "500ms", "list": "bogus", "export": "-1s", "write": " 3s "}
	s, n := FromLookup(func(k string) string { return vals[k] })
	if n != 2 {
		t.Errorf("expected 2 parsed values, got %d", n)
	}
	if s.Ping != 500*time.Millisecond || s.Write != 3*time.Second {
		t.Errorf("unexpected set %+v", s)
	}
	if s.List != 0 || s.Export != 0 {
		t.Errorf("expected invalid values to be skipped, got %+v", s)
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.New(core), "slow thing")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["operation"]; got != "slow thing" {
		t.Errorf("expected operation field, got %v", got)
	}
}

func TestWithTimeout_CallerCancelIsQuiet(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	_, cancel := WithTimeout(context.Background(), time.Hour, zap.New(core), "fast thing")
	cancel()
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %d", logs.Len())
	}
}
