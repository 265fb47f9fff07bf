package main

import (
	"testing"

	"github.com/evdnx/gosignal/logger"
)

func TestBootLoggerNeverNil(t *testing.T) {
	if bootLogger("info") == nil {
		t.Fatal("expected a logger for a valid level")
	}
	l := bootLogger("loud")
	if l == nil {
		t.Fatal("expected a fallback logger for an invalid level")
	}
	l.Error("still_usable", logger.String("level", "loud"))
}

func TestEnvDefault(t *testing.T) {
	t.Setenv("GOSIGNAL_TEST_KEY", "")
	if got := env("GOSIGNAL_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("GOSIGNAL_TEST_KEY", "set")
	if got := env("GOSIGNAL_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}
