package models

import (
	"strings"
	"testing"
)

func TestSummaryCacheKey_ExactPerUser(t *testing.T) {
	if got := summaryCacheKey("u1"); got != "profit:summary:u1" {
		t.Fatalf("expected exact key profit:summary:u1, got %q", got)
	}
	// Keys for different users must never collide; invalidation deletes the
	// exact key, so u1's commit must not be able to name u12's entry.
	if summaryCacheKey("u1") == summaryCacheKey("u12") {
		t.Fatal("cache keys collide across users")
	}
	if strings.ContainsAny(summaryCacheKey("u1"), "*?[") {
		t.Fatal("cache key must not contain glob characters")
	}
}
