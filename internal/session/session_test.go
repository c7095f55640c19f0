package session

import (
	"testing"

	"wellness-meal-planner/internal/auth"
	"wellness-meal-planner/internal/profile"
)

func TestSession(t *testing.T) {
	cache := NewCache()
	s := New(nil, cache)

	if s.Authenticated() || s.UserID() != "" {
		t.Fatal("new session should be anonymous")
	}

	s.SignIn(&auth.Identity{UserID: "u1"})
	if !s.Authenticated() || s.UserID() != "u1" {
		t.Fatalf("SignIn() not applied: %+v", s.Identity())
	}

	cache.Put("u1", &profile.Profile{UserID: "u1"})
	s.SignOut()
	if s.Authenticated() {
		t.Error("SignOut() should clear identity")
	}
	if _, ok := cache.Get("u1"); ok {
		t.Error("SignOut() should drop the cached profile")
	}
}

func TestCache(t *testing.T) {
	c := NewCache()

	if _, ok := c.Get("u1"); ok {
		t.Fatal("empty cache reported a hit")
	}

	c.Put("u1", nil)
	p, ok := c.Get("u1")
	if !ok || p != nil {
		t.Errorf("cached absence = %v, %v", p, ok)
	}

	c.Put("u2", &profile.Profile{UserID: "u2"})
	c.Invalidate("u1")
	if _, ok := c.Get("u1"); ok {
		t.Error("Invalidate() kept u1")
	}
	if p, ok := c.Get("u2"); !ok || p.UserID != "u2" {
		t.Error("Invalidate() touched another user")
	}

	if New(nil, nil).Cache() == nil {
		t.Error("New() should create a cache when none is given")
	}
}

func TestCachePutIfAfterInvalidate(t *testing.T) {
	c := NewCache()

	stale := c.Begin("u1")
	c.Invalidate("u1")
	fresh := c.Begin("u1")
	if !c.PutIf("u1", fresh, &profile.Profile{UserID: "u1", ID: "row-1"}) {
		t.Fatal("PutIf() with the current generation should store")
	}

	if c.PutIf("u1", stale, nil) {
		t.Error("PutIf() with a generation from before Invalidate should be dropped")
	}
	if p, ok := c.Get("u1"); !ok || p == nil || p.ID != "row-1" {
		t.Errorf("stale fetch overwrote the fresh entry: %v, %v", p, ok)
	}

	if !c.PutIf("u2", c.Begin("u2"), nil) {
		t.Error("PutIf() for an untouched user should store")
	}
}
