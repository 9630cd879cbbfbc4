package vault

import (
	"testing"
	"time"
)

func TestVault_SetGet(t *testing.T) {
	v := New()
	v.Set("acct-1", "oauth.refresh", "tok-abc", 0)

	got, ok := v.Get("acct-1", "oauth.refresh")
	if !ok || got != "tok-abc" {
		t.Errorf("expected tok-abc, got %q (found=%v)", got, ok)
	}
	if _, ok := v.Get("acct-2", "oauth.refresh"); ok {
		t.Error("expected different account to be isolated")
	}
}

func TestVault_Expiry(t *testing.T) {
	v := New()
	current := time.Unix(1000, 0)
	v.now = func() time.Time { return current }

	v.Set("acct-1", "session", "tok", 30*time.Second)
	if _, ok := v.Get("acct-1", "session"); !ok {
		t.Fatal("expected value before expiry")
	}

	current = current.Add(31 * time.Second)
	if _, ok := v.Get("acct-1", "session"); ok {
		t.Error("expected value gone after expiry")
	}
}

func TestVault_Delete(t *testing.T) {
	v := New()
	v.Set("acct-1", "k", "v", 0)
	v.Delete("acct-1", "k")
	if _, ok := v.Get("acct-1", "k"); ok {
		t.Error("expected value deleted")
	}
}

func TestVault_Overwrite(t *testing.T) {
	v := New()
	v.Set("acct-1", "k", "old", 0)
	v.Set("acct-1", "k", "new", 0)
	if got, _ := v.Get("acct-1", "k"); got != "new" {
		t.Errorf("expected new, got %q", got)
	}
}
