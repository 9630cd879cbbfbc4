package seal

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestXChaCha_RoundTrip(t *testing.T) {
	c, err := NewXChaCha(testKey())
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}

	plain := []byte(`{"name":"ui.addClass","payload":{"class":"active"}}`)
	ct, err := c.Seal(plain, "env-42")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(ct, []byte("addClass")) {
		t.Error("ciphertext leaks plaintext")
	}

	got, err := c.Open(ct, "env-42")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("expected %s, got %s", plain, got)
	}
}

func TestXChaCha_WrongIDFails(t *testing.T) {
	c, _ := NewXChaCha(testKey())
	ct, err := c.Seal([]byte("secret"), "env-1")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := c.Open(ct, "env-2"); err == nil {
		t.Error("expected open under a different id to fail")
	}
}

func TestXChaCha_TamperFails(t *testing.T) {
	c, _ := NewXChaCha(testKey())
	ct, err := c.Seal([]byte("secret"), "env-1")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	ct[0] ^= 0x01
	if _, err := c.Open(ct, "env-1"); err == nil {
		t.Error("expected tampered ciphertext to fail")
	}
}

func TestNewXChaCha_BadKey(t *testing.T) {
	if _, err := NewXChaCha([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}
