package totp

import (
	"testing"
	"time"
)

func TestVerify_CurrentStep(t *testing.T) {
	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	now := time.Unix(1700000000, 0)
	code := gen(raw, now.Unix()/periodSeconds)

	if !Verify(raw, code, now, 1) {
		t.Fatalf("expected code %q valid at its own step", code)
	}
}

func TestVerify_SkewWindow(t *testing.T) {
	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	now := time.Unix(1700000000, 0)

	// código del paso anterior y del siguiente: válidos con ventana ±1
	prev := gen(raw, now.Unix()/periodSeconds-1)
	next := gen(raw, now.Unix()/periodSeconds+1)
	if !Verify(raw, prev, now, 1) {
		t.Fatalf("prev-step code should be accepted")
	}
	if !Verify(raw, next, now, 1) {
		t.Fatalf("next-step code should be accepted")
	}

	// dos pasos atrás: fuera de ventana
	old := gen(raw, now.Unix()/periodSeconds-2)
	if Verify(raw, old, now, 1) && old != prev && old != next {
		t.Fatalf("code two steps old should be rejected")
	}
}

func TestVerify_RejectsBadInput(t *testing.T) {
	raw, _, err := GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	now := time.Now()

	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		if Verify(raw, code, now, 1) {
			t.Fatalf("code %q should be rejected", code)
		}
	}
}

func TestDecodeSecret_RoundTrip(t *testing.T) {
	raw, b32, err := GenerateSecret()
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	got, err := DecodeSecret(b32)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("secret round trip mismatch")
	}
}
