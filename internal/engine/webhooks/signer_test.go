package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// Calculated using: echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestSign_Deterministic(t *testing.T) {
	payload := []byte(`{"amount":1200,"event":"payment.completed"}`)

	first := Sign("whsec_1", payload)
	if second := Sign("whsec_1", payload); second != first {
		t.Errorf("same input produced %s then %s", first, second)
	}

	tampered := append([]byte{}, payload...)
	tampered[3] = 'b'
	if Sign("whsec_1", tampered) == first {
		t.Error("changing one payload byte did not change the signature")
	}
	if Sign("whsec_2", payload) == first {
		t.Error("changing the secret did not change the signature")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte("body")
	sig := Sign("k", payload)

	tests := []struct {
		name   string
		secret string
		sig    string
		want   bool
	}{
		{"valid", "k", sig, true},
		{"wrong secret", "other", sig, false},
		{"not hex", "k", "zz", false},
		{"truncated", "k", sig[:10], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.secret, payload, tt.sig); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
