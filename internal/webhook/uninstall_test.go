package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signedRequest(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	encodedPayload := base64.RawURLEncoding.EncodeToString(payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(encodedPayload))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return signature + "." + encodedPayload
}

func TestDecodeSignedRequest(t *testing.T) {
	payload := []byte(`{"community_id":987,"algorithm":"HMAC-SHA256"}`)
	sr := signedRequest(t, "app-secret", payload)

	decoded, err := decodeSignedRequest(sr, "app-secret")
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded) != string(payload) {
		t.Fatalf("payload mangled: %q", decoded)
	}
}

func TestDecodeSignedRequestWrongSecret(t *testing.T) {
	sr := signedRequest(t, "app-secret", []byte(`{"community_id":987}`))
	if _, err := decodeSignedRequest(sr, "other-secret"); err == nil {
		t.Fatal("expected verification failure with wrong secret")
	}
}

func TestDecodeSignedRequestMalformed(t *testing.T) {
	for _, sr := range []string{"", "onlyonepart", "a.b.c", "!!!.!!!"} {
		if _, err := decodeSignedRequest(sr, "app-secret"); err == nil {
			t.Fatalf("expected error for %q", sr)
		}
	}
}
