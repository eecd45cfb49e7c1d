package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func TestSignRequest(t *testing.T) {
	secret := base64.StdEncoding.EncodeToString([]byte("coinbase-secret"))

	got, err := SignRequest(secret, "1700000000", "GET", "/accounts", "")
	if err != nil {
		t.Fatalf("SignRequest failed: %v", err)
	}

	mac := hmac.New(sha256.New, []byte("coinbase-secret"))
	mac.Write([]byte("1700000000GET/accounts"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Errorf("signature = %s, want %s", got, want)
	}

	other, _ := SignRequest(secret, "1700000001", "GET", "/accounts", "")
	if other == got {
		t.Error("timestamp must affect signature")
	}
}

func TestSignRequest_InvalidSecret(t *testing.T) {
	if _, err := SignRequest("%%%", "1", "GET", "/accounts", ""); err != ErrInvalidSecret {
		t.Errorf("err = %v, want ErrInvalidSecret", err)
	}
}
