package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

var ErrInvalidSecret = errors.New("api secret is not valid base64")

// SignRequest подписывает запрос к Coinbase Exchange API
//
// prehash = timestamp + METHOD + requestPath + body
// подпись = base64(HMAC-SHA256(base64decode(secret), prehash))
func SignRequest(secret, timestamp, method, requestPath, body string) (string, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", ErrInvalidSecret
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + method + requestPath + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
