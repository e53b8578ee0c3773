package helper

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

var urlSafe = strings.NewReplacer("+", "-", "/", "_")

func GenerateBodySign(bodyJson string, appSecret string) (string, error) {
	h := hmac.New(sha256.New, []byte(appSecret))
	h.Write([]byte(bodyJson))
	signature := h.Sum(nil)

	return urlSafe.Replace(base64.StdEncoding.EncodeToString(signature)), nil
}

// VerifyBodySign checks a bodysign header against the raw request body.
func VerifyBodySign(body []byte, appSecret, bodySign string) bool {
	expected, _ := GenerateBodySign(string(body), appSecret)
	return hmac.Equal([]byte(expected), []byte(bodySign))
}
