package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// tokenLength はstate/CSRFトークンの文字数。
	tokenLength = 32
	// tokenAlphabet はトークンに使用する文字集合（英大文字+数字）。
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateToken は英大文字と数字からなる32文字のトークンを生成する。
// サインインstateとCSRFトークンの両方に使用される。
// crypto/randを乱数源とし、剰余の偏りを避けるため棄却サンプリングを行う。
func GenerateToken() (string, error) {
	// 252 = 36 * 7。252以上のバイト値を棄却すると36文字への剰余写像が一様になる。
	const limit = byte(len(tokenAlphabet) * (256 / len(tokenAlphabet)))

	token := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(token) < tokenLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == tokenLength {
				break
			}
		}
	}

	return string(token), nil
}

// GenerateSessionID は暗号的に安全なセッションIDを生成する。
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
