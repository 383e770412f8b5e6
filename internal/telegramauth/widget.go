package telegramauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid telegram authentication data")
	ErrExpiredAuth      = errors.New("telegram authentication data is too old")
)

const (
	// WidgetMaxAge bounds how old a widget login may be.
	WidgetMaxAge = 24 * time.Hour
	// WidgetClockSkew is how far auth_date may run ahead of the server clock.
	WidgetClockSkew = 5 * time.Minute
)

// CheckWidget verifies Login Widget fields: an HMAC-SHA256 of every received
// field as sorted "key=value" lines (hash excluded), keyed with sha256(botToken).
func CheckWidget(fields map[string]string, botToken string, now time.Time) error {
	hash := fields["hash"]
	if hash == "" || botToken == "" {
		return ErrInvalidSignature
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(hash))) {
		return ErrInvalidSignature
	}

	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(authDate, 0))
	if age > WidgetMaxAge {
		return ErrExpiredAuth
	}
	if age < -WidgetClockSkew {
		return ErrInvalidSignature
	}
	return nil
}
