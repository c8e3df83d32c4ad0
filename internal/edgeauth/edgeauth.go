// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package edgeauth signs the Edge-Auth header written on every outbound
// forward to an origin backend (spec §6). This is pure HMAC-SHA256 over a
// small fixed-format string; the stdlib crypto primitives are the right
// tool here (see DESIGN.md — no third-party signing library in the
// example corpus fits a payload this small better than crypto/hmac).
package edgeauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"grimm.is/edgesentry/internal/errors"
)

// HeaderName is the outbound header name carrying the signature (§6).
const HeaderName = "Edge-Auth"

// popEnvVar is the environment variable the POP identifier is sourced
// from; a missing value becomes the empty string (§6).
const popEnvVar = "EDGESENTRY_POP_ID"

// POP returns the point-of-presence identifier from the environment, or
// the empty string if unset.
func POP() string {
	return os.Getenv(popEnvVar)
}

// Sign computes the Edge-Auth header value for the given shared secret and
// POP identifier at time now: "<unix_seconds>,<pop_id>,0x<hex(hmac)>"
// where the HMAC is computed over "<unix_seconds>,<pop_id>" (§6). An empty
// secret is a hard failure (§7 AuthSecretMissing) — the system refuses to
// forward un-signed.
func Sign(secret, pop string, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New(errors.KindAuthMissing, "edge-auth shared secret is missing")
	}

	ts := strconv.FormatInt(now.Unix(), 10)
	payload := ts + "," + pop

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	digest := mac.Sum(nil)

	return fmt.Sprintf("%s,0x%s", payload, hex.EncodeToString(digest)), nil
}

// Verify recomputes the signature for a received header value against
// secret and reports whether it matches, using constant-time comparison.
// maxSkew bounds how far the embedded timestamp may drift from now before
// the header is rejected as stale.
func Verify(headerValue, secret string, now time.Time, maxSkew time.Duration) bool {
	parts := splitN3(headerValue)
	if parts == nil {
		return false
	}
	ts, pop, hexDigest := parts[0], parts[1], parts[2]

	epoch, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	signedAt := time.Unix(epoch, 0)
	if d := now.Sub(signedAt); d > maxSkew || d < -maxSkew {
		return false
	}

	want, err := Sign(secret, pop, signedAt)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(ts+","+pop+","+hexDigest))
}

// splitN3 splits "a,b,c" into exactly three comma-separated parts where c
// itself may not contain commas (the hex digest never does), or returns
// nil if the value doesn't have that shape.
func splitN3(s string) []string {
	first := indexByte(s, ',')
	if first < 0 {
		return nil
	}
	second := indexByte(s[first+1:], ',')
	if second < 0 {
		return nil
	}
	second += first + 1
	return []string{s[:first], s[first+1 : second], s[second+1:]}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
