package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// BuildCreateIdempotencyKey is the cache key under which a successful
// payment creation result is remembered.
func BuildCreateIdempotencyKey(merchantTransactionID string) string {
	return "create:" + merchantTransactionID
}

// BuildWebhookReplayKey fingerprints a raw webhook body for replay detection.
func BuildWebhookReplayKey(rawBody []byte) string {
	sum := sha256.Sum256(rawBody)
	return hex.EncodeToString(sum[:])
}
