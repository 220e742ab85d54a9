package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"payment-bridge/internal/core/domain"
)

// ChecksumSigner implements ports.RequestSigner.
//
// In checksum mode the verification value is
//
//	hex(sha256(base64(payload) + apiPath + saltKey)) + "###" + saltIndex
//
// and checksum_merchant additionally appends the merchant id to the digest input.
// In none mode the payload is only canonicalised.
type ChecksumSigner struct {
	mode  domain.SignatureMode
	creds domain.Credentials
}

// NewChecksumSigner creates a signer for the configured mode.
func NewChecksumSigner(mode domain.SignatureMode, creds domain.Credentials) *ChecksumSigner {
	return &ChecksumSigner{mode: mode, creds: creds}
}

// Sign canonicalises payload and computes its verification value. A nil payload
// signs the empty string, which is what GET endpoints expect.
func (s *ChecksumSigner) Sign(payload any, apiPath string) (*domain.SignedRequest, error) {
	body, err := canonicalJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("canonicalising payload: %w", err)
	}

	signed := &domain.SignedRequest{
		Payload:        body,
		EncodedPayload: base64.StdEncoding.EncodeToString(body),
		APIPath:        apiPath,
	}

	switch s.mode {
	case domain.SignatureModeChecksum:
		signed.VerificationValue = checksum(signed.EncodedPayload+apiPath+s.creds.SaltKey, s.creds.SaltIndex)
	case domain.SignatureModeChecksumMerchant:
		signed.VerificationValue = checksum(signed.EncodedPayload+apiPath+s.creds.SaltKey+s.creds.MerchantID, s.creds.SaltIndex)
	case domain.SignatureModeNone:
	default:
		return nil, fmt.Errorf("unsupported signature mode %q", s.mode)
	}
	return signed, nil
}

func checksum(input, saltIndex string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// canonicalJSON encodes payload without HTML escaping and without the
// encoder's trailing newline. Struct fields keep declaration order and map
// keys are sorted, so equal inputs always yield equal bytes.
func canonicalJSON(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return []byte{}, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return p, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
