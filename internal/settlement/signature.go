/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package settlement

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"wallet-ledger-go/internal/store"
)

// SignatureHeader carries the hex HMAC-SHA512 of the callback body
const SignatureHeader = "x-nowpayments-sig"

// SignatureVerifier checks payment processor callbacks. The MAC covers the
// payload re-serialised with keys sorted at every level, so formatting and
// key order on the wire do not matter.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

// Verify fails closed: an unset secret rejects every callback
func (v *SignatureVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: no callback secret configured", store.ErrInvalidSignature)
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) == 0 {
		return fmt.Errorf("%w: signature is not hex", store.ErrInvalidSignature)
	}

	expected, err := v.mac(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidSignature, err)
	}
	if subtle.ConstantTimeCompare(expected, given) != 1 {
		return fmt.Errorf("%w: signature mismatch", store.ErrInvalidSignature)
	}
	return nil
}

// Sign returns the signature a processor would send for payload
func (v *SignatureVerifier) Sign(payload []byte) (string, error) {
	sum, err := v.mac(payload)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

func (v *SignatureVerifier) mac(payload []byte) ([]byte, error) {
	canonical, err := canonicalize(payload)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha512.New, v.secret)
	mac.Write(canonical)
	return mac.Sum(nil), nil
}

// canonicalize re-encodes a JSON document with sorted keys, numbers kept as
// written and no HTML escaping.
func canonicalize(payload []byte) ([]byte, error) {
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("unable to encode payload: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeDocument(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("unable to decode payload: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("payload is not a JSON object")
	}
	return doc, nil
}
