// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	"github.com/roselite-project/roselite/internal/rerr"
)

// GenerateSigningKeyPair generates a new Ed25519 key pair, returning
// (public_hex, secret_hex), each 32 bytes; the secret is the key seed.
func GenerateSigningKeyPair() (publicHex, secretHex string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", rerr.Wrap(rerr.KindCryptoInitializationFailed, "ed25519 key generation", err)
	}
	return hex.EncodeToString(pub), hex.EncodeToString(priv.Seed()), nil
}

// Sign returns the 64-byte Ed25519 signature over data, hex-encoded.
// secretHex is the 32-byte seed returned by GenerateSigningKeyPair.
func Sign(data []byte, secretHex string) (string, error) {
	secret, err := decodeKey(secretHex, ed25519.SeedSize)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(ed25519.NewKeyFromSeed(secret), data)
	return hex.EncodeToString(sig), nil
}

// Verify reports whether signatureHex is a valid Ed25519 signature over
// data under publicHex. It returns an error only for malformed inputs;
// a genuine mismatch returns (false, nil).
func Verify(data []byte, signatureHex, publicHex string) (bool, error) {
	pub, err := decodeKey(publicHex, ed25519.PublicKeySize)
	if err != nil {
		return false, err
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false, invalidKey("malformed signature hex")
	}
	return ed25519.Verify(ed25519.PublicKey(pub), data, sig), nil
}

func decodeKey(keyHex string, wantLen int) ([]byte, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, invalidKey("malformed key hex")
	}
	if len(key) != wantLen {
		return nil, invalidKey("wrong key length")
	}
	return key, nil
}
