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
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"

	"github.com/roselite-project/roselite/internal/rerr"
)

// GenerateKXKeyPair generates a new X25519 key pair, returning
// (public_hex, secret_hex), each 32 bytes.
func GenerateKXKeyPair() (publicHex, secretHex string, err error) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", rerr.Wrap(rerr.KindCryptoInitializationFailed, "x25519 key generation", err)
	}
	return hex.EncodeToString(priv.PublicKey().Bytes()), hex.EncodeToString(priv.Bytes()), nil
}

// DeriveShared computes the X25519 Diffie-Hellman shared secret between
// secretHex and peerPublicHex, returning the raw 32-byte ECDH output
// hex-encoded (not hashed), so that
// DeriveShared(a_sk, b_pk) == DeriveShared(b_sk, a_pk).
func DeriveShared(secretHex, peerPublicHex string) (string, error) {
	secretBytes, err := hex.DecodeString(secretHex)
	if err != nil {
		return "", invalidKey("malformed secret hex")
	}
	peerBytes, err := hex.DecodeString(peerPublicHex)
	if err != nil {
		return "", invalidKey("malformed peer public hex")
	}

	curve := ecdh.X25519()
	priv, err := curve.NewPrivateKey(secretBytes)
	if err != nil {
		return "", invalidKey("invalid x25519 secret")
	}
	peerPub, err := curve.NewPublicKey(peerBytes)
	if err != nil {
		return "", invalidKey("invalid x25519 peer public key")
	}

	shared, err := priv.ECDH(peerPub)
	if err != nil {
		return "", invalidKey("ecdh failed")
	}
	return hex.EncodeToString(shared), nil
}
