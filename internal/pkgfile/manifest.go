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

// Package pkgfile implements the .veilidpkg archive format: a tar+gzip
// bundle of an app's static assets plus an embedded, signed veilid.json
// manifest.
package pkgfile

import (
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/roselite-project/roselite/internal/crypto"
	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/rerr"
)

// ManifestFilename is the reserved path inside the archive that carries
// the package manifest.
const ManifestFilename = "veilid.json"

// FormatVersion is the manifest format this implementation writes.
const FormatVersion = "1.0.0"

func invalidManifest(reason string) error {
	return rerr.New(rerr.KindPackageInvalidManifest, reason)
}

// ValidateManifest checks that name, version, description, developer,
// and entry are non-empty. identity is also required to be non-empty.
func ValidateManifest(m *model.Manifest) error {
	switch {
	case m.Name == "":
		return invalidManifest("name cannot be empty")
	case m.Version == "":
		return invalidManifest("version cannot be empty")
	case m.Description == "":
		return invalidManifest("description cannot be empty")
	case m.Developer == "":
		return invalidManifest("developer cannot be empty")
	case m.Entry == "":
		return invalidManifest("entry point cannot be empty")
	case m.Identity == "":
		return invalidManifest("identity cannot be empty")
	}
	return nil
}

// canonicalize returns the RFC 8785 JSON Canonicalization Scheme form of
// a manifest, used as the exact byte sequence that gets signed and
// verified.
func canonicalize(m *model.Manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindSerializationError, "marshal manifest", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindSerializationError, "canonicalize manifest", err)
	}
	return canon, nil
}

// SignManifest signs m with secretHex and sets m.Signature and
// m.PublicKey. Signing is over the JCS-canonical form of m with
// Signature cleared, so verification is reproducible regardless of Go's
// map/struct field ordering.
func SignManifest(m *model.Manifest, publicHex, secretHex string) error {
	unsigned := *m
	unsigned.Signature = ""

	data, err := canonicalize(&unsigned)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(data, secretHex)
	if err != nil {
		return err
	}
	m.Signature = sig
	m.PublicKey = publicHex
	return nil
}

// VerifyManifestSignature reports whether m carries a valid signature
// over its own canonical (signature-cleared) form.
func VerifyManifestSignature(m *model.Manifest) (bool, error) {
	if m.Signature == "" || m.PublicKey == "" {
		return false, nil
	}

	unsigned := *m
	unsigned.Signature = ""

	data, err := canonicalize(&unsigned)
	if err != nil {
		return false, err
	}
	return crypto.Verify(data, m.Signature, m.PublicKey)
}
