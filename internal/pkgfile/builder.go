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

package pkgfile

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/roselite-project/roselite/internal/crypto"
	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/rerr"
)

// Builder assembles a .veilidpkg archive from a source directory and a
// set of manifest fields, in the style of a fluent construction API.
type Builder struct {
	sourceDir string
	manifest  model.Manifest

	publicKeyHex string
	secretKeyHex string
}

// NewBuilder starts a package build for name, reading static assets from
// sourceDir.
func NewBuilder(name, sourceDir string) *Builder {
	return &Builder{
		sourceDir: sourceDir,
		manifest: model.Manifest{
			Name:          name,
			FormatVersion: FormatVersion,
		},
	}
}

func (b *Builder) Version(v string) *Builder { b.manifest.Version = v; return b }
func (b *Builder) Description(v string) *Builder { b.manifest.Description = v; return b }
func (b *Builder) Developer(v string) *Builder { b.manifest.Developer = v; return b }
func (b *Builder) Author(v string) *Builder { b.manifest.Author = v; return b }
func (b *Builder) Category(v string) *Builder { b.manifest.Category = v; return b }
func (b *Builder) Entry(v string) *Builder { b.manifest.Entry = v; return b }
func (b *Builder) Tags(v []string) *Builder { b.manifest.Tags = v; return b }
func (b *Builder) Slug(v string) *Builder { b.manifest.Slug = v; return b }
func (b *Builder) Identity(v string) *Builder { b.manifest.Identity = v; return b }
func (b *Builder) Dependencies(v []string) *Builder { b.manifest.Dependencies = v; return b }
func (b *Builder) Permissions(v []model.Permission) *Builder { b.manifest.Permissions = v; return b }

// Keypair sets the signing key pair explicitly. If not called, Build
// generates a fresh Ed25519 key pair.
func (b *Builder) Keypair(publicHex, secretHex string) *Builder {
	b.publicKeyHex = publicHex
	b.secretKeyHex = secretHex
	return b
}

// Build walks sourceDir, bundles its files plus the signed manifest into
// a tar+gzip archive, and returns the resulting Package.
func (b *Builder) Build() (*Package, error) {
	if b.manifest.Identity == "" {
		b.manifest.Identity = model.GenerateSlug(b.manifest.Name) + "-" + randSuffix()
	}
	if b.manifest.FormatVersion == "" {
		b.manifest.FormatVersion = FormatVersion
	}
	now := time.Now().UTC()
	b.manifest.CreatedAt = now
	b.manifest.UpdatedAt = now

	if b.publicKeyHex == "" || b.secretKeyHex == "" {
		pub, sec, err := crypto.GenerateSigningKeyPair()
		if err != nil {
			return nil, err
		}
		b.publicKeyHex, b.secretKeyHex = pub, sec
	}

	if err := ValidateManifest(&b.manifest); err != nil {
		return nil, err
	}

	// Sign before embedding: the manifest's signature is computed over
	// its own canonical form with Signature cleared, so it can be
	// finalized before the archive is written once.
	if err := SignManifest(&b.manifest, b.publicKeyHex, b.secretKeyHex); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if b.sourceDir != "" {
		if err := addDirectoryToTar(tw, b.sourceDir); err != nil {
			return nil, err
		}
	}

	manifestJSON, err := json.Marshal(&b.manifest)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindSerializationError, "marshal manifest", err)
	}
	if err := writeTarEntry(tw, ManifestFilename, manifestJSON); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, rerr.Wrap(rerr.KindIo, "close tar writer", err)
	}
	if err := gz.Close(); err != nil {
		return nil, rerr.Wrap(rerr.KindIo, "close gzip writer", err)
	}

	data := buf.Bytes()
	return &Package{
		Manifest:  b.manifest,
		Content:   data,
		SizeBytes: uint64(len(data)),
	}, nil
}

func addDirectoryToTar(tw *tar.Writer, sourceDir string) error {
	if _, err := os.Stat(sourceDir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return rerr.Wrap(rerr.KindIo, "stat source directory", err)
	}

	return filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return rerr.Wrap(rerr.KindPackageInvalidFormat, "relative path", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return rerr.Wrap(rerr.KindIo, "read source file", err)
		}
		return writeTarEntry(tw, filepath.ToSlash(rel), data)
	})
}

func writeTarEntry(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return rerr.Wrap(rerr.KindIo, "write tar header", err)
	}
	if _, err := tw.Write(data); err != nil {
		return rerr.Wrap(rerr.KindIo, "write tar entry", err)
	}
	return nil
}

func randSuffix() string {
	nonce, err := crypto.Nonce()
	if err != nil {
		return "0"
	}
	return nonce[:8]
}
