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
	"io"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/rerr"
)

// Package is a loaded .veilidpkg archive: its manifest plus the raw
// tar+gzip bytes it was parsed from.
type Package struct {
	Manifest  model.Manifest
	Content   []byte
	SizeBytes uint64
}

// FromFile reads and parses a .veilidpkg file from disk.
func FromFile(path string) (*Package, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindIo, "read package file", err)
	}
	return FromBytes(content)
}

// FromBytes parses a .veilidpkg archive already held in memory: it
// locates the embedded manifest, decodes it, and validates required
// fields.
func FromBytes(content []byte) (*Package, error) {
	manifestContent, err := readArchiveEntry(content, ManifestFilename)
	if err != nil {
		return nil, err
	}
	if manifestContent == nil {
		return nil, rerr.New(rerr.KindPackageMissingManifest, "archive does not contain "+ManifestFilename)
	}

	var manifest model.Manifest
	if err := json.Unmarshal(manifestContent, &manifest); err != nil {
		return nil, rerr.Wrap(rerr.KindPackageInvalidManifest, "decode manifest json", err)
	}
	if err := ValidateManifest(&manifest); err != nil {
		return nil, err
	}

	return &Package{
		Manifest:  manifest,
		Content:   content,
		SizeBytes: uint64(len(content)),
	}, nil
}

// ToAppInfo projects the package's manifest into an AppInfo listing
// entry. download_count and rating start at zero; created_at/updated_at
// are stamped with the current time since the archive itself carries no
// publish timestamp.
func (p *Package) ToAppInfo() model.AppInfo {
	now := time.Now().UTC()
	return model.AppInfo{
		ID:             model.AppId(p.Manifest.Identity),
		Name:           p.Manifest.Name,
		Slug:           p.Manifest.EnsureSlug(),
		Version:        p.Manifest.Version,
		Description:    p.Manifest.Description,
		Developer:      p.Manifest.Developer,
		Category:       p.Manifest.Category,
		SizeBytes:      p.SizeBytes,
		DownloadCount:  0,
		Rating:         0,
		CreatedAt:      now,
		UpdatedAt:      now,
		Tags:           p.Manifest.Tags,
		EntryPoint:     p.Manifest.Entry,
		VeilidIdentity: p.Manifest.Identity,
	}
}

// VerifySignature reports whether the package's embedded manifest
// signature is valid.
func (p *Package) VerifySignature() (bool, error) {
	return VerifyManifestSignature(&p.Manifest)
}

// ExtractFiles decompresses the archive and returns every file it
// contains, keyed by forward-slash web path, excluding the manifest
// itself.
func (p *Package) ExtractFiles() (map[string][]byte, error) {
	files := make(map[string][]byte)

	err := walkArchive(p.Content, func(name string, r io.Reader) error {
		if name == ManifestFilename {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		files[strings.ReplaceAll(name, "\\", "/")] = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetEntryFile returns the content of the manifest's declared entry
// point file.
func (p *Package) GetEntryFile() ([]byte, error) {
	files, err := p.ExtractFiles()
	if err != nil {
		return nil, err
	}
	data, ok := files[p.Manifest.Entry]
	if !ok {
		return nil, invalidManifest("entry file '" + p.Manifest.Entry + "' not found in package")
	}
	return data, nil
}

// GetFile returns a single file's content, or (nil, nil) if path is not
// present in the archive.
func (p *Package) GetFile(path string) ([]byte, error) {
	files, err := p.ExtractFiles()
	if err != nil {
		return nil, err
	}
	return files[path], nil
}

// ListFiles returns the web paths of every file in the archive.
func (p *Package) ListFiles() ([]string, error) {
	files, err := p.ExtractFiles()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	return names, nil
}

// readArchiveEntry returns the content of a single named entry, or nil
// if it is not present.
func readArchiveEntry(content []byte, name string) ([]byte, error) {
	var found []byte
	err := walkArchive(content, func(entryName string, r io.Reader) error {
		if entryName != name {
			return nil
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		found = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func walkArchive(content []byte, fn func(name string, r io.Reader) error) error {
	gz, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return rerr.Wrap(rerr.KindPackageInvalidFormat, "open gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return rerr.Wrap(rerr.KindPackageInvalidFormat, "read tar entry", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(hdr.Name, tr); err != nil {
			return err
		}
	}
}
