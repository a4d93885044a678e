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

// Package model holds the data types shared across roselite's components:
// the Manifest/Package record shapes from the wire protocol, and the
// AppInfo projection used for discovery and search.
package model

import (
	"fmt"
	"strings"
	"time"
)

// AppId is the lookup record identifier for a published app.
type AppId string

// VeilUri is the shareable locator for an app, e.g. veil:///app/<id>/<version>.
type VeilUri struct {
	Scheme  string
	AppID   AppId
	Version string // empty means "latest"
}

func NewVeilUri(appID AppId, version string) VeilUri {
	return VeilUri{Scheme: "veil", AppID: appID, Version: version}
}

func (u VeilUri) String() string {
	if u.Version == "" {
		return fmt.Sprintf("%s:///app/%s", u.Scheme, u.AppID)
	}
	return fmt.Sprintf("%s:///app/%s/%s", u.Scheme, u.AppID, u.Version)
}

// ParseVeilUri accepts both "veil:///app/<id>[/<version>]" and the
// two-slash equivalent "veil://app/<id>[/<version>]".
func ParseVeilUri(s string) (VeilUri, error) {
	const prefix3 = "veil:///app/"
	const prefix2 = "veil://app/"

	rest := ""
	switch {
	case strings.HasPrefix(s, prefix3):
		rest = s[len(prefix3):]
	case strings.HasPrefix(s, prefix2):
		rest = s[len(prefix2):]
	default:
		return VeilUri{}, fmt.Errorf("invalid veil uri: %s", s)
	}
	if rest == "" {
		return VeilUri{}, fmt.Errorf("invalid veil uri: missing app id: %s", s)
	}

	parts := strings.SplitN(rest, "/", 2)
	uri := VeilUri{Scheme: "veil", AppID: AppId(parts[0])}
	if len(parts) == 2 {
		uri.Version = parts[1]
	}
	return uri, nil
}

// Permission names a sandboxing capability a package may request.
type Permission string

const (
	PermissionNetwork    Permission = "network"
	PermissionFileSystem Permission = "filesystem"
	PermissionCamera     Permission = "camera"
	PermissionMicrophone Permission = "microphone"
	PermissionClipboard  Permission = "clipboard"
)

// Manifest is the veilid.json payload embedded in every package.
type Manifest struct {
	Name           string       `json:"name"`
	Version        string       `json:"version"`
	Description    string       `json:"description"`
	Developer      string       `json:"developer"`
	Author         string       `json:"author"`
	Category       string       `json:"category"`
	Entry          string       `json:"entry"`
	Tags           []string     `json:"tags"`
	Slug           string       `json:"slug"`
	Identity       string       `json:"identity"`
	PublicKey      string       `json:"public_key"`
	Signature      string       `json:"signature"`
	FormatVersion  string       `json:"format_version"`
	Dependencies   []string     `json:"dependencies"`
	Permissions    []Permission `json:"permissions"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// GenerateSlug derives a URL-safe identifier from an app name: lowercase,
// alphanumerics kept, whitespace/-/_ folded to '-', leading/trailing '-'
// trimmed. Runs of '-' are left untouched.
func GenerateSlug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-' || r == '_':
			b.WriteRune('-')
		default:
			// dropped
		}
	}
	return strings.Trim(b.String(), "-")
}

// EnsureSlug returns m.Slug if set, otherwise a slug generated from m.Name.
func (m *Manifest) EnsureSlug() string {
	if m.Slug != "" {
		return m.Slug
	}
	return GenerateSlug(m.Name)
}

// Validate checks the required-non-empty fields per spec.
func (m *Manifest) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("name cannot be empty")
	case m.Version == "":
		return fmt.Errorf("version cannot be empty")
	case m.Entry == "":
		return fmt.Errorf("entry point cannot be empty")
	case m.Identity == "":
		return fmt.Errorf("identity cannot be empty")
	}
	return nil
}

// AppInfo is the publishable metadata projection of a Manifest.
type AppInfo struct {
	ID             AppId     `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Version        string    `json:"version"`
	Description    string    `json:"description"`
	Developer      string    `json:"developer"`
	Category       string    `json:"category"`
	SizeBytes      uint64    `json:"size_bytes"`
	DownloadCount  uint64    `json:"download_count"`
	Rating         float32   `json:"rating"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Tags           []string  `json:"tags"`
	EntryPoint     string    `json:"entry_point"`
	VeilidIdentity string    `json:"veilid_identity,omitempty"`
	Signature      string    `json:"signature,omitempty"`
}

// URI returns the versioned locator for this app.
func (a AppInfo) URI() VeilUri { return NewVeilUri(a.ID, a.Version) }

// URILatest returns the unversioned locator for this app.
func (a AppInfo) URILatest() VeilUri { return NewVeilUri(a.ID, "") }

// AccessURL returns an HTTPS web-compatible access URL for this version.
func (a AppInfo) AccessURL() string {
	return fmt.Sprintf("https://www.roselite.app/access/%s/%s", a.ID, a.Version)
}

// AccessURLLatest returns an HTTPS web-compatible access URL for latest.
func (a AppInfo) AccessURLLatest() string {
	return fmt.Sprintf("https://www.roselite.app/access/%s", a.ID)
}

// SortBy names the supported orderings for app search.
type SortBy string

const (
	SortByName      SortBy = "name"
	SortByDate      SortBy = "date"
	SortByRating    SortBy = "rating"
	SortByDownloads SortBy = "downloads"
	SortByDeveloper SortBy = "developer"
)

// SearchFilter narrows a listing of published apps.
type SearchFilter struct {
	Query       string
	Category    string
	Tags        []string
	Developer   string
	MinRating   float32
	MaxSizeBytes uint64
	SortBy      SortBy
	Limit       int
}

// PackageRecord describes one content record's placement within a
// published package's chunked storage.
type PackageRecord struct {
	RecordKey  string `json:"record_key"`
	ChunkCount int    `json:"chunk_count"`
	SizeBytes  int64  `json:"size_bytes"`
}

// LookupRecord is the subkey-0 payload of a lookup record: it carries the
// app's metadata and the ordered list of content records needed to
// reassemble the package.
type LookupRecord struct {
	AppInfo         AppInfo         `json:"app_info"`
	PackageRecords  []PackageRecord `json:"package_records"`
	TotalSizeBytes  int64           `json:"total_size_bytes"`
	SchemaVersion   string          `json:"schema_version"`
}

// CurrentSchemaVersion is the only schema_version this implementation
// writes. Older lookup records lacking this field are still read via
// the legacy AppInfo fallback for one schema generation.
const CurrentSchemaVersion = "1.0"

// MaxLookupRecordBytes bounds LookupRecord's serialized size.
const MaxLookupRecordBytes = 1_000_000
