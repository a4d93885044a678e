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

// Package slugindex defines the optional human-friendly index from a
// package's slug/name to its DHT lookup record identifier. The DHT
// itself is the source of truth for app content; this index only
// speeds up search and slug-based resolution, and is safe to rebuild
// from scratch by re-publishing.
package slugindex

import (
	"context"

	"github.com/roselite-project/roselite/internal/model"
)

// Index stores and searches AppInfo records keyed by app ID and slug.
type Index interface {
	// Put inserts or replaces the entry for app.ID, including its slug
	// mapping when app.Slug is set.
	Put(ctx context.Context, app model.AppInfo) error

	// Get looks up an app by its DHT lookup record identifier.
	Get(ctx context.Context, id model.AppId) (*model.AppInfo, error)

	// GetBySlug resolves a human-friendly slug to its AppInfo.
	GetBySlug(ctx context.Context, slug string) (*model.AppInfo, error)

	// Delete removes the entry for id, if present.
	Delete(ctx context.Context, id model.AppId) error

	// Search returns apps matching filter.
	Search(ctx context.Context, filter model.SearchFilter) ([]model.AppInfo, error)

	// Close releases any resources held by the index.
	Close() error
}

// appKey is the canonical key an app's metadata is stored under, per
// the original store's naming scheme.
func appKey(id model.AppId) string {
	return "app:" + string(id)
}

// indexKey is the canonical key a category/tag index would live under
// (reserved for future secondary indexing; unused by the in-memory and
// Postgres backends, which scan directly).
func indexKey(category string) string {
	return "index:" + category
}

// slugMappingKey maps a human slug to its app ID.
func slugMappingKey(slug string) string {
	return "slug:" + slug
}
