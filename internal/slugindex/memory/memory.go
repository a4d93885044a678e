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

// Package memory implements slugindex.Index backed by an in-process
// map, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roselite-project/roselite/internal/model"
)

// Index is an in-memory slugindex.Index.
type Index struct {
	mu    sync.RWMutex
	byID  map[model.AppId]model.AppInfo
	slugs map[string]model.AppId
}

// New returns an empty Index.
func New() *Index {
	return &Index{
		byID:  make(map[model.AppId]model.AppInfo),
		slugs: make(map[string]model.AppId),
	}
}

// Put inserts or replaces app, deep-copying tags to avoid aliasing the
// caller's slice.
func (idx *Index) Put(ctx context.Context, app model.AppInfo) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cp := app
	if app.Tags != nil {
		cp.Tags = append([]string(nil), app.Tags...)
	}

	idx.byID[app.ID] = cp
	if app.Slug != "" {
		idx.slugs[app.Slug] = app.ID
	}
	return nil
}

// Get returns the AppInfo stored for id.
func (idx *Index) Get(ctx context.Context, id model.AppId) (*model.AppInfo, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	app, ok := idx.byID[id]
	if !ok {
		return nil, fmt.Errorf("app not found: %s", id)
	}
	cp := app
	return &cp, nil
}

// GetBySlug resolves slug to its AppInfo.
func (idx *Index) GetBySlug(ctx context.Context, slug string) (*model.AppInfo, error) {
	idx.mu.RLock()
	id, ok := idx.slugs[slug]
	idx.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("slug not found: %s", slug)
	}
	return idx.Get(ctx, id)
}

// Delete removes id and its slug mapping.
func (idx *Index) Delete(ctx context.Context, id model.AppId) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	app, ok := idx.byID[id]
	if !ok {
		return nil
	}
	delete(idx.byID, id)
	if app.Slug != "" {
		delete(idx.slugs, app.Slug)
	}
	return nil
}

// Search scans every entry for matches, applying the same filter
// semantics used by the Postgres backend, and returns them sorted
// according to filter.SortBy.
func (idx *Index) Search(ctx context.Context, filter model.SearchFilter) ([]model.AppInfo, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := make([]model.AppInfo, 0, len(idx.byID))
	for _, app := range idx.byID {
		if !matchesFilter(app, filter) {
			continue
		}
		matches = append(matches, app)
	}

	sortApps(matches, filter.SortBy)

	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

// Close is a no-op for the in-memory backend.
func (idx *Index) Close() error {
	return nil
}

func matchesFilter(app model.AppInfo, filter model.SearchFilter) bool {
	if filter.Query != "" {
		q := strings.ToLower(filter.Query)
		if !strings.Contains(strings.ToLower(app.Name), q) &&
			!strings.Contains(strings.ToLower(app.Description), q) {
			return false
		}
	}
	if filter.Category != "" && app.Category != filter.Category {
		return false
	}
	if filter.Developer != "" && app.Developer != filter.Developer {
		return false
	}
	if filter.MinRating > 0 && app.Rating < filter.MinRating {
		return false
	}
	if filter.MaxSizeBytes > 0 && app.SizeBytes > filter.MaxSizeBytes {
		return false
	}
	for _, tag := range filter.Tags {
		if !containsString(app.Tags, tag) {
			return false
		}
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func sortApps(apps []model.AppInfo, by model.SortBy) {
	switch by {
	case model.SortByName:
		sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	case model.SortByRating:
		sort.Slice(apps, func(i, j int) bool { return apps[i].Rating > apps[j].Rating })
	case model.SortByDownloads:
		sort.Slice(apps, func(i, j int) bool { return apps[i].DownloadCount > apps[j].DownloadCount })
	case model.SortByDeveloper:
		sort.Slice(apps, func(i, j int) bool { return apps[i].Developer < apps[j].Developer })
	case model.SortByDate:
		fallthrough
	default:
		sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	}
}
