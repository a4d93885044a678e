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

package gateway

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/roselite-project/roselite/internal/metrics"
)

// cacheEntry records where a domain's extracted site files live on
// disk, plus the app id they were downloaded from (empty for a
// directory adopted from disk).
type cacheEntry struct {
	extractDir string
	appID      string
}

// domainCache is the gateway's in-process map from target domain to
// its extracted site, guarded by a reader/writer lock so lookups are
// concurrent and insertion only blocks for the map update itself, not
// for extraction.
type domainCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	root    string
}

func newDomainCache(root string) *domainCache {
	return &domainCache{entries: make(map[string]*cacheEntry), root: root}
}

// lookup returns the cached entry for domain, if any.
func (c *domainCache) lookup(domain string) (*cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[domain]
	if ok {
		metrics.GatewayCacheHits.Inc()
	} else {
		metrics.GatewayCacheMisses.Inc()
	}
	return e, ok
}

// insert records entry for domain. The write lock is held only for the
// map update; extraction must already be complete.
func (c *domainCache) insert(domain string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[domain] = entry
}

// diskPath returns the on-disk extraction directory for domain,
// independent of whether it is currently in the in-process map.
func (c *domainCache) diskPath(domain string) string {
	return filepath.Join(c.root, domain)
}

// adoptFromDisk checks whether domain already has an extracted
// directory on disk and, if so, wraps it in a cacheEntry without
// re-downloading or re-extracting.
func (c *domainCache) adoptFromDisk(domain string) (*cacheEntry, bool) {
	dir := c.diskPath(domain)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	return &cacheEntry{extractDir: dir}, true
}

// replace atomically swaps domain's extraction directory: files are
// written to a staging directory, then renamed over the final path, so
// concurrent readers never observe a partially-written tree.
func (c *domainCache) replace(domain string, files map[string][]byte) (*cacheEntry, error) {
	final := c.diskPath(domain)
	staging := final + ".staging"

	if err := os.RemoveAll(staging); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, err
	}

	for name, data := range files {
		dest := filepath.Join(staging, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return nil, err
		}
	}

	if err := os.RemoveAll(final); err != nil {
		return nil, err
	}
	if err := os.Rename(staging, final); err != nil {
		return nil, err
	}

	return &cacheEntry{extractDir: final}, nil
}
