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

// Package store implements the chunked publish/download protocol: a
// package's content is split across one or more content records, each
// holding up to MaxRecordBytes worth of data in ChunkSize-byte
// subkeys, and a single lookup record ties them together with the
// app's metadata.
package store

import (
	"context"
	"encoding/json"

	"github.com/roselite-project/roselite/internal/logger"
	"github.com/roselite-project/roselite/internal/metrics"
	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/pkgfile"
	"github.com/roselite-project/roselite/internal/rerr"
	"github.com/roselite-project/roselite/internal/slugindex"
)

// MaxRecordBytes bounds how much content a single content record may
// hold before a new record is started.
const MaxRecordBytes = 950_000

// ChunkSize is the size of each subkey within a content record.
const ChunkSize = 8_000

// dhtStore is the subset of dhtclient.Client the store package depends
// on; satisfied by *dhtclient.Client, and by a fake in store_test.go.
type dhtStore interface {
	CreateRecord(ctx context.Context, columns int) (string, error)
	SetSubkey(ctx context.Context, rk string, idx int, value []byte) error
	GetSubkey(ctx context.Context, rk string, idx int) ([]byte, error)
}

// Store drives publish/download against a dhtStore and, optionally,
// maintains a slug index for human-friendly lookups.
type Store struct {
	dht   dhtStore
	index slugindex.Index
	log   logger.Logger
}

// New creates a Store. index may be nil, in which case slug lookups are
// unavailable (callers address apps by AppId only).
func New(dht dhtStore, index slugindex.Index, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Store{dht: dht, index: index, log: log}
}

// Publish chunks pkg's content across one or more content records,
// writes a lookup record tying them to pkg's metadata, and returns the
// resulting locator.
func (s *Store) Publish(ctx context.Context, pkg *pkgfile.Package) (model.VeilUri, error) {
	content := pkg.Content
	if len(content) == 0 {
		return model.VeilUri{}, rerr.New(rerr.KindPackageInvalidFormat, "package content is empty")
	}

	var records []model.PackageRecord

	offset := 0
	for offset < len(content) {
		sliceLen := len(content) - offset
		if sliceLen > MaxRecordBytes {
			sliceLen = MaxRecordBytes
		}
		slice := content[offset : offset+sliceLen]

		chunks := chunkBytes(slice, ChunkSize)

		rk, err := s.dht.CreateRecord(ctx, len(chunks))
		if err != nil {
			return model.VeilUri{}, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "create content record", err)
		}
		for i, chunk := range chunks {
			if err := s.dht.SetSubkey(ctx, rk, i, chunk); err != nil {
				return model.VeilUri{}, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "write content chunk", err)
			}
		}

		records = append(records, model.PackageRecord{
			RecordKey:  rk,
			ChunkCount: len(chunks),
			SizeBytes:  int64(sliceLen),
		})
		offset += sliceLen
	}

	lookupKey, err := s.dht.CreateRecord(ctx, 1)
	if err != nil {
		return model.VeilUri{}, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "create lookup record", err)
	}

	appInfo := pkg.ToAppInfo()
	appInfo.ID = model.AppId(lookupKey)

	lookup := model.LookupRecord{
		AppInfo:        appInfo,
		PackageRecords: records,
		TotalSizeBytes: int64(len(content)),
		SchemaVersion:  model.CurrentSchemaVersion,
	}

	serialized, err := json.Marshal(&lookup)
	if err != nil {
		return model.VeilUri{}, rerr.Wrap(rerr.KindSerializationError, "marshal lookup record", err)
	}
	if len(serialized) > model.MaxLookupRecordBytes {
		return model.VeilUri{}, rerr.New(rerr.KindValidationError, "lookup record metadata exceeds 1MB limit")
	}

	if err := s.dht.SetSubkey(ctx, lookupKey, 0, serialized); err != nil {
		return model.VeilUri{}, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "write lookup record", err)
	}

	if s.index != nil {
		if err := s.index.Put(ctx, appInfo); err != nil {
			s.log.Warn("failed to update slug index after publish", logger.Error(err), logger.String("app_id", string(appInfo.ID)))
		}
	}

	metrics.PublishedApps.Inc()
	metrics.PublishBytes.Observe(float64(len(content)))

	uri := model.NewVeilUri(appInfo.ID, appInfo.Version)
	s.log.Info("published app",
		logger.String("app_id", string(appInfo.ID)),
		logger.String("version", appInfo.Version),
		logger.Int("records", len(records)),
		logger.Int("size_bytes", len(content)),
	)
	return uri, nil
}

// GetApp resolves an app's metadata from the lookup record at id,
// falling back to a legacy bare AppInfo payload for backward
// compatibility with records published before LookupRecord existed.
func (s *Store) GetApp(ctx context.Context, id model.AppId) (*model.AppInfo, error) {
	raw, err := s.dht.GetSubkey(ctx, string(id), 0)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "fetch lookup subkey", err)
	}
	if raw == nil {
		return nil, rerr.New(rerr.KindVeilidAppNotFound, "app not found").WithDetail("app_id", string(id))
	}

	var lookup model.LookupRecord
	if err := json.Unmarshal(raw, &lookup); err == nil && lookup.AppInfo.ID != "" {
		metrics.DownloadedApps.WithLabelValues("dht").Inc()
		return &lookup.AppInfo, nil
	}

	var legacy model.AppInfo
	if err := json.Unmarshal(raw, &legacy); err == nil && legacy.ID != "" {
		metrics.DownloadedApps.WithLabelValues("legacy_fallback").Inc()
		return &legacy, nil
	}

	return nil, nil
}

// Download reassembles the package content published at id,
// verifying the reassembled size matches the lookup record's declared
// total before returning.
func (s *Store) Download(ctx context.Context, id model.AppId) (*pkgfile.Package, error) {
	raw, err := s.dht.GetSubkey(ctx, string(id), 0)
	if err != nil {
		return nil, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "fetch lookup subkey", err)
	}
	if raw == nil {
		return nil, rerr.New(rerr.KindVeilidAppNotFound, "app not found").WithDetail("app_id", string(id))
	}

	var lookup model.LookupRecord
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, rerr.Wrap(rerr.KindValidationError, "invalid lookup record format", err)
	}
	if lookup.SchemaVersion != model.CurrentSchemaVersion {
		return nil, rerr.New(rerr.KindValidationError, "unsupported lookup record schema version: "+lookup.SchemaVersion)
	}

	buf := make([]byte, 0, lookup.TotalSizeBytes)
	for _, pr := range lookup.PackageRecords {
		for i := 0; i < pr.ChunkCount; i++ {
			chunk, err := s.dht.GetSubkey(ctx, pr.RecordKey, i)
			if err != nil {
				return nil, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "fetch content chunk", err)
			}
			if chunk == nil {
				return nil, rerr.New(rerr.KindVeilidAppNotFound, "app not found").WithDetail("record_key", pr.RecordKey)
			}
			buf = append(buf, chunk...)
			metrics.ChunksFetched.Inc()
		}
	}

	if int64(len(buf)) != lookup.TotalSizeBytes {
		return nil, rerr.New(rerr.KindValidationError, "downloaded content size doesn't match expected size")
	}

	pkg, err := pkgfile.FromBytes(buf)
	if err != nil {
		return nil, err
	}

	metrics.DownloadedApps.WithLabelValues("dht").Inc()
	s.log.Info("downloaded app", logger.String("app_id", string(id)), logger.Int("size_bytes", len(buf)))
	return pkg, nil
}

// chunkBytes partitions data into consecutive size-byte slices, the
// last possibly short. No zero-length chunk is ever produced: when
// data's length is an exact multiple of size no trailing empty chunk is
// appended, and empty data yields nil.
func chunkBytes(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(data)+size-1)/size)
	for offset := 0; offset < len(data); offset += size {
		end := offset + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[offset:end])
	}
	return chunks
}
