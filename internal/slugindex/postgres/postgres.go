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

// Package postgres implements slugindex.Index backed by PostgreSQL,
// for gateway deployments large enough to need the index to survive a
// restart without replaying every lookup record from the DHT.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roselite-project/roselite/internal/model"
)

// Schema is the DDL New expects to already exist; migrations are
// applied out of band by the deployment tooling, not by this package.
const Schema = `
CREATE TABLE IF NOT EXISTS roselite_apps (
	id              TEXT PRIMARY KEY,
	slug            TEXT UNIQUE,
	name            TEXT NOT NULL,
	version         TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	developer       TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	size_bytes      BIGINT NOT NULL DEFAULT 0,
	download_count  BIGINT NOT NULL DEFAULT 0,
	rating          REAL NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	tags            JSONB NOT NULL DEFAULT '[]',
	entry_point     TEXT NOT NULL DEFAULT '',
	veilid_identity TEXT NOT NULL DEFAULT '',
	signature       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS roselite_apps_category_idx ON roselite_apps (category);
CREATE INDEX IF NOT EXISTS roselite_apps_developer_idx ON roselite_apps (developer);
`

// Index is a PostgreSQL-backed slugindex.Index.
type Index struct {
	pool *pgxpool.Pool
}

// New connects to dsn and returns an Index. Callers are expected to
// have already applied Schema.
func New(ctx context.Context, dsn string) (*Index, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Index{pool: pool}, nil
}

// HealthCheck reports the database connection's reachability, suitable
// for registration with pkg/health.HealthChecker under the name
// "database".
func (idx *Index) HealthCheck(ctx context.Context) error {
	return idx.pool.Ping(ctx)
}

// Put upserts app.
func (idx *Index) Put(ctx context.Context, app model.AppInfo) error {
	tags, err := json.Marshal(app.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		INSERT INTO roselite_apps (
			id, slug, name, version, description, developer, category,
			size_bytes, download_count, rating, created_at, updated_at,
			tags, entry_point, veilid_identity, signature
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			description = EXCLUDED.description,
			developer = EXCLUDED.developer,
			category = EXCLUDED.category,
			size_bytes = EXCLUDED.size_bytes,
			download_count = EXCLUDED.download_count,
			rating = EXCLUDED.rating,
			updated_at = EXCLUDED.updated_at,
			tags = EXCLUDED.tags,
			entry_point = EXCLUDED.entry_point,
			veilid_identity = EXCLUDED.veilid_identity,
			signature = EXCLUDED.signature
	`
	_, err = idx.pool.Exec(ctx, query,
		string(app.ID), nullableSlug(app.Slug), app.Name, app.Version, app.Description,
		app.Developer, app.Category, int64(app.SizeBytes), int64(app.DownloadCount),
		app.Rating, app.CreatedAt, app.UpdatedAt, tags, app.EntryPoint,
		app.VeilidIdentity, app.Signature,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert app: %w", err)
	}
	return nil
}

// Get retrieves the app stored under id.
func (idx *Index) Get(ctx context.Context, id model.AppId) (*model.AppInfo, error) {
	return idx.scanOne(ctx, "SELECT "+selectColumns+" FROM roselite_apps WHERE id = $1", string(id))
}

// GetBySlug resolves slug to its AppInfo.
func (idx *Index) GetBySlug(ctx context.Context, slug string) (*model.AppInfo, error) {
	return idx.scanOne(ctx, "SELECT "+selectColumns+" FROM roselite_apps WHERE slug = $1", slug)
}

// Delete removes the row for id.
func (idx *Index) Delete(ctx context.Context, id model.AppId) error {
	_, err := idx.pool.Exec(ctx, "DELETE FROM roselite_apps WHERE id = $1", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete app: %w", err)
	}
	return nil
}

// Search runs filter as a dynamic WHERE clause against roselite_apps.
func (idx *Index) Search(ctx context.Context, filter model.SearchFilter) ([]model.AppInfo, error) {
	where, args := buildWhere(filter)
	order := orderClause(filter.SortBy)

	query := fmt.Sprintf("SELECT %s FROM roselite_apps %s %s", selectColumns, where, order)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := idx.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search apps: %w", err)
	}
	defer rows.Close()

	var results []model.AppInfo
	for rows.Next() {
		app, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *app)
	}
	return results, rows.Err()
}

// Close releases the connection pool.
func (idx *Index) Close() error {
	idx.pool.Close()
	return nil
}

const selectColumns = `id, slug, name, version, description, developer, category,
	size_bytes, download_count, rating, created_at, updated_at, tags,
	entry_point, veilid_identity, signature`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*model.AppInfo, error) {
	var app model.AppInfo
	var slug *string
	var tags []byte

	if err := row.Scan(
		&app.ID, &slug, &app.Name, &app.Version, &app.Description, &app.Developer,
		&app.Category, &app.SizeBytes, &app.DownloadCount, &app.Rating,
		&app.CreatedAt, &app.UpdatedAt, &tags, &app.EntryPoint, &app.VeilidIdentity,
		&app.Signature,
	); err != nil {
		return nil, err
	}
	if slug != nil {
		app.Slug = *slug
	}
	if len(tags) > 0 {
		_ = json.Unmarshal(tags, &app.Tags)
	}
	return &app, nil
}

func (idx *Index) scanOne(ctx context.Context, query string, arg string) (*model.AppInfo, error) {
	row := idx.pool.QueryRow(ctx, query, arg)
	app, err := scanRow(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("app not found: %s", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return app, nil
}

func buildWhere(filter model.SearchFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.Developer != "" {
		add("developer = $%d", filter.Developer)
	}
	if filter.MinRating > 0 {
		add("rating >= $%d", filter.MinRating)
	}
	if filter.MaxSizeBytes > 0 {
		add("size_bytes <= $%d", int64(filter.MaxSizeBytes))
	}

	if len(conditions) == 0 {
		return "", args
	}
	where := "WHERE " + conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	return where, args
}

func orderClause(by model.SortBy) string {
	switch by {
	case model.SortByName:
		return "ORDER BY name ASC"
	case model.SortByRating:
		return "ORDER BY rating DESC"
	case model.SortByDownloads:
		return "ORDER BY download_count DESC"
	case model.SortByDeveloper:
		return "ORDER BY developer ASC"
	default:
		return "ORDER BY created_at DESC"
	}
}

func nullableSlug(slug string) interface{} {
	if slug == "" {
		return nil
	}
	return slug
}
