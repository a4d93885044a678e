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

// Package gateway serves published apps over HTTP: it resolves a
// request's Host header to a DHT lookup record via DNS TXT records,
// downloads and extracts the package on first sight of a domain, and
// serves files from the extracted directory on subsequent requests.
package gateway

import (
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/roselite-project/roselite/internal/logger"
	"github.com/roselite-project/roselite/internal/metrics"
	"github.com/roselite-project/roselite/internal/model"
	"github.com/roselite-project/roselite/internal/pkgfile"
)

// downloader is the subset of store.Store the gateway depends on.
type downloader interface {
	Download(ctx context.Context, id model.AppId) (*pkgfile.Package, error)
}

// resolver is the subset of dnsresolver.Resolver the gateway depends on.
type resolver interface {
	ResolveAppID(ctx context.Context, domain string) (string, error)
}

// Gateway dispatches HTTP requests to cached, extracted app content
// keyed by the requesting Host header.
type Gateway struct {
	store             downloader
	dns               resolver
	gatewayHost       string
	cache             *domainCache
	group             singleflight.Group
	log               logger.Logger
	verifyManifestSig bool
}

// New creates a Gateway. gatewayHost is the bare host (no port) that
// serves the welcome page instead of dispatching to a published app;
// cacheRoot is the on-disk directory under which each target domain's
// extracted files are stored. verifyManifestOnServe mirrors
// config.GatewayConfig.VerifyManifestOnServe: when true, a downloaded
// package's manifest signature is checked before extraction, and a
// failed check is treated the same as a download failure.
func New(store downloader, dns resolver, gatewayHost, cacheRoot string, verifyManifestOnServe bool, log logger.Logger) *Gateway {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Gateway{
		store:             store,
		dns:               dns,
		gatewayHost:       gatewayHost,
		cache:             newDomainCache(cacheRoot),
		log:               log,
		verifyManifestSig: verifyManifestOnServe,
	}
}

// ServeHTTP implements http.Handler, dispatching every request through
// host-based resolution regardless of method or path shape.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := g.serve(w, r)
	metrics.GatewayRequestsTotal.WithLabelValues(fmt.Sprintf("%d", status)).Inc()
	metrics.GatewayRequestDuration.Observe(time.Since(start).Seconds())
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) int {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	host := hostWithoutPort(r.Host)

	if host == g.gatewayHost {
		g.serveWelcome(rec)
		return rec.status
	}

	targetDomain := strings.TrimSuffix(strings.TrimSuffix(host, g.gatewayHost), ".")
	if targetDomain == "" {
		targetDomain = host
	}

	if entry, ok := g.cache.lookup(targetDomain); ok {
		serveStatic(rec, entry.extractDir, r.URL.Path)
		return rec.status
	}

	if entry, ok := g.cache.adoptFromDisk(targetDomain); ok {
		g.cache.insert(targetDomain, entry)
		serveStatic(rec, entry.extractDir, r.URL.Path)
		return rec.status
	}

	appID, err := g.dns.ResolveAppID(r.Context(), targetDomain)
	if err != nil || appID == "" {
		g.serveDomainNotConfigured(rec, targetDomain)
		return rec.status
	}

	entry, err := g.populate(r.Context(), targetDomain, appID)
	if err != nil {
		g.log.Warn("download failed for domain",
			logger.String("domain", targetDomain),
			logger.String("app_id", appID),
			logger.Error(err),
		)
		g.serveDownloadFailed(rec, targetDomain)
		return rec.status
	}

	serveStatic(rec, entry.extractDir, r.URL.Path)
	return rec.status
}

// populate downloads and extracts appID for domain, coalescing
// concurrent misses for the same domain via singleflight so only one
// download/extraction runs at a time.
func (g *Gateway) populate(ctx context.Context, domain, appID string) (*cacheEntry, error) {
	v, err, _ := g.group.Do(domain, func() (interface{}, error) {
		if entry, ok := g.cache.lookup(domain); ok {
			return entry, nil
		}

		pkg, err := g.store.Download(ctx, model.AppId(appID))
		if err != nil {
			return nil, err
		}
		if g.verifyManifestSig {
			ok, err := pkg.VerifySignature()
			if err != nil || !ok {
				return nil, fmt.Errorf("manifest signature verification failed")
			}
		}
		files, err := pkg.ExtractFiles()
		if err != nil {
			return nil, err
		}
		entry, err := g.cache.replace(domain, files)
		if err != nil {
			return nil, err
		}
		entry.appID = appID
		g.cache.insert(domain, entry)
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*cacheEntry), nil
}

func (g *Gateway) serveWelcome(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(welcomeHTML))
}

func (g *Gateway) serveDomainNotConfigured(w http.ResponseWriter, domain string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := domainNotConfiguredTmpl.Execute(w, domain); err != nil {
		g.log.Warn("render error page failed", logger.Error(err))
	}
}

func (g *Gateway) serveDownloadFailed(w http.ResponseWriter, domain string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := downloadFailedTmpl.Execute(w, domain); err != nil {
		g.log.Warn("render error page failed", logger.Error(err))
	}
}

// hostWithoutPort strips an optional :port suffix from host, tolerating
// hosts without one (net.SplitHostPort errors in that case).
func hostWithoutPort(host string) string {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		return host
	}
	return h
}

// statusRecorder captures the status code written through it so serve
// can report it to metrics without re-deriving it from headers.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

const welcomeHTML = `<!DOCTYPE html>
<html><head><title>roselite</title></head>
<body><h1>roselite gateway</h1><p>Point a domain's TXT record at a published app to serve it here.</p></body>
</html>`

var domainNotConfiguredTmpl = template.Must(template.New("domainNotConfigured").Parse(`<!DOCTYPE html>
<html><head><title>Domain not configured</title></head>
<body><h1>404</h1><p>{{.}} has no veilid-app TXT record pointing at a published app.</p>
<p>Add a TXT record on {{.}} with the form <code>veilid-app=&lt;app-id&gt;</code> and retry.</p></body>
</html>`))

var downloadFailedTmpl = template.Must(template.New("downloadFailed").Parse(`<!DOCTYPE html>
<html><head><title>Download failed</title></head>
<body><h1>503</h1><p>Could not download the published app for {{.}}.</p>
<p>The DHT record may be temporarily unreachable; wait a moment and retry, or confirm the
app is still published.</p></body>
</html>`))
