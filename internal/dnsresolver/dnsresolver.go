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

// Package dnsresolver resolves a domain's published DHT lookup record
// identifier from its TXT records, looking for a "veilid-app=" value.
package dnsresolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/miekg/dns"

	"github.com/roselite-project/roselite/internal/rerr"
)

// TXTPrefix marks the TXT value carrying the published app's lookup
// record identifier.
const TXTPrefix = "veilid-app="

// Resolver looks up the veilid-app TXT record for a domain.
type Resolver struct {
	client     *dns.Client
	nameserver string
}

// New creates a Resolver that queries nameserver (host:port, e.g.
// "1.1.1.1:53"). An empty nameserver defers to systemDefaultResolver.
func New(nameserver string) *Resolver {
	if nameserver == "" {
		nameserver = systemDefaultResolver
	}
	return &Resolver{
		client:     &dns.Client{},
		nameserver: nameserver,
	}
}

// systemDefaultResolver is used when no nameserver is configured; it
// is a well-known public resolver rather than relying on /etc/resolv.conf
// so behavior is consistent across container runtimes.
const systemDefaultResolver = "1.1.1.1:53"

// ResolveAppID returns the DHT lookup record identifier published for
// domain, found as the suffix of the first TXT value starting with
// TXTPrefix. It returns ("", nil) if no matching TXT record exists.
func (r *Resolver) ResolveAppID(ctx context.Context, domain string) (string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeTXT)
	msg.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
	if err != nil {
		return "", rerr.Wrap(rerr.KindNetworkError, "dns txt lookup failed", err)
	}
	if resp.Rcode == dns.RcodeNameError {
		return "", nil
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", rerr.New(rerr.KindNetworkError, fmt.Sprintf("dns lookup returned rcode %s", dns.RcodeToString[resp.Rcode]))
	}

	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, value := range txt.Txt {
			if strings.HasPrefix(value, TXTPrefix) {
				return strings.TrimPrefix(value, TXTPrefix), nil
			}
		}
	}
	return "", nil
}
