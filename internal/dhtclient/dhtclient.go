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

// Package dhtclient attaches to a Kademlia DHT swarm and exposes the
// get/set/delete primitives the store package builds chunked publish
// and download on top of. When the swarm cannot be reached it falls
// back to an in-memory store so the rest of roselite keeps working in
// development and in tests.
package dhtclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	record "github.com/libp2p/go-libp2p-record"
	ma "github.com/multiformats/go-multiaddr"
	"golang.org/x/sync/errgroup"

	"github.com/roselite-project/roselite/internal/dhtclient/memorydht"
	"github.com/roselite-project/roselite/internal/logger"
	"github.com/roselite-project/roselite/internal/metrics"
	"github.com/roselite-project/roselite/internal/rerr"
)

const namespace = "roselite"

// Config controls how a Client attaches to the swarm.
type Config struct {
	// BootstrapPeers are multiaddrs (optionally /p2p/<peerid>-suffixed)
	// of well-known nodes to connect to on attach.
	BootstrapPeers []string
	// ListenAddrs are multiaddrs the local libp2p host listens on. A
	// nil slice lets libp2p pick ephemeral addresses.
	ListenAddrs []string
	// AttachTimeout bounds each individual attach attempt.
	AttachTimeout time.Duration
	// AttachRetries is the number of attach attempts before falling
	// back to in-memory storage.
	AttachRetries int
	// RetryDelay is the pause between attach attempts.
	RetryDelay time.Duration
	// PollInterval controls how often the background updater
	// re-derives the attachment state from the routing table.
	PollInterval time.Duration
}

// DefaultConfig returns sane defaults matching the reference client's
// three-attempt, two-second-backoff attach loop.
func DefaultConfig() Config {
	return Config{
		AttachTimeout: 30 * time.Second,
		AttachRetries: 3,
		RetryDelay:    2 * time.Second,
		PollInterval:  5 * time.Second,
	}
}

// Client wraps a libp2p host and Kademlia DHT, falling back to an
// in-memory store when the swarm is unreachable.
type Client struct {
	cfg    Config
	log    logger.Logger
	mu     sync.RWMutex
	state  ConnectionState
	host   host.Host
	kad    *dht.IpfsDHT
	cancel context.CancelFunc
	group  *errgroup.Group
	fallback *memorydht.Store
}

// New creates a Client in the Detached state. Call Connect to attach.
func New(cfg Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	return &Client{
		cfg:      cfg,
		log:      log,
		state:    ConnectionState{AttachmentState: Detached},
		fallback: memorydht.New(),
	}
}

// Connect attaches to the DHT swarm, retrying cfg.AttachRetries times
// before falling back to in-memory storage. It always returns nil: a
// failure to reach the swarm is not a fatal error, it just narrows the
// client to local storage for the lifetime of the process.
func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("attaching to dht swarm")
	c.setAttachment(Attaching)

	h, kad, err := c.attachWithRetry(ctx)
	if err != nil {
		c.log.Warn("failed to attach to dht swarm, using fallback storage", logger.Error(err))
		c.mu.Lock()
		c.state = ConnectionState{
			IsConnected:        true,
			AttachmentState:    Detached,
			UseFallbackStorage: true,
		}
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.host = h
	c.kad = kad
	c.state.IsConnected = true
	c.state.NetworkStarted = true
	c.state.NodeID = h.ID().String()
	c.state.UseFallbackStorage = false
	c.mu.Unlock()

	c.log.Info("attached to dht swarm", logger.String("node_id", h.ID().String()))

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	c.group = group
	group.Go(func() error {
		c.runAttachmentUpdater(groupCtx)
		return nil
	})

	return nil
}

// Disconnect tears down the swarm connection and reverts to Detached.
func (c *Client) Disconnect(ctx context.Context) error {
	c.setAttachment(Detaching)

	if c.cancel != nil {
		c.cancel()
	}
	if c.group != nil {
		_ = c.group.Wait()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kad != nil {
		_ = c.kad.Close()
		c.kad = nil
	}
	if c.host != nil {
		_ = c.host.Close()
		c.host = nil
	}
	c.fallback = memorydht.New()
	c.state = ConnectionState{AttachmentState: Detached}

	c.log.Info("disconnected from dht swarm")
	return nil
}

func (c *Client) attachWithRetry(ctx context.Context) (host.Host, *dht.IpfsDHT, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.AttachRetries; attempt++ {
		c.log.Info("attempting dht attach", logger.Int("attempt", attempt), logger.Int("max_attempts", c.cfg.AttachRetries))
		if attempt > 1 {
			metrics.DHTAttachRetries.Inc()
		}

		attachCtx, cancel := context.WithTimeout(ctx, c.cfg.AttachTimeout)
		h, kad, err := c.attachOnce(attachCtx)
		cancel()
		if err == nil {
			return h, kad, nil
		}

		lastErr = err
		c.log.Warn("dht attach attempt failed", logger.Int("attempt", attempt), logger.Error(err))

		if attempt < c.cfg.AttachRetries {
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}
	}
	return nil, nil, rerr.Wrap(rerr.KindVeilidConnectionFailed, "exhausted attach retries", lastErr)
}

func (c *Client) attachOnce(ctx context.Context) (host.Host, *dht.IpfsDHT, error) {
	opts := []libp2p.Option{libp2p.EnableNATService(), libp2p.EnableHolePunching()}
	if len(c.cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(c.cfg.ListenAddrs...))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, nil, rerr.Wrap(rerr.KindVeilidConnectionFailed, "create libp2p host", err)
	}

	kad, err := dht.New(ctx, h,
		dht.Mode(dht.ModeAuto),
		dht.ProtocolPrefix("/roselite"),
		dht.Validator(record.NamespacedValidator{namespace: recordValidator{}}),
	)
	if err != nil {
		_ = h.Close()
		return nil, nil, rerr.Wrap(rerr.KindVeilidConnectionFailed, "start kademlia dht", err)
	}

	connected := 0
	for _, addrStr := range c.cfg.BootstrapPeers {
		addr, err := ma.NewMultiaddr(addrStr)
		if err != nil {
			c.log.Warn("invalid bootstrap multiaddr", logger.String("addr", addrStr), logger.Error(err))
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			c.log.Warn("cannot derive peer info from bootstrap addr", logger.String("addr", addrStr), logger.Error(err))
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			c.log.Warn("failed to connect to bootstrap peer", logger.String("peer", info.ID.String()), logger.Error(err))
			continue
		}
		connected++
	}

	if err := kad.Bootstrap(ctx); err != nil {
		_ = kad.Close()
		_ = h.Close()
		return nil, nil, rerr.Wrap(rerr.KindVeilidConnectionFailed, "bootstrap kademlia dht", err)
	}

	if connected == 0 && len(c.cfg.BootstrapPeers) > 0 {
		_ = kad.Close()
		_ = h.Close()
		return nil, nil, rerr.New(rerr.KindVeilidConnectionFailed, "could not reach any bootstrap peer")
	}

	return h, kad, nil
}

func (c *Client) runAttachmentUpdater(ctx context.Context) {
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			kad := c.kad
			c.mu.RUnlock()
			if kad == nil {
				continue
			}
			peers := kad.RoutingTable().ListPeers()
			state := fromPeerCount(len(peers))
			c.mu.Lock()
			c.state.PeerCount = len(peers)
			c.mu.Unlock()
			c.setAttachment(state)
		}
	}
}

func (c *Client) setAttachment(state AttachmentState) {
	c.mu.Lock()
	changed := c.state.AttachmentState != state
	c.state.AttachmentState = state
	c.mu.Unlock()

	metrics.DHTAttachmentState.Set(attachmentStateValue(state))
	if changed {
		metrics.DHTAttachmentTransitions.WithLabelValues(string(state)).Inc()
	}
}

func attachmentStateValue(s AttachmentState) float64 {
	switch s {
	case Detached:
		return 0
	case Detaching:
		return 1
	case Attaching:
		return 2
	case AttachedWeak:
		return 3
	case AttachedGood:
		return 4
	case AttachedStrong:
		return 5
	case FullyAttached:
		return 6
	case OverAttached:
		return 7
	default:
		return -1
	}
}

// dhtKey namespaces a caller-supplied key under the roselite record
// namespace the way go-libp2p-kad-dht expects: "/<namespace>/<key>".
func dhtKey(key string) string {
	return fmt.Sprintf("/%s/%s", namespace, key)
}

// subkeyKey composes the record/subkey pair into the single string key
// Put/Get operate on, modeling Veilid's DHTRecordDescriptor subkeys as
// record-key-prefixed entries.
func subkeyKey(recordKey string, subkey int) string {
	return fmt.Sprintf("%s/%d", recordKey, subkey)
}

// CreateRecord allocates a new record identifier with the given number
// of subkey columns. The column count is not enforced by the
// underlying store (subkeys are independent key/value entries) — it is
// recorded only so callers can iterate 0..columns when inspecting a
// record, mirroring Veilid's fixed-column DHT record schema.
func (c *Client) CreateRecord(ctx context.Context, columns int) (string, error) {
	if columns <= 0 {
		return "", rerr.New(rerr.KindValidationError, "record must have at least one column")
	}
	return uuid.NewString(), nil
}

// SetSubkey writes value to column idx of record rk.
func (c *Client) SetSubkey(ctx context.Context, rk string, idx int, value []byte) error {
	return c.Put(ctx, subkeyKey(rk, idx), value)
}

// GetSubkey reads column idx of record rk. A nil slice with no error
// means the subkey has never been written.
func (c *Client) GetSubkey(ctx context.Context, rk string, idx int) ([]byte, error) {
	return c.Get(ctx, subkeyKey(rk, idx))
}

// DeleteRecord removes every locally-known subkey of rk from the
// fallback cache (see the note on Delete: the swarm DHT itself has no
// authoritative delete).
func (c *Client) DeleteRecord(ctx context.Context, rk string) error {
	for _, key := range c.fallback.Keys(rk + "/") {
		c.fallback.Delete(key)
	}
	return nil
}

// InspectRecord reports how many contiguous subkeys starting at 0 are
// present locally for rk, without transferring their contents.
func (c *Client) InspectRecord(ctx context.Context, rk string) (int, error) {
	count := 0
	for {
		v, err := c.GetSubkey(ctx, rk, count)
		if err != nil {
			return count, err
		}
		if v == nil {
			break
		}
		count++
	}
	return count, nil
}

// Put stores value under key, using the swarm DHT when attached or the
// in-memory fallback otherwise.
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := c.put(ctx, key, value)
	metrics.DHTOperationDuration.WithLabelValues("put", statusLabel(err)).Observe(time.Since(start).Seconds())
	return err
}

func (c *Client) put(ctx context.Context, key string, value []byte) error {
	c.mu.RLock()
	kad, fallback := c.kad, c.state.UseFallbackStorage
	c.mu.RUnlock()

	if fallback || kad == nil {
		c.fallback.Set(key, value)
		return nil
	}

	if err := kad.PutValue(ctx, dhtKey(key), value); err != nil {
		return rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "put dht value", err)
	}
	return nil
}

// Get retrieves the value stored under key. A nil slice with no error
// indicates the key has never been set.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := c.get(ctx, key)
	metrics.DHTOperationDuration.WithLabelValues("get", statusLabel(err)).Observe(time.Since(start).Seconds())
	return value, err
}

func (c *Client) get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	kad, fallback := c.kad, c.state.UseFallbackStorage
	c.mu.RUnlock()

	if fallback || kad == nil {
		value, ok := c.fallback.Get(key)
		if !ok {
			return nil, nil
		}
		return value, nil
	}

	value, err := kad.GetValue(ctx, dhtKey(key))
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, rerr.Wrap(rerr.KindVeilidDhtOperationFailed, "get dht value", err)
	}
	return value, nil
}

// Delete removes key from local storage. The swarm DHT has no
// authoritative delete; records age out by TTL, so Delete only clears
// the entry from the in-memory fallback and lets the gateway treat the
// key as absent locally.
func (c *Client) Delete(ctx context.Context, key string) error {
	c.mu.RLock()
	fallback := c.state.UseFallbackStorage
	c.mu.RUnlock()

	if fallback {
		c.fallback.Delete(key)
		return nil
	}
	c.fallback.Delete(key)
	return nil
}

// ListKeys lists locally known keys containing pattern. It only
// inspects the in-memory fallback cache; the swarm DHT does not
// support key enumeration.
func (c *Client) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	return c.fallback.Keys(pattern), nil
}

// IsConnected reports whether Connect has completed, regardless of
// whether it ended up using fallback storage.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsConnected
}

// IsUsingFallback reports whether the client is storing data in memory
// because the swarm was unreachable.
func (c *Client) IsUsingFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.UseFallbackStorage
}

// AttachmentState returns the current attachment state.
func (c *Client) AttachmentState() AttachmentState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.AttachmentState
}

// State returns a snapshot of the client's connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// NetworkState returns a richer, on-demand network report.
func (c *Client) NetworkState() NetworkStateInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state.UseFallbackStorage || c.kad == nil {
		return NetworkStateInfo{
			Mode:       "Fallback Storage",
			Attachment: c.state.AttachmentState,
			NodeID:     c.state.NodeID,
		}
	}

	return NetworkStateInfo{
		Mode:           "Kademlia DHT",
		Attachment:     c.state.AttachmentState,
		NodeID:         c.state.NodeID,
		PeerCount:      c.state.PeerCount,
		NetworkStarted: c.state.NetworkStarted,
		BootstrapPeers: len(c.cfg.BootstrapPeers),
	}
}

// HealthCheck reports an error when the client is neither attached to
// the swarm nor operating on fallback storage. Suitable for
// registration with pkg/health.HealthChecker under the name "dht".
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.IsConnected {
		return rerr.New(rerr.KindVeilidConnectionFailed, "dht client not connected")
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func isNotFound(err error) bool {
	return err == routing.ErrNotFound
}
