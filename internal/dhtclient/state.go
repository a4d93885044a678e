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

package dhtclient

// AttachmentState mirrors the attachment lifecycle of a DHT-connected
// node: it climbs from Detached through increasingly well-peered states
// as the routing table fills, and falls back to Detached (by way of
// Detaching) on disconnect.
type AttachmentState string

const (
	Detached       AttachmentState = "Detached"
	Detaching      AttachmentState = "Detaching"
	Attaching      AttachmentState = "Attaching"
	AttachedWeak   AttachmentState = "AttachedWeak"
	AttachedGood   AttachmentState = "AttachedGood"
	AttachedStrong AttachmentState = "AttachedStrong"
	FullyAttached  AttachmentState = "FullyAttached"
	OverAttached   AttachmentState = "OverAttached"
)

// fromPeerCount derives an AttachmentState from the number of peers the
// local routing table currently holds, in the same bands the Veilid
// reference client reports.
func fromPeerCount(n int) AttachmentState {
	switch {
	case n <= 0:
		return Attaching
	case n < 4:
		return AttachedWeak
	case n < 8:
		return AttachedGood
	case n < 16:
		return AttachedStrong
	case n < 32:
		return FullyAttached
	default:
		return OverAttached
	}
}

// ConnectionState is a point-in-time snapshot of the client's network
// state, safe to copy.
type ConnectionState struct {
	IsConnected        bool
	AttachmentState    AttachmentState
	NetworkStarted     bool
	UseFallbackStorage bool
	NodeID             string
	PeerCount          int
}

// NetworkStateInfo is the richer, on-demand network report returned by
// Client.NetworkState.
type NetworkStateInfo struct {
	Mode            string
	Attachment      AttachmentState
	NodeID          string
	PeerCount       int
	NetworkStarted  bool
	BootstrapPeers  int
}
