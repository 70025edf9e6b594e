// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

// Package dandelion implements the Dandelion++ routing pool of spec
// §4.4: it decides, for each incoming transaction, whether to forward
// it privately along a stem or broadcast it, and arms an embargo timer
// that forces a still-private transaction into the open once it
// expires. Grounded on
// original_source/p2p/dandelion/src/pool.rs's DandelionPool.
package dandelion

import "github.com/cuprated-go/cuprated/common"

// PeerID identifies the peer a routing decision is relative to. It is
// opaque to this package, owned by the peer layer (spec §6); a
// concrete peer-management component supplies real values.
type PeerID uint64

// RouteKind is the three-way routing state a transaction arrives or
// leaves with.
type RouteKind int

const (
	// RouteStem means the tx arrived already stemming from From, or
	// (for outgoing routing) should continue stemming to a single peer.
	RouteStem RouteKind = iota
	// RouteFluff means the tx should be broadcast to the network.
	RouteFluff
	// RouteLocal means the tx originated from this node, with no
	// originating peer to track.
	RouteLocal
)

// RouteState is a transaction's routing state.
type RouteState struct {
	Kind RouteKind
	From PeerID
}

// State is the outcome a Router reports for a routed transaction.
type State int

const (
	// StateStem means the router forwarded the tx along the stem.
	StateStem State = iota
	// StateFluff means the tx ended up broadcast.
	StateFluff
)

// Router forwards a transaction's blob either to a single stem peer or
// to the broadcast/diffusion service, and reports which actually
// happened. This is the peer-layer collaborator (spec §6); this
// package only decides when to call it and how to react to the
// result.
type Router interface {
	Route(hash common.Hash, blob []byte, state RouteState) (State, error)
}
