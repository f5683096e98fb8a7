// Copyright 2026 The Driftroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport connects a peer to the message broker every room
// runs over.
//
// The package defines one interface: [Transport] is a single client's
// connection to the broker — publish, subscribe with single-level "+"
// wildcards, an inbound message channel, and a connectivity event
// channel. The broker contract is small but specific:
//
//   - Fire-and-forget fan-out. A publish reaches the subscribers that
//     are connected at that moment; nobody else, ever. No acks, no
//     redelivery, no ordering guarantee across topics.
//   - Retained topics. A publish with Retain stores the payload as the
//     topic's last value, delivered immediately to later subscribers.
//     A retained publish with an empty payload clears the value.
//   - Expiry. A publish may carry a time-to-live after which the
//     broker drops it (most importantly: forgets the retained value).
//   - Last-will. A connection may register a publish that the broker
//     emits on its behalf if the connection dies without a graceful
//     Disconnect.
//   - Echo. A connection subscribed to a topic receives its own
//     publishes to that topic. The protocol layers above are
//     idempotent, so the echo is harmless and not filtered here.
//
// Three implementations exist. [MemoryBroker] is a complete in-process
// broker for tests, with clock-driven retained expiry and per-client
// Drop/Restore to script outages. [NATSTransport] adapts a NATS server
// (JetStream provides the retained store). [RedisTransport] adapts
// Redis pub/sub (keyspace entries provide the retained store).
//
// The protocol never sees which implementation it runs on: everything
// above this package holds state that survives disconnects, dedups
// redeliveries, and ages out silent peers, precisely because this
// contract promises so little.
package transport
