// Package timeouts defines shared timeout constants used across services.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// GRPCRequest caps a single saga step against the persistence service.
const GRPCRequest = 2 * time.Second

// Compensation caps the rollback issued after a failed saga step.
const Compensation = 2 * time.Second

// TransactionIdle is how long an open transaction may sit unused before
// the persistence service rolls it back.
const TransactionIdle = 5 * time.Minute

// EventPublish caps delivery of a commit event after the reply was sent.
const EventPublish = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
