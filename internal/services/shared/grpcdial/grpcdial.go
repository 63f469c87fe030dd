// Package grpcdial connects a service to its gRPC peers at startup.
package grpcdial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	gogrpc "google.golang.org/grpc"

	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
)

// Peer describes a gRPC dependency.
type Peer struct {
	// Label names the peer in errors and logs.
	Label string
	Addr  string
	// Service is the health service name to wait for.
	Service string
	// Required makes Dial fail when the peer is not healthy in time. An
	// optional peer falls back to a lazily connecting client.
	Required bool
	Timeout  time.Duration
	// Options replace the default client options when set.
	Options []gogrpc.DialOption
}

// Dial connects to peer and waits for it to report SERVING.
func Dial(ctx context.Context, peer Peer, log *logrus.Entry) (*gogrpc.ClientConn, error) {
	if log == nil {
		log = logging.Discard()
	}
	opts := peer.Options
	if len(opts) == 0 {
		opts = platformgrpc.DefaultClientDialOptions()
	}
	log = log.WithFields(logrus.Fields{"peer": peer.Label, "addr": peer.Addr})

	conn, err := platformgrpc.DialWithHealth(ctx, nil, peer.Addr, peer.Service, peer.Timeout, log.Debugf, opts...)
	if err == nil {
		return conn, nil
	}
	err = NormalizeDialError(peer.Label, peer.Addr, err)
	if peer.Required {
		return nil, err
	}

	log.WithError(err).Warn("peer unavailable at startup, connecting lazily")
	conn, lazyErr := gogrpc.NewClient(peer.Addr, opts...)
	if lazyErr != nil {
		return nil, fmt.Errorf("dial %s gRPC %s: %w", peer.Label, peer.Addr, lazyErr)
	}
	return conn, nil
}

// NormalizeDialError maps platform DialError stages into stable startup error
// messages.
func NormalizeDialError(label, addr string, err error) error {
	var dialErr *platformgrpc.DialError
	if !errors.As(err, &dialErr) {
		return fmt.Errorf("dial %s gRPC %s: %w", label, addr, err)
	}
	switch dialErr.Stage {
	case platformgrpc.DialStageHealth:
		return fmt.Errorf("%s gRPC %s not healthy: %w", label, addr, dialErr.Err)
	default:
		return fmt.Errorf("dial %s gRPC %s: %w", label, addr, dialErr.Err)
	}
}
