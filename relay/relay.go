// Copyright 2025 The Where Is Teemo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package relay terminates the launcher's XMPP TLS connection on
// the fixed loopback port, opens its own TLS session to the real
// chat host, and pipes both directions. Outbound frames pass
// through the stanza framer and the presence rewriter; the
// server→client direction is a byte-for-byte copy.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whereisteemo/teemo"
	"github.com/whereisteemo/teemo/pki"
	"github.com/whereisteemo/teemo/region"
	"github.com/whereisteemo/teemo/xmpp"
)

// ListenAddr is fixed: the launcher's rewritten config points chat
// at this port and is not told otherwise.
const ListenAddr = "127.0.0.1:5223"

const (
	dialTimeout      = 15 * time.Second
	handshakeTimeout = 15 * time.Second
	stopGrace        = 3 * time.Second
)

// Relay is the XMPP man-in-the-middle listener.
type Relay struct {
	ca       *pki.CA
	registry *region.Registry
	modes    *teemo.ModeBus
	logger   *zap.Logger

	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup

	leafMu   sync.Mutex
	leaf     *tls.Certificate
	leafHost string

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// New returns a relay that signs its leafs with ca, resolves the
// upstream chat host through registry, and watches modes.
func New(ca *pki.CA, registry *region.Registry, modes *teemo.ModeBus) *Relay {
	return &Relay{
		ca:       ca,
		registry: registry,
		modes:    modes,
		logger:   teemo.Log().Named("relay"),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Start binds the listener and begins accepting sessions. A bind
// failure (port taken) is a global error for the orchestrator.
func (r *Relay) Start() error {
	if r.ln != nil {
		return nil
	}
	ln, err := net.Listen("tcp", ListenAddr)
	if err != nil {
		return fmt.Errorf("binding %s: %v", ListenAddr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.ln = ln
	r.cancel = cancel

	r.wg.Add(1)
	go r.acceptLoop(ctx, ln)

	r.logger.Info("relay listening", zap.String("address", ListenAddr))
	return nil
}

// Stop closes the listener, lets in-flight sessions drain for a
// short grace period, then cancels them. Cancellation closes both
// sockets of every session.
func (r *Relay) Stop() {
	if r.ln == nil {
		return
	}
	r.ln.Close()
	r.ln = nil

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		r.cancel()
		r.closeAll()
		<-done
	}
	r.cancel()
	r.cancel = nil
	r.logger.Info("relay stopped")
}

func (r *Relay) acceptLoop(ctx context.Context, ln net.Listener) {
	defer r.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.logger.Error("accept failed", zap.Error(err))
			}
			return
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.handleSession(ctx, conn)
		}()
	}
}

func (r *Relay) track(conn net.Conn) {
	r.connMu.Lock()
	r.conns[conn] = struct{}{}
	r.connMu.Unlock()
}

func (r *Relay) untrack(conn net.Conn) {
	r.connMu.Lock()
	delete(r.conns, conn)
	r.connMu.Unlock()
}

func (r *Relay) closeAll() {
	r.connMu.Lock()
	for conn := range r.conns {
		conn.Close()
	}
	r.connMu.Unlock()
}

// leafForCurrentRegion returns a leaf whose SANs cover the
// currently-effective chat host. The leaf is reused across accepts
// until the effective region changes, then re-signed.
func (r *Relay) leafForCurrentRegion() (*tls.Certificate, error) {
	host := r.registry.Effective().ChatHost
	r.leafMu.Lock()
	defer r.leafMu.Unlock()
	if r.leaf != nil && r.leafHost == host {
		return r.leaf, nil
	}
	leaf, err := r.ca.SignLeaf([]string{host, "127.0.0.1", "localhost"})
	if err != nil {
		return nil, fmt.Errorf("signing relay certificate for %s: %v", host, err)
	}
	r.leaf = &leaf
	r.leafHost = host
	return r.leaf, nil
}

// handleSession runs one relayed connection to completion. The
// session owns both TLS streams; the two directions run as
// independent tasks and terminate together.
func (r *Relay) handleSession(ctx context.Context, raw net.Conn) {
	sessionID := uuid.NewString()
	reg := r.registry.Effective()
	logger := r.logger.With(
		zap.String("session", sessionID),
		zap.String("region", reg.Code),
		zap.String("upstream", reg.ChatHost))

	r.track(raw)
	defer r.untrack(raw)

	client := tls.Server(raw, &tls.Config{
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return r.leafForCurrentRegion()
		},
	})
	hsCtx, hsCancel := context.WithTimeout(ctx, handshakeTimeout)
	err := client.HandshakeContext(hsCtx)
	hsCancel()
	if err != nil {
		// per-session: logged, dropped, relay continues
		logger.Warn("client TLS handshake failed", zap.Error(err))
		client.Close()
		return
	}

	upstreamAddr := net.JoinHostPort(reg.ChatHost, strconv.Itoa(region.ChatPort))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    &tls.Config{ServerName: reg.ChatHost},
	}
	upConn, err := dialer.DialContext(ctx, "tcp", upstreamAddr)
	if err != nil {
		logger.Warn("dialing chat host failed", zap.Error(err))
		client.Close()
		return
	}
	upstream := upConn.(*tls.Conn)
	r.track(upstream)
	defer r.untrack(upstream)

	watcher := r.modes.Subscribe()
	defer watcher.Close()

	teemo.MetricSessionsActive.Inc()
	defer teemo.MetricSessionsActive.Dec()
	logger.Info("session established",
		zap.String("mode", string(watcher.Mode())))

	// when either direction finishes, closing both conns unblocks
	// the other
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer client.Close()
		defer upstream.Close()
		return r.copyClientToServer(client, upstream, watcher, logger)
	})
	g.Go(func() error {
		defer client.Close()
		defer upstream.Close()
		_, err := io.Copy(client, upstream)
		return err
	})
	err = g.Wait()
	if err != nil && !isBenignNetErr(err) {
		logger.Warn("session ended with error", zap.Error(err))
		return
	}
	logger.Info("session closed")
}

// copyClientToServer frames the outbound stream and applies the
// rewriter to each completed frame under the mode observed at that
// moment. Partial bytes stay buffered in the framer; a mode change
// takes effect on the next frame, never mid-frame.
func (r *Relay) copyClientToServer(client, upstream net.Conn, watcher *teemo.ModeWatcher, logger *zap.Logger) error {
	framer := xmpp.NewFramer()
	buf := make([]byte, 32*1024)
	for {
		n, err := client.Read(buf)
		if n > 0 {
			frames, ferr := framer.Push(buf[:n])
			for _, frame := range frames {
				mode := watcher.Mode()
				out := xmpp.Rewrite(frame, mode)
				teemo.MetricFramesTotal.WithLabelValues(kindLabel(frame.Kind)).Inc()
				if frame.Kind == xmpp.KindPresence && mode == teemo.ModeInvisible {
					teemo.MetricPresenceRewritten.Inc()
				}
				if _, werr := upstream.Write(out); werr != nil {
					return werr
				}
			}
			if ferr != nil {
				logger.Warn("dropping session: unframeable client stream", zap.Error(ferr))
				return ferr
			}
		}
		if err != nil {
			return err
		}
	}
}

func kindLabel(k xmpp.Kind) string {
	switch k {
	case xmpp.KindStreamOpen:
		return "stream-open"
	case xmpp.KindPresence:
		return "presence"
	case xmpp.KindMessage:
		return "message"
	case xmpp.KindIQ:
		return "iq"
	}
	return "other"
}

// isBenignNetErr reports the disconnect kinds that end a session
// without being worth surfacing: EOF, closed sockets, resets.
func isBenignNetErr(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}
