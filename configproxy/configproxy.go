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

// Package configproxy serves the loopback HTTPS endpoint the game
// launcher is pointed at for bootstrap configuration. Requests are
// forwarded to the real Riot config API; JSON responses come back
// with every chat-host field rewritten to the local XMPP relay.
package configproxy

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
	"github.com/whereisteemo/teemo/pki"
	"github.com/whereisteemo/teemo/region"
)

// DefaultUpstream is the real Riot client config API.
const DefaultUpstream = "clientconfig.rpg.riotgames.com"

// upstreamTimeout bounds the whole upstream exchange; past it the
// endpoint answers 504.
const upstreamTimeout = 10 * time.Second

// Endpoint is the config-rewriting HTTPS server. Zero value is not
// usable; construct with New.
type Endpoint struct {
	// Upstream is the config API host. Defaults to DefaultUpstream.
	Upstream string

	// OnError, if set, is told about response-rewrite failures so
	// the orchestrator can surface them on the proxy status.
	OnError func(msg string)

	ca       *pki.CA
	registry *region.Registry
	client   *http.Client
	logger   *zap.Logger

	srv  *http.Server
	ln   net.Listener
	port int
}

// New returns an endpoint that signs its listener leaf with ca and
// records observed regions in registry.
func New(ca *pki.CA, registry *region.Registry) *Endpoint {
	return &Endpoint{
		Upstream: DefaultUpstream,
		ca:       ca,
		registry: registry,
		client:   &http.Client{Timeout: upstreamTimeout},
		logger:   teemo.Log().Named("configproxy"),
	}
}

// Start binds a random loopback port with TLS and begins serving.
// It returns the bound port.
func (e *Endpoint) Start() (int, error) {
	if e.srv != nil {
		return e.port, nil
	}
	leaf, err := e.ca.SignLeaf([]string{"127.0.0.1", "localhost"})
	if err != nil {
		return 0, fmt.Errorf("signing config endpoint certificate: %v", err)
	}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{leaf},
	})
	if err != nil {
		return 0, fmt.Errorf("binding config endpoint: %v", err)
	}

	r := chi.NewRouter()
	r.HandleFunc("/*", e.proxy)
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	e.srv = srv
	e.ln = ln
	e.port = ln.Addr().(*net.TCPAddr).Port

	go func() {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("config endpoint stopped unexpectedly", zap.Error(err))
		}
	}()

	e.logger.Info("config endpoint listening",
		zap.Int("port", e.port),
		zap.String("upstream", e.Upstream))
	return e.port, nil
}

// Stop shuts the listener down, draining in-flight requests until
// ctx expires.
func (e *Endpoint) Stop(ctx context.Context) error {
	if e.srv == nil {
		return nil
	}
	err := e.srv.Shutdown(ctx)
	e.srv, e.ln = nil, nil
	return err
}

// Port returns the bound port, or 0 before Start.
func (e *Endpoint) Port() int { return e.port }

// URL returns the client-config URL handed to the launcher.
func (e *Endpoint) URL() string {
	return fmt.Sprintf("https://127.0.0.1:%d", e.port)
}

// proxy forwards one request upstream and rewrites the response.
func (e *Endpoint) proxy(w http.ResponseWriter, r *http.Request) {
	upURL := &url.URL{
		Scheme:   "https",
		Host:     e.Upstream,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
	}
	upReq, err := http.NewRequestWithContext(r.Context(), r.Method, upURL.String(), r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	for name, values := range r.Header {
		switch http.CanonicalHeaderKey(name) {
		case "Host":
			// replaced by the upstream host
		case "Accept-Encoding":
			// the body must be readable for rewriting; let the
			// transport negotiate and transparently decode
		default:
			upReq.Header[name] = values
		}
	}

	resp, err := e.client.Do(upReq)
	if err != nil {
		status := http.StatusBadGateway
		var uerr *url.Error
		if errors.Is(err, context.DeadlineExceeded) ||
			(errors.As(err, &uerr) && uerr.Timeout()) {
			status = http.StatusGatewayTimeout
		}
		e.logger.Warn("upstream config request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "upstream config API unreachable", status)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "reading upstream response", http.StatusBadGateway)
		return
	}

	out := body
	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		// not JSON (or broken JSON): forward unchanged, the launcher
		// will surface its own failure
		e.logger.Warn("config response is not JSON; forwarding unmodified",
			zap.String("path", r.URL.Path), zap.Error(err))
		if e.OnError != nil {
			e.OnError("config response could not be parsed")
		}
	} else {
		rewritten := e.rewriteValue("", tree)
		if enc, err := json.Marshal(rewritten); err == nil {
			out = enc
		}
	}

	header := w.Header()
	for name, values := range resp.Header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Content-Encoding", "Transfer-Encoding":
		default:
			header[name] = values
		}
	}
	header.Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(resp.StatusCode)
	w.Write(out)
}

// Chat-host key set. Launcher versions have carried both spellings;
// the value-based URL match below catches fields this set misses.
func isChatHostKey(key string) bool {
	key = strings.ToLower(key)
	return key == "chat.host" || key == "chat_host"
}

func isChatPortKey(key string) bool {
	key = strings.ToLower(key)
	return key == "chat.port" || key == "chat_port"
}

// isChatHost recognizes chat-server hostnames by suffix.
func isChatHost(host string) bool {
	host = strings.ToLower(host)
	if strings.HasSuffix(host, ".pvp.net") {
		return true
	}
	if strings.HasSuffix(host, ".chat.si.riotgames.com") {
		return true
	}
	_, ok := region.FromChatHost(host)
	return ok
}

// rewriteValue walks the JSON tree. Every chat-host leaf is
// replaced with the loopback relay address and the original host is
// reported to the region registry.
func (e *Endpoint) rewriteValue(key string, v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			val[k] = e.rewriteValue(k, child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = e.rewriteValue(key, child)
		}
		return val
	case string:
		return e.rewriteString(key, val)
	case float64:
		if isChatPortKey(key) {
			return float64(region.ChatPort)
		}
		return val
	}
	return v
}

func (e *Endpoint) rewriteString(key, s string) string {
	// full URIs of any scheme
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" && isChatHost(u.Hostname()) {
			e.observe(u.Hostname())
			u.Host = net.JoinHostPort("127.0.0.1", strconv.Itoa(region.ChatPort))
			teemo.MetricConfigRewrites.Inc()
			return u.String()
		}
		return s
	}
	// bare hostnames, with or without port
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host = s
	}
	if isChatHostKey(key) || isChatHost(host) {
		if host != "" && host != "127.0.0.1" {
			e.observe(host)
			teemo.MetricConfigRewrites.Inc()
		}
		if port != "" {
			return net.JoinHostPort("127.0.0.1", strconv.Itoa(region.ChatPort))
		}
		return "127.0.0.1"
	}
	return s
}

func (e *Endpoint) observe(host string) {
	if r, ok := e.registry.Observe(host); ok {
		e.logger.Debug("observed region from config response",
			zap.String("host", host), zap.String("region", r.Code))
	}
}
