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

package configproxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/whereisteemo/teemo/pki"
	"github.com/whereisteemo/teemo/region"
)

func testEndpoint(t *testing.T, upstream *httptest.Server) (*Endpoint, *region.Registry) {
	t.Helper()
	t.Setenv("TEEMO_DATA_DIR", t.TempDir())
	ca, err := pki.EnsureCA()
	if err != nil {
		t.Fatal(err)
	}
	registry, err := region.NewRegistry("NA")
	if err != nil {
		t.Fatal(err)
	}
	e := New(ca, registry)
	if upstream != nil {
		e.Upstream = strings.TrimPrefix(upstream.URL, "https://")
		e.client = upstream.Client()
	}
	return e, registry
}

func TestProxyRewritesChatHosts(t *testing.T) {
	var gotPath, gotQuery string
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"chat.host": "euw1.chat.si.riotgames.com",
			"chat.port": 5222,
			"chat.affinities": {"euw1": "euw1.chat.si.riotgames.com"},
			"chat.allow_bad_cert.enabled": false,
			"rms.url": "wss://euw1.chat.si.riotgames.com:443/rms",
			"keep": "https://auth.riotgames.com/token"
		}`))
	}))
	defer upstream.Close()

	e, registry := testEndpoint(t, upstream)

	req := httptest.NewRequest(http.MethodGet,
		"https://127.0.0.1/api/v1/config/player?os=windows&version=1", nil)
	rec := httptest.NewRecorder()
	e.proxy(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotPath != "/api/v1/config/player" || gotQuery != "os=windows&version=1" {
		t.Errorf("upstream saw %s?%s", gotPath, gotQuery)
	}

	var cfg map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if cfg["chat.host"] != "127.0.0.1" {
		t.Errorf("chat.host = %v", cfg["chat.host"])
	}
	if cfg["chat.port"] != float64(5223) {
		t.Errorf("chat.port = %v", cfg["chat.port"])
	}
	affinities := cfg["chat.affinities"].(map[string]any)
	if affinities["euw1"] != "127.0.0.1" {
		t.Errorf("affinity = %v", affinities["euw1"])
	}
	if cfg["rms.url"] != "wss://127.0.0.1:5223/rms" {
		t.Errorf("rms.url = %v", cfg["rms.url"])
	}
	if cfg["keep"] != "https://auth.riotgames.com/token" {
		t.Errorf("unrelated URL was rewritten: %v", cfg["keep"])
	}
	if cfg["chat.allow_bad_cert.enabled"] != false {
		t.Errorf("boolean leaf mutated: %v", cfg["chat.allow_bad_cert.enabled"])
	}

	if code, ok := registry.Observed(); !ok || code != "EUW" {
		t.Errorf("observed region = %q (%v), want EUW", code, ok)
	}
}

func TestProxyUnderscoreSpelling(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chat_host": "kr1.chat.si.riotgames.com", "chat_port": 5222}`))
	}))
	defer upstream.Close()

	e, _ := testEndpoint(t, upstream)
	rec := httptest.NewRecorder()
	e.proxy(rec, httptest.NewRequest(http.MethodGet, "https://127.0.0.1/api/v1/config/player", nil))

	var cfg map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg["chat_host"] != "127.0.0.1" || cfg["chat_port"] != float64(5223) {
		t.Errorf("cfg = %v", cfg)
	}
}

func TestProxyForwardsNonJSONUnchanged(t *testing.T) {
	const body = "<html>maintenance</html>"
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(body))
	}))
	defer upstream.Close()

	e, _ := testEndpoint(t, upstream)
	var errMsg string
	e.OnError = func(msg string) { errMsg = msg }

	rec := httptest.NewRecorder()
	e.proxy(rec, httptest.NewRequest(http.MethodGet, "https://127.0.0.1/api/v1/config/player", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want upstream's 503", rec.Code)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q, want unchanged", rec.Body.String())
	}
	if errMsg == "" {
		t.Error("OnError not invoked for unparseable response")
	}
}

func TestProxyUpstreamUnreachable(t *testing.T) {
	e, _ := testEndpoint(t, nil)
	// a port nothing listens on
	e.Upstream = "127.0.0.1:1"

	rec := httptest.NewRecorder()
	e.proxy(rec, httptest.NewRequest(http.MethodGet, "https://127.0.0.1/api/v1/config/player", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestProxyCopiesHeaders(t *testing.T) {
	var gotAuth, gotHost string
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotHost = r.Host
		w.Write([]byte(`{}`))
	}))
	defer upstream.Close()

	e, _ := testEndpoint(t, upstream)
	req := httptest.NewRequest(http.MethodGet, "https://127.0.0.1/api/v1/config/player", nil)
	req.Header.Set("Authorization", "Bearer tok")
	req.Host = "127.0.0.1:4431"
	rec := httptest.NewRecorder()
	e.proxy(rec, req)

	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization not forwarded: %q", gotAuth)
	}
	if gotHost == "127.0.0.1:4431" {
		t.Error("local Host header leaked upstream")
	}
}

func TestStartAndStop(t *testing.T) {
	e, _ := testEndpoint(t, nil)
	port, err := e.Start()
	if err != nil {
		t.Fatal(err)
	}
	if port == 0 {
		t.Fatal("no port bound")
	}
	if want := e.URL(); !strings.Contains(want, "127.0.0.1") {
		t.Errorf("URL = %s", want)
	}
	// idempotent start keeps the port
	again, err := e.Start()
	if err != nil || again != port {
		t.Errorf("second Start = %d, %v", again, err)
	}
	if err := e.Stop(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestRewriteValueLeavesUnknownShapes(t *testing.T) {
	e, _ := testEndpoint(t, nil)
	in := map[string]any{
		"list": []any{"a", float64(1), map[string]any{"chat.host": "br.chat.si.riotgames.com"}},
	}
	out := e.rewriteValue("", in).(map[string]any)
	nested := out["list"].([]any)[2].(map[string]any)
	if nested["chat.host"] != "127.0.0.1" {
		t.Errorf("nested chat.host = %v", nested["chat.host"])
	}
	if out["list"].([]any)[0] != "a" {
		t.Errorf("plain string mutated")
	}
}
