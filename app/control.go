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

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
)

// ControlServer is the loopback HTTP surface UI collaborators talk
// to. Plain HTTP on a loopback-only port; all bodies are JSON.
type ControlServer struct {
	orch   *Orchestrator
	srv    *http.Server
	ln     net.Listener
	logger *zap.Logger
}

// ServeControl binds addr (use "127.0.0.1:0" for a random port) and
// starts handling control commands.
func ServeControl(orch *Orchestrator, addr string) (*ControlServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding control listener: %v", err)
	}
	cs := &ControlServer{
		orch:   orch,
		ln:     ln,
		logger: teemo.Log().Named("control"),
	}
	r := chi.NewRouter()
	r.Get("/status", cs.handleGetStatus)
	r.Post("/mode", cs.handleSetMode)
	r.Post("/launch", cs.handleLaunch)
	r.Post("/stop", cs.handleStop)
	r.Get("/cert", cs.handleCertStatus)
	r.Post("/cert/install", cs.handleInstallCA)
	r.Get("/regions", cs.handleRegions)
	r.Post("/region", cs.handleSetRegion)
	r.Handle("/metrics", promhttp.Handler())

	cs.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := cs.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			cs.logger.Error("control server stopped unexpectedly", zap.Error(err))
		}
	}()
	cs.logger.Info("control surface listening", zap.String("address", ln.Addr().String()))
	return cs, nil
}

// Addr returns the bound listener address.
func (cs *ControlServer) Addr() string {
	return cs.ln.Addr().String()
}

// Close shuts the control listener down.
func (cs *ControlServer) Close(ctx context.Context) error {
	return cs.srv.Shutdown(ctx)
}

func (cs *ControlServer) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cs.orch.GetStatus())
}

func (cs *ControlServer) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	mode, err := teemo.ParseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, cs.orch.SetStealthMode(mode))
}

func (cs *ControlServer) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Game string `json:"game"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	game, err := teemo.ParseGame(body.Game)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, cs.orch.LaunchGame(game))
}

func (cs *ControlServer) handleStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cs.orch.StopProxy())
}

func (cs *ControlServer) handleCertStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cs.orch.GetCertStatus())
}

func (cs *ControlServer) handleInstallCA(w http.ResponseWriter, r *http.Request) {
	if err := cs.orch.InstallCA(); err != nil {
		writeError(w, http.StatusForbidden, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (cs *ControlServer) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, cs.orch.GetRegions())
}

func (cs *ControlServer) handleSetRegion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := cs.orch.SetRegion(body.Code); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders the human-readable message only; stack detail
// stays in the logs.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
