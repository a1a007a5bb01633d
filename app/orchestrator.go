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

// Package app wires the pieces together: it owns the single source
// of truth for mode, region override, proxy status, and connected
// game, and serializes every lifecycle command behind one lock.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
	"github.com/whereisteemo/teemo/configproxy"
	"github.com/whereisteemo/teemo/launcher"
	"github.com/whereisteemo/teemo/pki"
	"github.com/whereisteemo/teemo/region"
	"github.com/whereisteemo/teemo/relay"
)

const stopTimeout = 5 * time.Second

// Orchestrator is the serialized lifecycle actor. All mutation of
// shared state goes through its methods; the only concurrency it
// introduces itself is the mode bus broadcast to live sessions.
type Orchestrator struct {
	mu sync.Mutex

	ca       *pki.CA
	registry *region.Registry
	modes    *teemo.ModeBus
	endpoint *configproxy.Endpoint
	relay    *relay.Relay
	launcher *launcher.Controller
	logger   *zap.Logger

	status      teemo.ProxyStatus
	game        *teemo.Game
	running     bool
	serverCerts bool
}

// New builds an orchestrator, restoring persisted settings. The CA
// is not touched until something needs it.
func New() (*Orchestrator, error) {
	settings, err := teemo.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %v", err)
	}
	registry, err := region.NewRegistry("NA")
	if err != nil {
		return nil, err
	}
	if settings.LastObservedRegion != nil {
		registry.RestoreObserved(*settings.LastObservedRegion)
	}
	if settings.RegionOverride != nil {
		if err := registry.SetOverride(*settings.RegionOverride); err != nil {
			teemo.Log().Warn("ignoring persisted region override", zap.Error(err))
		}
	}

	o := &Orchestrator{
		registry: registry,
		modes:    teemo.NewModeBus(teemo.ModeInvisible),
		launcher: launcher.New(),
		logger:   teemo.Log().Named("orchestrator"),
		status:   teemo.ProxyStatus{State: teemo.StateIdle},
	}
	registry.SetOnObserve(func(region.Region) { o.persistSettings() })
	return o, nil
}

// Modes exposes the mode bus (read-only use by collaborators).
func (o *Orchestrator) Modes() *teemo.ModeBus { return o.modes }

// Registry exposes the region registry.
func (o *Orchestrator) Registry() *region.Registry { return o.registry }

// ensureCA loads or generates the root CA once.
func (o *Orchestrator) ensureCA() (*pki.CA, error) {
	if o.ca != nil {
		return o.ca, nil
	}
	ca, err := pki.EnsureCA()
	if err != nil {
		return nil, err
	}
	o.ca = ca
	return ca, nil
}

// GetStatus snapshots the control-surface state.
func (o *Orchestrator) GetStatus() teemo.StatusInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() teemo.StatusInfo {
	return teemo.StatusInfo{
		StealthMode:   o.modes.Mode().WireName(),
		ProxyStatus:   o.status,
		ConnectedGame: o.game,
	}
}

// SetStealthMode publishes a new mode to every live relay session.
func (o *Orchestrator) SetStealthMode(mode teemo.Mode) teemo.StatusInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.modes.Set(mode)
	o.logger.Info("stealth mode set", zap.String("mode", string(mode)))
	return o.statusLocked()
}

// LaunchGame runs the full launch ordering: trust check, kill,
// config endpoint, relay, spawn. Launching the game that is already
// connected is a no-op; a different game re-runs the launcher only.
func (o *Orchestrator) LaunchGame(game teemo.Game) teemo.StatusInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running && o.game != nil && *o.game == game {
		return o.statusLocked()
	}

	ca, err := o.ensureCA()
	if err != nil {
		return o.failLocked(fmt.Sprintf("certificate authority unavailable: %v", err))
	}
	trusted, err := ca.IsTrusted()
	if err != nil {
		o.logger.Warn("trust check failed", zap.Error(err))
	}
	if !trusted {
		return o.failLocked("trust required: install the local CA first")
	}

	o.launcher.KillRunning()

	if o.endpoint == nil {
		o.endpoint = configproxy.New(ca, o.registry)
		o.endpoint.OnError = o.noteError
		if _, err := o.endpoint.Start(); err != nil {
			o.endpoint = nil
			return o.failLocked(err.Error())
		}
		o.serverCerts = true
	}

	if o.relay == nil {
		o.relay = relay.New(ca, o.registry, o.modes)
		if err := o.relay.Start(); err != nil {
			o.relay = nil
			return o.failLocked(err.Error())
		}
	}

	if err := o.launcher.Launch(game, o.endpoint.URL()); err != nil {
		if errors.Is(err, launcher.ErrNotInstalled) {
			return o.failLocked(fmt.Sprintf("%s: riot client not installed", game))
		}
		return o.failLocked(fmt.Sprintf("launching %s: %v", game, err))
	}

	o.running = true
	o.game = &game
	o.status = teemo.ProxyStatus{State: teemo.StateRunning}
	return o.statusLocked()
}

// StopProxy tears down the relay and the config endpoint, draining
// sessions briefly, and clears the connected game.
func (o *Orchestrator) StopProxy() teemo.StatusInfo {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.relay != nil {
		o.relay.Stop()
		o.relay = nil
	}
	if o.endpoint != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		if err := o.endpoint.Stop(ctx); err != nil {
			o.logger.Warn("stopping config endpoint", zap.Error(err))
		}
		cancel()
		o.endpoint = nil
	}
	o.running = false
	o.game = nil
	o.status = teemo.ProxyStatus{State: teemo.StateIdle}
	o.persistSettings()
	o.logger.Info("proxy stopped")
	return o.statusLocked()
}

// GetCertStatus reports CA bootstrap state without generating
// anything.
func (o *Orchestrator) GetCertStatus() teemo.CertStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	cs := teemo.CertStatus{
		CAGenerated:     pki.CAOnDisk(),
		ServerGenerated: o.serverCerts,
	}
	if cs.CAGenerated {
		if ca, err := o.ensureCA(); err == nil {
			if trusted, err := ca.IsTrusted(); err == nil {
				cs.CATrusted = trusted
			}
		}
	}
	return cs
}

// InstallCA generates the CA if needed and enrolls it in the OS
// trust store, prompting the user if it is not already trusted.
func (o *Orchestrator) InstallCA() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	ca, err := o.ensureCA()
	if err != nil {
		return err
	}
	return ca.Enroll()
}

// GetRegions lists the closed region registry.
func (o *Orchestrator) GetRegions() []teemo.RegionInfo {
	regions := region.All()
	out := make([]teemo.RegionInfo, len(regions))
	for i, r := range regions {
		out[i] = teemo.RegionInfo{Code: r.Code, Name: r.Name}
	}
	return out
}

// SetRegion pins the effective region; an empty code clears the
// override and re-enables observation. Sessions already in progress
// are unaffected; the next relay accept uses the new region's leaf.
func (o *Orchestrator) SetRegion(code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.registry.SetOverride(code); err != nil {
		return err
	}
	o.persistSettings()
	o.logger.Info("region override changed", zap.String("code", code))
	return nil
}

// failLocked records a global error on the proxy status.
func (o *Orchestrator) failLocked(msg string) teemo.StatusInfo {
	o.logger.Error(msg)
	o.running = false
	o.game = nil
	o.status = teemo.ProxyStatus{State: teemo.StateError, Message: msg}
	return o.statusLocked()
}

// noteError is handed to collaborators that report asynchronous
// failures (e.g. an unparseable config response).
func (o *Orchestrator) noteError(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.Error(msg)
	o.status = teemo.ProxyStatus{State: teemo.StateError, Message: msg}
}

// persistSettings writes the override and last observation to
// settings.json. Callers hold o.mu or are otherwise serialized.
func (o *Orchestrator) persistSettings() {
	var s teemo.Settings
	if code, ok := o.registry.Override(); ok {
		s.RegionOverride = &code
	}
	if code, ok := o.registry.Observed(); ok {
		s.LastObservedRegion = &code
	}
	if err := teemo.SaveSettings(s); err != nil {
		o.logger.Warn("persisting settings", zap.Error(err))
	}
}
