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

// Package teemo implements the core of Where Is Teemo: a local
// man-in-the-middle that makes a player appear offline in League of
// Legends and Valorant while keeping chat functional. It holds the
// core types and the process-wide pieces (the stealth mode bus, the
// default logger, settings persistence, metrics) that the
// orchestrator in package app uses to coordinate the certificate
// authority, the config-rewriting HTTPS endpoint, the XMPP relay, and
// the game launcher.
package teemo

import (
	"encoding/json"
	"fmt"
)

// Mode is the stealth mode applied to outbound presence stanzas.
type Mode string

const (
	// ModeOnline forwards presence untouched.
	ModeOnline Mode = "Online"

	// ModeInvisible rewrites outbound presence to type="unavailable"
	// so the chat server sees the player as disconnected.
	ModeInvisible Mode = "Invisible"
)

// ParseMode accepts both the internal names and the wire names
// used by the control surface ("Online"/"Offline").
func ParseMode(s string) (Mode, error) {
	switch s {
	case "Online", "online":
		return ModeOnline, nil
	case "Invisible", "invisible", "Offline", "offline":
		return ModeInvisible, nil
	}
	return "", fmt.Errorf("unknown stealth mode: %q", s)
}

// WireName is the value the control surface reports for the mode:
// "Online" or "Offline".
func (m Mode) WireName() string {
	if m == ModeOnline {
		return "Online"
	}
	return "Offline"
}

// Game identifies a launchable Riot title.
type Game string

const (
	GameLeagueOfLegends Game = "league_of_legends"
	GameValorant        Game = "valorant"
)

// ParseGame validates a game identifier from the control surface.
func ParseGame(s string) (Game, error) {
	switch Game(s) {
	case GameLeagueOfLegends, GameValorant:
		return Game(s), nil
	}
	return "", fmt.Errorf("unknown game: %q", s)
}

// ProxyState enumerates the coarse lifecycle states of the proxy.
type ProxyState int

const (
	StateIdle ProxyState = iota
	StateRunning
	StateError
)

// ProxyStatus is the proxy lifecycle state plus, for StateError,
// a human-readable message. It marshals to the union wire form
// "Idle" | "Running" | {"Error": "..."}.
type ProxyStatus struct {
	State   ProxyState
	Message string
}

// MarshalJSON implements json.Marshaler.
func (ps ProxyStatus) MarshalJSON() ([]byte, error) {
	switch ps.State {
	case StateIdle:
		return json.Marshal("Idle")
	case StateRunning:
		return json.Marshal("Running")
	case StateError:
		return json.Marshal(map[string]string{"Error": ps.Message})
	}
	return nil, fmt.Errorf("invalid proxy state %d", ps.State)
}

// UnmarshalJSON implements json.Unmarshaler.
func (ps *ProxyStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "Idle":
			*ps = ProxyStatus{State: StateIdle}
			return nil
		case "Running":
			*ps = ProxyStatus{State: StateRunning}
			return nil
		}
		return fmt.Errorf("unknown proxy status: %q", s)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	msg, ok := m["Error"]
	if !ok {
		return fmt.Errorf("malformed proxy status object")
	}
	*ps = ProxyStatus{State: StateError, Message: msg}
	return nil
}

// StatusInfo is the control-surface snapshot of process state.
type StatusInfo struct {
	StealthMode   string      `json:"stealth_mode"`
	ProxyStatus   ProxyStatus `json:"proxy_status"`
	ConnectedGame *Game       `json:"connected_game"`
}

// RegionInfo is one region as presented to the UI.
type RegionInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CertStatus reports the certificate bootstrap state to the UI.
type CertStatus struct {
	CAGenerated     bool `json:"ca_generated"`
	ServerGenerated bool `json:"server_generated"`
	CATrusted       bool `json:"ca_trusted"`
}
