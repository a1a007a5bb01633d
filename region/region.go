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

// Package region maps Riot region codes to chat hosts and tracks
// which region is in effect for the relay. The code set is closed;
// anything outside it is rejected.
package region

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ChatPort is the XMPP-over-TLS port used by every chat host.
const ChatPort = 5223

// Region is one entry of the closed registry.
type Region struct {
	Code     string
	Name     string
	ChatHost string
}

// The closed set of regions. Chat hosts follow Riot's
// <affinity>.chat.si.riotgames.com naming.
var regions = []Region{
	{"BR", "Brazil", "br.chat.si.riotgames.com"},
	{"EUN", "Europe Nordic & East", "eun1.chat.si.riotgames.com"},
	{"EUW", "Europe West", "euw1.chat.si.riotgames.com"},
	{"JP", "Japan", "jp1.chat.si.riotgames.com"},
	{"KR", "Korea", "kr1.chat.si.riotgames.com"},
	{"LA1", "Latin America North", "la1.chat.si.riotgames.com"},
	{"LA2", "Latin America South", "la2.chat.si.riotgames.com"},
	{"NA", "North America", "na2.chat.si.riotgames.com"},
	{"OC", "Oceania", "oc1.chat.si.riotgames.com"},
	{"PH", "Philippines", "ph2.chat.si.riotgames.com"},
	{"RU", "Russia", "ru1.chat.si.riotgames.com"},
	{"SG", "Singapore", "sg2.chat.si.riotgames.com"},
	{"TH", "Thailand", "th2.chat.si.riotgames.com"},
	{"TR", "Turkey", "tr1.chat.si.riotgames.com"},
	{"TW", "Taiwan", "tw2.chat.si.riotgames.com"},
	{"VN", "Vietnam", "vn2.chat.si.riotgames.com"},
}

var byCode = func() map[string]Region {
	m := make(map[string]Region, len(regions))
	for _, r := range regions {
		m[r.Code] = r
	}
	return m
}()

// All returns the registry entries sorted by code.
func All() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Lookup resolves a region code.
func Lookup(code string) (Region, error) {
	r, ok := byCode[strings.ToUpper(code)]
	if !ok {
		return Region{}, fmt.Errorf("unknown region code: %q", code)
	}
	return r, nil
}

// FromChatHost maps a chat host observed in a config response back
// to its region by hostname prefix. The prefix match tolerates the
// numeric shard suffix varying across launcher versions (na2 vs na1).
func FromChatHost(host string) (Region, bool) {
	host = strings.ToLower(host)
	for _, r := range regions {
		if host == r.ChatHost {
			return r, true
		}
	}
	// fall back to matching the affinity label without its shard digit
	label, _, ok := strings.Cut(host, ".")
	if !ok {
		return Region{}, false
	}
	label = strings.TrimRight(label, "0123456789")
	for _, r := range regions {
		rl, _, _ := strings.Cut(r.ChatHost, ".")
		if strings.TrimRight(rl, "0123456789") == label && strings.HasSuffix(host, ".riotgames.com") {
			return r, true
		}
	}
	return Region{}, false
}

// Registry carries the effective region: the override set through
// the control surface, and the last region observed in a rewritten
// config response. Override wins while set; clearing it re-enables
// observation.
type Registry struct {
	mu        sync.RWMutex
	override  *Region
	observed  *Region
	fallback  Region
	onObserve func(Region)
}

// SetOnObserve registers a callback invoked (outside the registry
// lock) each time an observation changes the observed region.
func (reg *Registry) SetOnObserve(fn func(Region)) {
	reg.mu.Lock()
	reg.onObserve = fn
	reg.mu.Unlock()
}

// NewRegistry returns a registry whose effective region defaults to
// fallbackCode until something better is known.
func NewRegistry(fallbackCode string) (*Registry, error) {
	fb, err := Lookup(fallbackCode)
	if err != nil {
		return nil, err
	}
	return &Registry{fallback: fb}, nil
}

// Effective returns the region the relay should target right now.
func (reg *Registry) Effective() Region {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.override != nil {
		return *reg.override
	}
	if reg.observed != nil {
		return *reg.observed
	}
	return reg.fallback
}

// SetOverride pins the effective region to code. An empty code
// clears the override.
func (reg *Registry) SetOverride(code string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if code == "" {
		reg.override = nil
		return nil
	}
	r, err := Lookup(code)
	if err != nil {
		return err
	}
	reg.override = &r
	return nil
}

// Override reports the current override code, if any.
func (reg *Registry) Override() (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.override == nil {
		return "", false
	}
	return reg.override.Code, true
}

// Observe records the region derived from a chat host seen in a
// config response. Observation never displaces an override; it is
// remembered and takes effect if the override is cleared.
func (reg *Registry) Observe(host string) (Region, bool) {
	r, ok := FromChatHost(host)
	if !ok {
		return Region{}, false
	}
	reg.mu.Lock()
	changed := reg.observed == nil || reg.observed.Code != r.Code
	reg.observed = &r
	fn := reg.onObserve
	reg.mu.Unlock()
	if changed && fn != nil {
		fn(r)
	}
	return r, true
}

// Observed reports the last observed region code, if any.
func (reg *Registry) Observed() (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	if reg.observed == nil {
		return "", false
	}
	return reg.observed.Code, true
}

// RestoreObserved seeds the observation from persisted settings.
func (reg *Registry) RestoreObserved(code string) {
	r, err := Lookup(code)
	if err != nil {
		return
	}
	reg.mu.Lock()
	reg.observed = &r
	reg.mu.Unlock()
}
