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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/whereisteemo/teemo"
)

func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	t.Setenv("TEEMO_DATA_DIR", t.TempDir())
	o, err := New()
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestInitialStatus(t *testing.T) {
	o := newTestOrchestrator(t)
	status := o.GetStatus()
	if status.StealthMode != "Offline" {
		t.Errorf("default stealth mode = %s, want Offline", status.StealthMode)
	}
	if status.ProxyStatus.State != teemo.StateIdle {
		t.Errorf("default proxy state = %v", status.ProxyStatus)
	}
	if status.ConnectedGame != nil {
		t.Errorf("connected game = %v", *status.ConnectedGame)
	}
}

func TestSetStealthMode(t *testing.T) {
	o := newTestOrchestrator(t)
	status := o.SetStealthMode(teemo.ModeOnline)
	if status.StealthMode != "Online" {
		t.Errorf("stealth mode = %s", status.StealthMode)
	}
	if o.Modes().Mode() != teemo.ModeOnline {
		t.Error("mode bus not updated")
	}
}

func TestSetRegionPersists(t *testing.T) {
	o := newTestOrchestrator(t)
	if err := o.SetRegion("EUW"); err != nil {
		t.Fatal(err)
	}
	if got := o.Registry().Effective().Code; got != "EUW" {
		t.Errorf("effective = %s", got)
	}
	data, err := os.ReadFile(filepath.Join(teemo.AppDataDir(), "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"region_override": "EUW"`) {
		t.Errorf("settings.json = %s", data)
	}

	if err := o.SetRegion(""); err != nil {
		t.Fatal(err)
	}
	if _, ok := o.Registry().Override(); ok {
		t.Error("override not cleared")
	}

	if err := o.SetRegion("XX"); err == nil {
		t.Error("unknown region accepted")
	}
}

func TestGetRegions(t *testing.T) {
	o := newTestOrchestrator(t)
	regions := o.GetRegions()
	if len(regions) != 16 {
		t.Fatalf("%d regions, want 16", len(regions))
	}
	if regions[0].Code != "BR" || regions[0].Name == "" {
		t.Errorf("first region = %+v", regions[0])
	}
}

func TestLaunchRequiresTrust(t *testing.T) {
	if _, err := os.Stat("/Library/Keychains/System.keychain"); err == nil {
		t.Skip("host keychain may actually trust a CA")
	}
	o := newTestOrchestrator(t)
	status := o.LaunchGame(teemo.GameLeagueOfLegends)
	if status.ProxyStatus.State != teemo.StateError {
		t.Fatalf("status = %+v, want error", status.ProxyStatus)
	}
	if !strings.Contains(status.ProxyStatus.Message, "trust required") {
		t.Errorf("message = %q", status.ProxyStatus.Message)
	}
	if status.ConnectedGame != nil {
		t.Error("connected game set despite failed launch")
	}
}

func TestStopIdempotent(t *testing.T) {
	o := newTestOrchestrator(t)
	status := o.StopProxy()
	if status.ProxyStatus.State != teemo.StateIdle {
		t.Errorf("status = %+v", status.ProxyStatus)
	}
	status = o.StopProxy()
	if status.ProxyStatus.State != teemo.StateIdle {
		t.Errorf("second stop = %+v", status.ProxyStatus)
	}
}

func TestNoteErrorSurfacesOnStatus(t *testing.T) {
	o := newTestOrchestrator(t)
	o.noteError("config response could not be parsed")
	status := o.GetStatus()
	if status.ProxyStatus.State != teemo.StateError {
		t.Fatalf("status = %+v", status.ProxyStatus)
	}
	if status.ProxyStatus.Message != "config response could not be parsed" {
		t.Errorf("message = %q", status.ProxyStatus.Message)
	}
}

func TestCertStatusFresh(t *testing.T) {
	o := newTestOrchestrator(t)
	cs := o.GetCertStatus()
	if cs.CAGenerated {
		t.Error("ca_generated true before any CA exists")
	}
	if cs.ServerGenerated || cs.CATrusted {
		t.Errorf("fresh cert status = %+v", cs)
	}

	if err := o.InstallCA(); err != nil {
		// enrollment needs OS privileges; generation must still
		// have happened
		t.Logf("enroll failed as expected without privileges: %v", err)
	}
	cs = o.GetCertStatus()
	if !cs.CAGenerated {
		t.Error("ca_generated false after InstallCA")
	}
}
