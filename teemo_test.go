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

package teemo

import (
	"encoding/json"
	"testing"
)

func TestProxyStatusJSON(t *testing.T) {
	for _, tc := range []struct {
		status ProxyStatus
		want   string
	}{
		{ProxyStatus{State: StateIdle}, `"Idle"`},
		{ProxyStatus{State: StateRunning}, `"Running"`},
		{ProxyStatus{State: StateError, Message: "trust required"}, `{"Error":"trust required"}`},
	} {
		data, err := json.Marshal(tc.status)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != tc.want {
			t.Errorf("marshal %v = %s, want %s", tc.status, data, tc.want)
		}
		var back ProxyStatus
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != tc.status {
			t.Errorf("round trip: %v != %v", back, tc.status)
		}
	}
}

func TestStatusInfoJSON(t *testing.T) {
	game := GameValorant
	info := StatusInfo{
		StealthMode:   ModeInvisible.WireName(),
		ProxyStatus:   ProxyStatus{State: StateRunning},
		ConnectedGame: &game,
	}
	data, err := json.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"stealth_mode":"Offline","proxy_status":"Running","connected_game":"valorant"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	info.ConnectedGame = nil
	data, _ = json.Marshal(info)
	want = `{"stealth_mode":"Offline","proxy_status":"Running","connected_game":null}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestParseMode(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"Online", ModeOnline, true},
		{"Offline", ModeInvisible, true},
		{"invisible", ModeInvisible, true},
		{"away", "", false},
	} {
		got, err := ParseMode(tc.in)
		if (err == nil) != tc.ok {
			t.Errorf("ParseMode(%q) err = %v", tc.in, err)
			continue
		}
		if tc.ok && got != tc.want {
			t.Errorf("ParseMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseGame(t *testing.T) {
	if _, err := ParseGame("league_of_legends"); err != nil {
		t.Error(err)
	}
	if _, err := ParseGame("fortnite"); err == nil {
		t.Error("ParseGame accepted an unknown game")
	}
}
