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

package launcher

import (
	"runtime"
	"testing"

	"github.com/whereisteemo/teemo"
)

func TestLaunchArgs(t *testing.T) {
	got := launchArgs(teemo.GameValorant, "https://127.0.0.1:49152")
	want := []string{
		"--launch-product=valorant",
		"--launch-patchline=live",
		"--client-config-url=https://127.0.0.1:49152",
	}
	if len(got) != len(want) {
		t.Fatalf("args = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindNotInstalled(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("a real install may be present")
	}
	c := New()
	if _, err := c.Find(teemo.GameLeagueOfLegends); err != ErrNotInstalled {
		t.Errorf("Find = %v, want ErrNotInstalled", err)
	}
	if err := c.Launch(teemo.GameLeagueOfLegends, "https://127.0.0.1:1"); err != ErrNotInstalled {
		t.Errorf("Launch = %v, want ErrNotInstalled", err)
	}
}

func TestKillRunningBestEffort(t *testing.T) {
	// must never panic or error, even with nothing to kill
	New().KillRunning()
}
