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
	"os"
	"os/exec"

	"github.com/whereisteemo/teemo"
)

func findClient(teemo.Game) (string, error) {
	candidates := []string{
		"/Applications/Riot Client.app/Contents/MacOS/RiotClientServices",
		"/Users/Shared/Riot Games/Riot Client.app/Contents/MacOS/RiotClientServices",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrNotInstalled
}

func processNames() []string {
	return []string{
		"RiotClientServices",
		"LeagueClient",
		"League of Legends",
	}
}

func killProcess(name string) error {
	return exec.Command("pkill", "-x", name).Run()
}
