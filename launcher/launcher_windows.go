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
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/whereisteemo/teemo"
)

// riotClientInstalls is the registry file the Riot installer
// maintains with the active client path.
func riotClientInstalls() string {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return filepath.Join(programData, "Riot Games", "RiotClientInstalls.json")
}

func findClient(teemo.Game) (string, error) {
	if data, err := os.ReadFile(riotClientInstalls()); err == nil {
		var installs struct {
			RCDefault string `json:"rc_default"`
			RCLive    string `json:"rc_live"`
		}
		if json.Unmarshal(data, &installs) == nil {
			for _, candidate := range []string{installs.RCDefault, installs.RCLive} {
				if candidate != "" {
					if _, err := os.Stat(candidate); err == nil {
						return candidate, nil
					}
				}
			}
		}
	}
	fallback := `C:\Riot Games\Riot Client\RiotClientServices.exe`
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", ErrNotInstalled
}

func processNames() []string {
	return []string{
		"RiotClientServices.exe",
		"RiotClientUx.exe",
		"LeagueClient.exe",
		"League of Legends.exe",
		"VALORANT.exe",
		"VALORANT-Win64-Shipping.exe",
	}
}

func killProcess(image string) error {
	return exec.Command("taskkill", "/F", "/IM", image).Run()
}
