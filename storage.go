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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// AppDataDir returns the per-user directory where the CA material
// and settings live. It honors TEEMO_DATA_DIR for tests and
// otherwise follows platform convention.
func AppDataDir() string {
	if dir := os.Getenv("TEEMO_DATA_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "WhereIsTeemo")
		}
	case "darwin":
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, "Library", "Application Support", "WhereIsTeemo")
		}
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "whereisteemo")
		}
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, ".local", "share", "whereisteemo")
		}
	}
	return "./whereisteemo"
}

// WriteFileAtomic writes data to a temporary file in the target's
// directory and renames it into place, so readers never observe a
// partially-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %v", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %v", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %v", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Settings is the durable state in settings.json.
type Settings struct {
	RegionOverride     *string `json:"region_override"`
	LastObservedRegion *string `json:"last_observed_region"`
}

const settingsFile = "settings.json"

// settingsMu serializes reads and writes of settings.json so a load
// never overlaps a save.
var settingsMu sync.Mutex

// LoadSettings reads settings.json from the app-data directory.
// A missing file yields zero-value settings, not an error.
func LoadSettings() (Settings, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	var s Settings
	data, err := os.ReadFile(filepath.Join(AppDataDir(), settingsFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("reading settings: %v", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parsing settings: %v", err)
	}
	return s, nil
}

// SaveSettings atomically persists settings.json.
func SaveSettings(s Settings) error {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(AppDataDir(), settingsFile), data, 0o600)
}
