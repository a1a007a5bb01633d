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

// Package launcher finds, terminates, and starts the Riot client.
// The spawn flags are the whole trick: the launcher is pointed at
// the local config endpoint instead of Riot's.
package launcher

import (
	"errors"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
)

// ErrNotInstalled reports that no Riot client executable could be
// located on this machine.
var ErrNotInstalled = errors.New("riot client not installed")

// Controller drives the platform's Riot client binary.
type Controller struct {
	logger *zap.Logger
}

// New returns a launcher controller.
func New() *Controller {
	return &Controller{logger: teemo.Log().Named("launcher")}
}

// Find locates the Riot client executable for the given game.
func (c *Controller) Find(game teemo.Game) (string, error) {
	path, err := findClient(game)
	if err != nil {
		return "", err
	}
	return path, nil
}

// KillRunning terminates any running Riot client or game process.
// Best effort: a process that is already gone is not an error.
func (c *Controller) KillRunning() {
	for _, name := range processNames() {
		if err := killProcess(name); err != nil {
			c.logger.Debug("kill skipped", zap.String("process", name), zap.Error(err))
		}
	}
}

// Launch spawns the Riot client pointed at the local config
// endpoint and returns immediately without waiting.
func (c *Controller) Launch(game teemo.Game, configURL string) error {
	path, err := c.Find(game)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, launchArgs(game, configURL)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning %s: %v", path, err)
	}
	c.logger.Info("launched riot client",
		zap.String("game", string(game)),
		zap.String("path", path),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("config_url", configURL))
	// fire-and-forget; reap the child so it never zombies
	go cmd.Wait()
	return nil
}

// launchArgs builds the exact flag set the Riot client expects.
func launchArgs(game teemo.Game, configURL string) []string {
	return []string{
		fmt.Sprintf("--launch-product=%s", game),
		"--launch-patchline=live",
		fmt.Sprintf("--client-config-url=%s", configURL),
	}
}
