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

//go:build !windows && !darwin

package launcher

import "github.com/whereisteemo/teemo"

// The Riot client only ships for Windows and macOS.

func findClient(teemo.Game) (string, error) {
	return "", ErrNotInstalled
}

func processNames() []string { return nil }

func killProcess(string) error { return nil }
