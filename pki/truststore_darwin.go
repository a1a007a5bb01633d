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

package pki

import (
	"bytes"
	"os/exec"
	"strings"
)

const systemKeychain = "/Library/Keychains/System.keychain"

// isTrusted asks the security tool for certificates matching our
// common name and compares SHA-1 fingerprints, so a stale CA from a
// previous install does not count as trusted.
func isTrusted(ca *CA) (bool, error) {
	out, err := exec.Command("security",
		"find-certificate", "-a", "-c", CommonName, "-Z", systemKeychain).Output()
	if err != nil {
		// the tool exits nonzero when nothing matches
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, err
	}
	want := ca.FingerprintSHA1()
	for _, line := range bytes.Split(out, []byte("\n")) {
		s := string(bytes.TrimSpace(line))
		if hash, ok := strings.CutPrefix(s, "SHA-1 hash: "); ok &&
			strings.EqualFold(hash, want) {
			return true, nil
		}
	}
	return false, nil
}
