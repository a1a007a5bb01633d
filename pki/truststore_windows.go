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
	"os/exec"
	"strings"
)

// isTrusted enumerates the current user's Root store with certutil
// and matches on the CA's SHA-1 fingerprint. certutil prints the
// hash with spaces between byte pairs.
func isTrusted(ca *CA) (bool, error) {
	out, err := exec.Command("certutil", "-store", "-user", "Root").Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return false, nil
		}
		return false, err
	}
	normalize := func(s string) string {
		return strings.ToUpper(strings.NewReplacer(" ", "", "\t", "").Replace(s))
	}
	want := ca.FingerprintSHA1()
	for _, line := range strings.Split(string(out), "\n") {
		s := strings.TrimSpace(line)
		if hash, ok := strings.CutPrefix(s, "Cert Hash(sha1): "); ok &&
			normalize(hash) == want {
			return true, nil
		}
	}
	return false, nil
}
