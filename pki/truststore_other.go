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

//go:build !darwin && !windows

package pki

import "crypto/x509"

// isTrusted verifies the CA against the system root pool. A
// self-signed root only verifies if the pool actually contains it.
func isTrusted(ca *CA) (bool, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		return false, err
	}
	_, err = ca.cert.Verify(x509.VerifyOptions{Roots: roots})
	return err == nil, nil
}
