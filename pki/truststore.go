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
	"errors"
	"fmt"

	"github.com/smallstep/truststore"
	"go.uber.org/zap"
)

// ErrDeclined reports that the user refused the trust-store prompt.
// The relay must not start while the CA is untrusted.
var ErrDeclined = errors.New("trust store enrollment declined")

// Enroll installs the root CA into the OS trust store. It is
// idempotent: if a certificate with the CA's fingerprint is already
// trusted it returns immediately without prompting.
func (ca *CA) Enroll() error {
	trusted, err := ca.IsTrusted()
	if err != nil {
		ca.logger.Warn("could not determine trust state; attempting enrollment anyway",
			zap.Error(err))
	} else if trusted {
		ca.logger.Debug("root CA already trusted",
			zap.String("fingerprint", ca.FingerprintSHA1()))
		return nil
	}

	ca.logger.Info("installing root CA into trust store; the OS may prompt for approval",
		zap.String("common_name", CommonName))
	if err := truststore.Install(ca.cert); err != nil {
		return fmt.Errorf("%w: %v", ErrDeclined, err)
	}
	return nil
}

// Unenroll removes the root CA from the OS trust store.
func (ca *CA) Unenroll() error {
	if err := truststore.Uninstall(ca.cert); err != nil {
		return fmt.Errorf("removing root CA from trust store: %v", err)
	}
	return nil
}

// IsTrusted reports whether the current CA (by fingerprint) is in
// the OS trust store. The check is platform-specific and never
// prompts.
func (ca *CA) IsTrusted() (bool, error) {
	return isTrusted(ca)
}
