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

// Package pki owns the locally-generated root CA that signs the
// leaf certificates presented to the game launcher, and its
// enrollment in the OS trust store. The CA private key never leaves
// the per-user app-data directory.
package pki

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/whereisteemo/teemo"
)

// CommonName identifies the root CA in trust stores.
const CommonName = "Where Is Teemo Local CA"

const (
	caCertFile = "ca.pem"
	caKeyFile  = "ca.key"

	caValidity   = 10 * 365 * 24 * time.Hour
	leafValidity = 397 * 24 * time.Hour
)

// caMu serializes first-run CA generation so two callers cannot
// race to write ca.pem/ca.key.
var caMu sync.Mutex

// CA is the loaded root certificate and its signing key.
type CA struct {
	cert   *x509.Certificate
	der    []byte
	key    *ecdsa.PrivateKey
	logger *zap.Logger
}

// EnsureCA loads the root CA from the app-data directory, creating
// and persisting a fresh one if either file is missing. Generation
// happens at most once per install.
func EnsureCA() (*CA, error) {
	caMu.Lock()
	defer caMu.Unlock()

	dir := teemo.AppDataDir()
	certPath := filepath.Join(dir, caCertFile)
	keyPath := filepath.Join(dir, caKeyFile)

	ca, err := loadCA(certPath, keyPath)
	if err == nil {
		return ca, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading CA: %v", err)
	}

	ca, certPEM, keyPEM, err := generateCA()
	if err != nil {
		return nil, err
	}
	if err := teemo.WriteFileAtomic(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("persisting CA certificate: %v", err)
	}
	if err := teemo.WriteFileAtomic(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("persisting CA key: %v", err)
	}
	ca.logger.Info("generated root CA",
		zap.String("common_name", CommonName),
		zap.String("fingerprint", ca.FingerprintSHA1()))
	return ca, nil
}

// CAOnDisk reports whether the persisted CA files exist, without
// loading or generating anything. Used for status reporting.
func CAOnDisk() bool {
	dir := teemo.AppDataDir()
	for _, name := range []string{caCertFile, caKeyFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

func loadCA(certPath, keyPath string) (*CA, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	certBlock, _ := pem.Decode(certPEM)
	if certBlock == nil || certBlock.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("%s is not a PEM certificate", certPath)
	}
	cert, err := x509.ParseCertificate(certBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %v", certPath, err)
	}
	keyBlock, _ := pem.Decode(keyPEM)
	if keyBlock == nil || keyBlock.Type != "EC PRIVATE KEY" {
		return nil, fmt.Errorf("%s is not a PEM EC private key", keyPath)
	}
	key, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %v", keyPath, err)
	}
	return &CA{
		cert:   cert,
		der:    certBlock.Bytes,
		key:    key,
		logger: teemo.Log().Named("pki"),
	}, nil
}

func generateCA() (*CA, []byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("generating CA key: %v", err)
	}
	serial, err := newSerial()
	if err != nil {
		return nil, nil, nil, err
	}
	notBefore := time.Now().Add(-time.Hour)
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   CommonName,
			Organization: []string{"Where Is Teemo"},
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating CA certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	ca := &CA{
		cert:   cert,
		der:    der,
		key:    key,
		logger: teemo.Log().Named("pki"),
	}
	return ca, certPEM, keyPEM, nil
}

func newSerial() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %v", err)
	}
	return serial, nil
}

// Certificate returns the parsed root certificate.
func (ca *CA) Certificate() *x509.Certificate {
	return ca.cert
}

// CertificatePEM exports the root certificate for trust-store
// enrollment.
func (ca *CA) CertificatePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: ca.der})
}

// FingerprintSHA1 returns the uppercase hex SHA-1 fingerprint of
// the root certificate, the form trust stores display.
func (ca *CA) FingerprintSHA1() string {
	sum := sha1.Sum(ca.der)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// SignLeaf issues a server-auth leaf whose SAN extension contains
// exactly the given entries. IP literals land in IPAddresses,
// everything else in DNSNames. Two calls with equal SAN sets yield
// interchangeable (not byte-identical) leafs.
func (ca *CA) SignLeaf(sans []string) (tls.Certificate, error) {
	if len(sans) == 0 {
		return tls.Certificate{}, fmt.Errorf("leaf certificate needs at least one SAN")
	}
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generating leaf key: %v", err)
	}
	serial, err := newSerial()
	if err != nil {
		return tls.Certificate{}, err
	}
	notBefore := time.Now().Add(-time.Hour)
	notAfter := notBefore.Add(leafValidity)
	if notAfter.After(ca.cert.NotAfter) {
		notAfter = ca.cert.NotAfter
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: sans[0]},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, san := range sans {
		if ip := net.ParseIP(san); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, strings.ToLower(san))
		}
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("signing leaf certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.Certificate{
		Certificate: [][]byte{der, ca.der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
