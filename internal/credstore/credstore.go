// Package credstore models the process-wide TLS credential store as an
// injected capability: a device never touches a platform keystore directly,
// only Add/Delete under its own tag, mirroring the "global TLS credential
// store" design note.
package credstore

import (
	"crypto/tls"
	"sync"

	"github.com/cirrus-iot/astarte-device-sdk/internal/asterr"
)

// Role distinguishes the credential's purpose within the store.
type Role int

const (
	RoleDeviceCertificate Role = iota
	RolePairingCA
)

// Store is the capability a Device mediates all credential mutations
// through: add under a tag, delete under a tag. The default implementation
// is in-process and unkeyed to any platform keystore.
type Store interface {
	Add(tag string, role Role, certPEM, keyPEM []byte) error
	Get(tag string) (tls.Certificate, bool)
	CertPEM(tag string) ([]byte, bool)
	Delete(tag string) error
}

type entry struct {
	role    Role
	cert    tls.Certificate
	certPEM []byte
}

// Memory is the default in-memory Store, keyed by credential tag.
type Memory struct {
	mu    sync.RWMutex
	byTag map[string]entry
}

// NewMemory returns an empty credential store.
func NewMemory() *Memory {
	return &Memory{byTag: make(map[string]entry)}
}

func (s *Memory) Add(tag string, role Role, certPEM, keyPEM []byte) error {
	const op = "credstore.Memory.Add"
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return asterr.New(asterr.KindClientCertInvalid, op, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTag[tag] = entry{role: role, cert: cert, certPEM: certPEM}
	return nil
}

func (s *Memory) Get(tag string) (tls.Certificate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byTag[tag]
	return e.cert, ok
}

// CertPEM returns the raw PEM-encoded certificate stored under tag, for
// callers that need to re-present it to the pairing API (e.g. certificate
// verification) rather than use it for a TLS handshake.
func (s *Memory) CertPEM(tag string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byTag[tag]
	return e.certPEM, ok
}

func (s *Memory) Delete(tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byTag, tag)
	return nil
}
