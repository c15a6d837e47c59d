// Package credentials persists rolechat login sessions in credentials.toml.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/rolechat/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	// TokenEnvVar overrides the stored token for every server when set.
	TokenEnvVar = "ROLECHAT_TOKEN"
)

// Manager manages reading and writing credentials.toml in the .rolechat/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .rolechat/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Servers: make(map[string]ServerCredential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Servers == nil {
		creds.Servers = make(map[string]ServerCredential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// SetSession stores the session for the given server.
func (m *Manager) SetSession(server string, cred ServerCredential) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Servers[serverKey(server)] = cred

	return m.Save(creds)
}

// GetSession returns the stored session for the given server, or nil if
// there is none.
func (m *Manager) GetSession(server string) (*ServerCredential, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	sc, ok := creds.Servers[serverKey(server)]
	if !ok {
		return nil, nil
	}

	return &sc, nil
}

// RemoveSession deletes the stored session for a server.
func (m *Manager) RemoveSession(server string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Servers, serverKey(server))

	return m.Save(creds)
}

// ListServers returns the servers that have stored sessions.
func (m *Manager) ListServers() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	servers := make([]string, 0, len(creds.Servers))
	for name := range creds.Servers {
		servers = append(servers, name)
	}

	sort.Strings(servers)

	return servers, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// ForServer returns the token store for a single server.
func (m *Manager) ForServer(server string) *ServerStore {
	return &ServerStore{mgr: m, server: server}
}

// ServerStore exposes the token of one server to the API client.
type ServerStore struct {
	mgr    *Manager
	server string
}

// Token returns the bearer token for the server. TokenEnvVar wins over the
// stored value. An empty token means no session.
func (s *ServerStore) Token() (string, error) {
	if tok := os.Getenv(TokenEnvVar); tok != "" {
		return tok, nil
	}

	sc, err := s.mgr.GetSession(s.server)
	if err != nil || sc == nil {
		return "", err
	}

	return sc.Token, nil
}

// ClearToken forgets the stored session for the server.
func (s *ServerStore) ClearToken() error {
	return s.mgr.RemoveSession(s.server)
}

// serverKey normalizes a base URL so trailing slashes do not split sessions.
func serverKey(server string) string {
	return strings.TrimRight(server, "/")
}
