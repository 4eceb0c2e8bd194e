package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/99designs/keyring"

	"github.com/openclaw/status-relay/internal/validation"
)

const (
	serviceName     = "status-relay"
	defaultAccount  = "default"
	accountPrefix   = "account:"
	accountIndexKey = "accounts_index"

	envKeyringBackend  = "SR_KEYRING_BACKEND"
	envKeyringPassword = "SR_KEYRING_PASSWORD"
	envCredentialsDir  = "SR_CREDENTIALS_DIR"

	envAccountName = "STATUS_RELAY_ACCOUNT"
	envBackendPort = "STATUS_RELAY_PORT"
	envRoutingKey  = "STATUS_RELAY_ROUTING_KEY"

	keyringBackendAuto   = "auto"
	keyringBackendFile   = "file"
	keyringBackendSystem = "system"
)

// openKeyring is a package-level function for opening keyrings.
// It can be replaced in tests to use a mock keyring.
var openKeyring = func(cfg keyring.Config) (keyring.Keyring, error) {
	return keyring.Open(cfg)
}

var userConfigDir = os.UserConfigDir

var stdinHasTTY = func() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// SetOpenKeyring allows replacing the keyring opener for testing.
// Returns a cleanup function that restores the original.
func SetOpenKeyring(fn func(keyring.Config) (keyring.Keyring, error)) func() {
	original := openKeyring
	openKeyring = fn
	return func() { openKeyring = original }
}

// Account describes one status-backend instance the relay ingests
// from. Port addresses the backend's local HTTP API; KeyUID and
// Password are only needed when the relay drives the login itself.
type Account struct {
	Name       string `json:"name"`
	Port       int    `json:"port"`
	KeyUID     string `json:"key_uid,omitempty"`
	Password   string `json:"password,omitempty"`
	RoutingKey string `json:"routing_key,omitempty"`
	Disabled   bool   `json:"disabled,omitempty"`
}

// Validate checks the fields an account needs before it can be used.
func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("account name must not be empty")
	}
	if err := validation.ValidateAccountName(a.Name); err != nil {
		return err
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("account %q: port %d out of range", a.Name, a.Port)
	}
	if err := validation.ValidateRoutingKey(a.RoutingKey); err != nil {
		return fmt.Errorf("account %q: %w", a.Name, err)
	}
	return nil
}

// ErrNotConfigured is returned when no account is configured
var ErrNotConfigured = errors.New("no status account configured - run 'status-relay auth add' first")

// keyringConfig returns the keyring configuration
func keyringConfig() keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
	}

	backend := keyringBackendMode()
	if backend == keyringBackendSystem {
		return cfg
	}

	// Always configure file backend details in auto mode so keyring.Open can
	// fall through to encrypted file storage when native backends are missing.
	configureFileBackend(&cfg)

	// Headless Linux should bypass other backends and use encrypted file storage.
	if shouldForceFileBackend(runtime.GOOS, backend, os.Getenv("DBUS_SESSION_BUS_ADDRESS")) {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}

	return cfg
}

func keyringBackendMode() string {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv(envKeyringBackend)))
	switch backend {
	case "", keyringBackendAuto:
		return keyringBackendAuto
	case keyringBackendFile:
		return keyringBackendFile
	case keyringBackendSystem, "os", "native":
		return keyringBackendSystem
	default:
		return keyringBackendAuto
	}
}

func shouldForceFileBackend(goos, backend, dbusAddr string) bool {
	if backend == keyringBackendFile {
		return true
	}
	if backend != keyringBackendAuto {
		return false
	}
	return goos == "linux" && strings.TrimSpace(dbusAddr) == ""
}

func configureFileBackend(cfg *keyring.Config) {
	cfg.FileDir = keyringFileDir()
	cfg.FilePasswordFunc = keyringFilePassword
}

func keyringFileDir() string {
	base := strings.TrimSpace(os.Getenv(envCredentialsDir))
	if base == "" {
		if dir, err := userConfigDir(); err == nil && strings.TrimSpace(dir) != "" {
			base = filepath.Join(dir, serviceName)
		}
	}
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			base = filepath.Join(home, ".config", serviceName)
		}
	}
	if base == "" {
		base = filepath.Join(os.TempDir(), serviceName)
	}
	return filepath.Join(base, "keyring")
}

func keyringFilePassword(prompt string) (string, error) {
	if password := os.Getenv(envKeyringPassword); strings.TrimSpace(password) != "" {
		return password, nil
	}
	if !stdinHasTTY() {
		return "", fmt.Errorf("set %s when using file keyring in non-interactive environments", envKeyringPassword)
	}
	return keyring.TerminalPrompt(prompt)
}

func accountKey(name string) string {
	if name == "" {
		name = defaultAccount
	}
	return accountPrefix + name
}

func loadAccountIndex(ring keyring.Keyring) ([]string, error) {
	item, err := ring.Get(accountIndexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to get account index: %w", err)
	}
	var names []string
	if err := json.Unmarshal(item.Data, &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account index: %w", err)
	}
	return names, nil
}

func saveAccountIndex(ring keyring.Keyring, names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to marshal account index: %w", err)
	}
	return ring.Set(keyring.Item{
		Key:  accountIndexKey,
		Data: data,
	})
}

func normalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// envAccount builds an account from environment variables, bypassing
// the keyring. Returns false when STATUS_RELAY_PORT is unset.
func envAccount() (Account, bool, error) {
	portStr := strings.TrimSpace(os.Getenv(envBackendPort))
	if portStr == "" {
		return Account{}, false, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Account{}, false, fmt.Errorf("%s must be a valid TCP port", envBackendPort)
	}
	name := strings.TrimSpace(os.Getenv(envAccountName))
	if name == "" {
		name = defaultAccount
	}
	return Account{
		Name:       name,
		Port:       port,
		RoutingKey: strings.TrimSpace(os.Getenv(envRoutingKey)),
	}, true, nil
}

// SaveAccount stores an account in the OS keychain and registers it in
// the index.
func SaveAccount(account Account) error {
	if account.Name == "" {
		account.Name = defaultAccount
	}
	if err := account.Validate(); err != nil {
		return err
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := ring.Set(keyring.Item{
		Key:  accountKey(account.Name),
		Data: data,
	}); err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	names, err := loadAccountIndex(ring)
	if err != nil {
		return err
	}
	return saveAccountIndex(ring, normalizeNames(append(names, account.Name)))
}

// LoadAccount retrieves one account. Environment variables override
// the keyring when STATUS_RELAY_PORT is set and the requested name
// matches (or no name is requested).
func LoadAccount(name string) (Account, error) {
	if env, ok, err := envAccount(); err != nil {
		return Account{}, err
	} else if ok && (name == "" || name == env.Name) {
		return env, nil
	}
	if name == "" {
		name = defaultAccount
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return Account{}, fmt.Errorf("failed to open keyring: %w", err)
	}

	item, err := ring.Get(accountKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Account{}, ErrNotConfigured
		}
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}

	var account Account
	if err := json.Unmarshal(item.Data, &account); err != nil {
		return Account{}, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	if account.Name == "" {
		account.Name = name
	}
	return account, nil
}

// DeleteAccount removes a stored account.
func DeleteAccount(name string) error {
	if name == "" {
		name = defaultAccount
	}

	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return fmt.Errorf("failed to open keyring: %w", err)
	}

	if err := ring.Remove(accountKey(name)); err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("failed to remove account: %w", err)
		}
	}

	names, err := loadAccountIndex(ring)
	if err != nil {
		return err
	}
	var remaining []string
	for _, n := range names {
		if n != name {
			remaining = append(remaining, n)
		}
	}
	return saveAccountIndex(ring, remaining)
}

// ListAccounts returns the names of all stored accounts.
func ListAccounts() ([]string, error) {
	ring, err := openKeyring(keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return loadAccountIndex(ring)
}

// LoadAll returns every enabled account. With STATUS_RELAY_PORT set it
// returns just the environment-defined account, so one-off runs never
// need a keyring.
func LoadAll() ([]Account, error) {
	if env, ok, err := envAccount(); err != nil {
		return nil, err
	} else if ok {
		return []Account{env}, nil
	}

	names, err := ListAccounts()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, ErrNotConfigured
	}

	var accounts []Account
	for _, name := range names {
		account, err := LoadAccount(name)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", name, err)
		}
		if account.Disabled {
			continue
		}
		accounts = append(accounts, account)
	}
	if len(accounts) == 0 {
		return nil, ErrNotConfigured
	}
	return accounts, nil
}

// HasAccount checks if any account is configured
func HasAccount() bool {
	accounts, err := LoadAll()
	return err == nil && len(accounts) > 0
}
