package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.yaml.in/yaml/v3"

	"eveswitch/internal/hotkeys"
)

const (
	maxConfigFileBytes int64 = 1 << 20 // 1MB
	maxRenameRetry           = 10
	// Windows file lock releases (antivirus/indexing) typically settle quickly.
	// Use a short linear backoff: baseDelay * (1..maxRenameRetry).
	renameRetryBaseDelay = 10 * time.Millisecond

	appDirName           = "eveswitch"
	defaultSettingsFile  = "hotkeys.ini"
	defaultProcessName   = "exefile.exe"
	defaultEventAddr     = "127.0.0.1:0"
	defaultLogLevel      = "info"
	maxProcessNameLength = 260
)

// defaultConfigDirFn is a test seam; tests override it to simulate
// directory-resolution failures in validateConfigPath.
var defaultConfigDirFn = defaultConfigDir
var userHomeDirFn = os.UserHomeDir
var defaultPathWarningState struct {
	mu       sync.Mutex
	messages []string
}

func recordDefaultPathWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	defaultPathWarningState.mu.Lock()
	defaultPathWarningState.messages = append(defaultPathWarningState.messages, trimmed)
	defaultPathWarningState.mu.Unlock()
}

// ConsumeDefaultPathWarnings returns and clears path-resolution warnings
// accumulated during DefaultPath() calls.
func ConsumeDefaultPathWarnings() []string {
	defaultPathWarningState.mu.Lock()
	defer defaultPathWarningState.mu.Unlock()
	if len(defaultPathWarningState.messages) == 0 {
		return nil
	}
	out := make([]string, len(defaultPathWarningState.messages))
	copy(out, defaultPathWarningState.messages)
	defaultPathWarningState.messages = nil
	return out
}

// EventStreamConfig controls the local WebSocket event stream.
type EventStreamConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Addr must be a loopback host:port. Port 0 lets the OS pick one.
	Addr string `yaml:"addr" json:"addr"`
}

// Config is the eveswitch runtime configuration. Hotkey bindings live in
// the separate settings file referenced by SettingsPath.
type Config struct {
	// SettingsPath is the INI file holding the hotkey bindings.
	// Empty means hotkeys.ini next to config.yaml.
	SettingsPath           string `yaml:"settings_path,omitempty" json:"settings_path,omitempty"`
	WildcardHotkeys        bool   `yaml:"wildcard_hotkeys" json:"wildcard_hotkeys"`
	HotkeysOnlyWhenFocused bool   `yaml:"hotkeys_only_when_focused" json:"hotkeys_only_when_focused"`
	// ProcessNames is the focus-gating allow-list, matched case-insensitively
	// against the foreground process executable name.
	ProcessNames []string `yaml:"process_names" json:"process_names"`
	// ProfileHotkeys maps a profile name to a binding such as "Ctrl+F5".
	// These are registered and conflict-checked but never written to the
	// settings file.
	ProfileHotkeys map[string]string `yaml:"profile_hotkeys,omitempty" json:"profile_hotkeys,omitempty"`
	Notifications  bool              `yaml:"notifications" json:"notifications"`
	EventStream    EventStreamConfig `yaml:"event_stream" json:"event_stream"`
	LogLevel       string            `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ProcessNames:  []string{defaultProcessName},
		Notifications: true,
		EventStream: EventStreamConfig{
			Enabled: true,
			Addr:    defaultEventAddr,
		},
		LogLevel: defaultLogLevel,
	}
}

// DefaultPath resolves the config file path, preferring LOCALAPPDATA over
// APPDATA, falling back to ~/.config when both are unset, and then to
// os.TempDir() if the home directory cannot be resolved.
func DefaultPath() string {
	base := strings.TrimSpace(os.Getenv("LOCALAPPDATA"))
	if base == "" {
		base = strings.TrimSpace(os.Getenv("APPDATA"))
	}
	if base == "" {
		home, err := userHomeDirFn()
		if err != nil {
			// Keep config path resolvable even in restricted environments.
			slog.Warn("[WARN-CONFIG] using temp dir as config path fallback", "error", err)
			recordDefaultPathWarning(
				"Config path fallback: failed to resolve LOCALAPPDATA/APPDATA/home directory. Using temp directory; settings persistence may be limited.",
			)
			base = os.TempDir()
		} else {
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, appDirName, "config.yaml")
}

// ResolveSettingsPath returns the bindings file for cfg loaded from configPath.
func (c Config) ResolveSettingsPath(configPath string) string {
	if p := strings.TrimSpace(c.SettingsPath); p != "" {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(filepath.Dir(configPath), p)
	}
	return filepath.Join(filepath.Dir(configPath), defaultSettingsFile)
}

// ProfileBindings parses ProfileHotkeys. Entries that fail to parse were
// already dropped by Load/Save; any left over are skipped here too.
func (c Config) ProfileBindings() map[string]hotkeys.Binding {
	out := make(map[string]hotkeys.Binding, len(c.ProfileHotkeys))
	for name, spec := range c.ProfileHotkeys {
		b, err := hotkeys.ParseSpec(spec)
		if err != nil {
			continue
		}
		out[name] = b
	}
	return out
}

// HotkeyOptions returns the registration and dispatch options.
func (c Config) HotkeyOptions() hotkeys.Options {
	return hotkeys.Options{
		Wildcard:         c.WildcardHotkeys,
		FocusGating:      c.HotkeysOnlyWhenFocused,
		AllowedProcesses: slices.Clone(c.ProcessNames),
	}
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to Info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the config file. If the file does not exist, defaults are
// returned. A parse error returns defaults together with the error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, errors.New("config path required")
	}

	raw, err := readLimitedFile(path, maxConfigFileBytes)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("[WARN-CONFIG] failed to parse config, using defaults", "path", path, "error", err)
		return DefaultConfig(), err
	}
	applyDefaultsAndSanitize(&cfg)
	return cfg, nil
}

// EnsureFile writes default config if missing and returns loaded config.
func EnsureFile(path string) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if _, err := Save(path, cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// Clone returns a deep copy of src.
func Clone(src Config) Config {
	dst := src
	dst.ProcessNames = slices.Clone(src.ProcessNames)
	dst.ProfileHotkeys = maps.Clone(src.ProfileHotkeys)
	return dst
}

// Save sanitizes cfg and atomically writes it to path.
// Returns the normalized config that was actually written to disk.
func Save(path string, cfg Config) (Config, error) {
	normalizedPath, err := validateConfigPath(path)
	if err != nil {
		return cfg, err
	}
	cfg = Clone(cfg)
	applyDefaultsAndSanitize(&cfg)

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return cfg, fmt.Errorf("save config: marshal: %w", err)
	}
	if err := AtomicWrite(normalizedPath, raw); err != nil {
		return cfg, fmt.Errorf("save config: %w", err)
	}
	slog.Debug("[DEBUG-CONFIG] config saved", "path", path)
	return cfg, nil
}

// AtomicWrite writes data using temp-file + rename to avoid partial writes
// and retries rename on Windows to tolerate transient file locks.
func AtomicWrite(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	// Atomic write: temp file + rename in same directory ensures
	// same-filesystem rename and prevents partial writes on crash.
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			if closeErr := tmpFile.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
				slog.Warn("[WARN-CONFIG] failed to close temp file", "path", tmpPath, "error", closeErr)
			}
		}
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
				slog.Warn("[WARN-CONFIG] failed to remove temp file", "path", tmpPath, "error", removeErr)
			}
		}
	}()

	if err = tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}
	if _, err = tmpFile.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err = tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	err = tmpFile.Close()
	tmpFile = nil
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err = renameFileWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// validateConfigPath normalizes path and enforces that config writes stay
// inside the default config directory when that directory is resolvable.
func validateConfigPath(path string) (string, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return "", errors.New("config path required")
	}
	absolutePath, err := filepath.Abs(trimmedPath)
	if err != nil {
		return "", fmt.Errorf("save config: resolve path: %w", err)
	}

	expectedDir, err := defaultConfigDirFn()
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	absoluteExpectedDir, err := filepath.Abs(expectedDir)
	if err != nil {
		return "", fmt.Errorf("save config: resolve config dir: %w", err)
	}
	if !pathWithinDir(absolutePath, absoluteExpectedDir) {
		return "", fmt.Errorf("save config: path outside config directory: %q", absolutePath)
	}

	return absolutePath, nil
}

func defaultConfigDir() (string, error) {
	return filepath.Dir(DefaultPath()), nil
}

// pathWithinDir blocks directory traversal by ensuring path is under dir.
// It also rejects Windows cross-drive escapes because filepath.Rel returns
// an absolute path when roots differ.
func pathWithinDir(path string, dir string) bool {
	relativePath, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	if relativePath == "." {
		return true
	}
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(relativePath)
}

// applyDefaultsAndSanitize fills missing defaults and drops invalid entries
// in-place. Problems are logged, never fatal.
// MUTATES: cfg is directly modified.
func applyDefaultsAndSanitize(cfg *Config) {
	if isZeroConfig(*cfg) {
		*cfg = DefaultConfig()
		return
	}
	sanitizeProcessNames(cfg)
	sanitizeProfileHotkeys(cfg)
	sanitizeEventStream(cfg)

	switch strings.ToLower(strings.TrimSpace(cfg.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	case "":
		cfg.LogLevel = defaultLogLevel
	default:
		slog.Warn("[WARN-CONFIG] unknown log_level, using default", "value", cfg.LogLevel, "default", defaultLogLevel)
		cfg.LogLevel = defaultLogLevel
	}
}

func sanitizeProcessNames(cfg *Config) {
	seen := make(map[string]struct{}, len(cfg.ProcessNames))
	out := make([]string, 0, len(cfg.ProcessNames))
	for _, name := range cfg.ProcessNames {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if len(trimmed) > maxProcessNameLength || strings.ContainsAny(trimmed, `\/`) {
			slog.Warn("[WARN-CONFIG] process_names entry must be a bare executable name, skipping", "value", name)
			continue
		}
		key := strings.ToLower(trimmed)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		out = []string{defaultProcessName}
	}
	cfg.ProcessNames = out
}

func sanitizeProfileHotkeys(cfg *Config) {
	if len(cfg.ProfileHotkeys) == 0 {
		cfg.ProfileHotkeys = nil
		return
	}
	out := make(map[string]string, len(cfg.ProfileHotkeys))
	for _, name := range slices.Sorted(maps.Keys(cfg.ProfileHotkeys)) {
		spec := cfg.ProfileHotkeys[name]
		trimmedName := strings.TrimSpace(name)
		if trimmedName == "" {
			slog.Warn("[WARN-CONFIG] profile_hotkeys entry with empty name skipped", "spec", spec)
			continue
		}
		b, err := hotkeys.ParseSpec(spec)
		if err != nil {
			slog.Warn("[WARN-CONFIG] invalid profile hotkey skipped", "profile", name, "spec", spec, "error", err)
			continue
		}
		out[trimmedName] = b.Label()
	}
	if len(out) == 0 {
		out = nil
	}
	cfg.ProfileHotkeys = out
}

func sanitizeEventStream(cfg *Config) {
	addr := strings.TrimSpace(cfg.EventStream.Addr)
	if addr == "" {
		cfg.EventStream.Addr = defaultEventAddr
		return
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		slog.Warn("[WARN-CONFIG] invalid event_stream.addr, using default", "value", addr, "error", err)
		cfg.EventStream.Addr = defaultEventAddr
		return
	}
	if host != "localhost" {
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			slog.Warn("[WARN-CONFIG] event_stream.addr must be a loopback address, using default", "value", addr)
			cfg.EventStream.Addr = defaultEventAddr
			return
		}
	}
	cfg.EventStream.Addr = addr
}

func readLimitedFile(path string, maxBytes int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	limited := io.LimitReader(file, maxBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > maxBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", maxBytes)
	}
	return raw, nil
}

func isZeroConfig(cfg Config) bool {
	// reflect.DeepEqual guards against field-addition drift that manual checks miss.
	return reflect.DeepEqual(cfg, Config{})
}

func renameFileWithRetry(sourcePath string, targetPath string) error {
	var lastErr error
	for attempt := range maxRenameRetry {
		err := os.Rename(sourcePath, targetPath)
		if err == nil {
			return nil
		}
		lastErr = err
		if runtime.GOOS != "windows" {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * renameRetryBaseDelay)
	}
	return lastErr
}
