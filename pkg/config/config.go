// Package config holds the agent's process-wide configuration: a flat
// string key/value map loaded from an INI-like file, plus the resolved
// filesystem layout (conf/data/bin/logs/tmp/run directories) relative to
// the agent binary.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/csudata/clup-agent/pkg/logging"
)

// Store is a process-wide key/value map guarded by a single exclusive
// lock. At most one value is stored per key; the last write wins, and
// every read observes a completed write.
type Store struct {
	mu   sync.RWMutex
	data map[string]string

	rootPath string
	confPath string
	dataPath string
	binPath  string
	logPath  string
	tmpPath  string
	runPath  string

	configFile string
}

// New builds a Store rooted at the directory containing the running
// executable (one level above the binary's own directory, mirroring the
// original agent's lib/config.py:get_root_path layout).
func New() (*Store, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("resolve executable symlink: %w", err)
	}
	root := filepath.Dir(filepath.Dir(exe))
	return NewAt(root), nil
}

// NewAt builds a Store rooted at an explicit directory, primarily for
// tests and for daemons invoked with a non-standard layout.
func NewAt(root string) *Store {
	s := &Store{
		data:       make(map[string]string),
		rootPath:   root,
		confPath:   filepath.Join(root, "conf"),
		dataPath:   filepath.Join(root, "data"),
		binPath:    filepath.Join(root, "bin"),
		logPath:    filepath.Join(root, "logs"),
		tmpPath:    filepath.Join(root, "tmp"),
		configFile: filepath.Join(root, "conf", "clup-agent.conf"),
	}
	if _, err := os.Stat("/run"); err == nil {
		s.runPath = "/run"
	} else {
		s.runPath = "/var/run"
	}
	return s
}

// Load reads the INI-like config file (# and ; comments, key = value
// pairs) and then resolves this host's own management IP, storing it
// under the "my_ip" key. Load is fatal on a missing/unparseable file or
// on unresolved multi-homing, matching the source agent's behavior of
// exiting the process rather than starting half-configured.
func (s *Store) Load() error {
	data, err := s.parseFile(s.configFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	myIP, err := ResolveManagementIP(s.getLocked("mgr_network"))
	if err != nil {
		return fmt.Errorf("resolve management ip: %w", err)
	}

	s.mu.Lock()
	s.data["my_ip"] = myIP
	s.mu.Unlock()
	return nil
}

// Reload re-parses the config file in place, preserving my_ip unless the
// file itself overrides it. Used by the fsnotify-driven hot reload.
func (s *Store) Reload() error {
	data, err := s.parseFile(s.configFile)
	if err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}
	s.mu.Lock()
	myIP := s.data["my_ip"]
	if v, ok := data["my_ip"]; ok {
		myIP = v
	}
	data["my_ip"] = myIP
	s.data = data
	s.mu.Unlock()
	return nil
}

// Watch starts an fsnotify watch on the config file's directory and
// calls Reload whenever the file is written or replaced (editors
// commonly rename a temp file over the original rather than writing it
// in place). It runs until stop is closed, logging and continuing past
// any single Reload error rather than giving up the watch.
func (s *Store) Watch(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}

	dir := filepath.Dir(s.configFile)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.configFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					logging.Errorf(err, "reload config after %s", event.Op)
				} else {
					logging.Info("config reloaded after on-disk change")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Errorf(err, "config watcher")
			}
		}
	}()
	return nil
}

func (s *Store) parseFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '#' || line[0] == ';' {
			continue
		}
		pos := strings.Index(line, "=")
		if pos < 0 {
			continue
		}
		key := strings.TrimSpace(line[:pos])
		val := strings.TrimSpace(line[pos+1:])
		out[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the value for key, or def if the key is unset.
func (s *Store) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLockedDefault(key, def)
}

func (s *Store) getLocked(key string) string {
	return s.data[key]
}

func (s *Store) getLockedDefault(key, def string) string {
	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// GetInt returns the value for key parsed as an integer. It returns an
// error if the key is absent or not a valid integer, matching the
// source's getint(), which raises on both.
func (s *Store) GetInt(key string) (int, error) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("config key %q not set", key)
	}
	return strconv.Atoi(v)
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// HasKey reports whether key has ever been set.
func (s *Store) HasKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok
}

// All returns a point-in-time copy of the whole map.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Merge applies a batch of key/values atomically (used by the
// registration loop to merge the controller's response payload into C1).
func (s *Store) Merge(kv map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		s.data[k] = v
	}
}

func (s *Store) RootPath() string { return s.rootPath }
func (s *Store) ConfPath() string { return s.confPath }
func (s *Store) DataPath() string { return s.dataPath }
func (s *Store) BinPath() string  { return s.binPath }
func (s *Store) LogPath() string  { return s.logPath }
func (s *Store) TmpPath() string  { return s.tmpPath }
func (s *Store) RunPath() string  { return s.runPath }

// PIDFile returns the path of the agent's PID file under RunPath.
func (s *Store) PIDFile() string {
	return filepath.Join(s.runPath, "clup-agent.pid")
}

// ConfigFile returns the path of the config file Load/Reload read from.
func (s *Store) ConfigFile() string {
	return s.configFile
}

// SetConfigFile overrides the config file path, for tests.
func (s *Store) SetConfigFile(path string) {
	s.configFile = path
}
