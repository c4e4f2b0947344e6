// Package town locates the town workspace and enumerates its data stores:
// the town-level beads directory plus one per rig. Each store carries a
// stable human-assigned identity derived from its beads config prefix,
// never from its filesystem path.
package town

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/townworks/towncrier/pkg/logger"
)

const (
	// TownSourceID is the well-known identity of the town-level store.
	TownSourceID = "town"

	beadsDirName   = ".beads"
	configFileName = "config.yaml"
)

// Source is one discovered data store.
type Source struct {
	ID         string `json:"id"`
	WorkingDir string `json:"working_dir"`
	DataDir    string `json:"data_dir"` // redirect-resolved
}

// beadsConfig mirrors just the identity keys of .beads/config.yaml.
type beadsConfig struct {
	Prefix      string `yaml:"prefix"`
	IssuePrefix string `yaml:"issue-prefix"`
}

// Discovery enumerates sources under a town root. The prefix cache is an
// explicit member rebuilt wholesale, never a module-level singleton; a data
// dir not yet in the cache is always read fresh, so newly appeared sources
// are never served stale.
type Discovery struct {
	root string

	mu       sync.Mutex
	prefixes map[string]string // data dir -> derived source id
}

// NewDiscovery creates a Discovery rooted at townRoot.
func NewDiscovery(townRoot string) *Discovery {
	return &Discovery{
		root:     townRoot,
		prefixes: make(map[string]string),
	}
}

// Root returns the town root directory.
func (d *Discovery) Root() string { return d.root }

// RebuildCache drops all memoized prefix derivations. The next Sources call
// re-reads every store's config.
func (d *Discovery) RebuildCache() {
	d.mu.Lock()
	d.prefixes = make(map[string]string)
	d.mu.Unlock()
}

// Sources enumerates the town store plus one store per rig directory.
// Stores whose data dir or identity config is missing or unreadable are
// dropped, not errored. Duplicate identities keep the first occurrence.
func (d *Discovery) Sources() ([]Source, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("reading town root %s: %w", d.root, err)
	}

	var sources []Source
	seen := make(map[string]bool)

	// Town-level store first, with its fixed well-known identity.
	if dataDir, ok := d.dataDirFor(d.root); ok {
		sources = append(sources, Source{ID: TownSourceID, WorkingDir: d.root, DataDir: dataDir})
		seen[TownSourceID] = true
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		rigDir := filepath.Join(d.root, entry.Name())
		dataDir, ok := d.dataDirFor(rigDir)
		if !ok {
			continue
		}
		id := d.sourceIDFor(dataDir)
		if id == "" {
			logger.DebugCF("town", "rig dropped, no identity prefix", map[string]interface{}{
				"rig": entry.Name(),
			})
			continue
		}
		if seen[id] {
			logger.WarnCF("town", "rig dropped, duplicate source id", map[string]interface{}{
				"rig":       entry.Name(),
				"source_id": id,
			})
			continue
		}
		seen[id] = true
		sources = append(sources, Source{ID: id, WorkingDir: rigDir, DataDir: dataDir})
	}

	return sources, nil
}

// dataDirFor returns the redirect-resolved beads dir under base, if present.
func (d *Discovery) dataDirFor(base string) (string, bool) {
	dataDir := ResolveRedirect(filepath.Join(base, beadsDirName))
	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dataDir, true
}

// sourceIDFor derives the store identity from the prefix key of the beads
// config, consulting the cache first. Returns "" when no identity exists.
func (d *Discovery) sourceIDFor(dataDir string) string {
	d.mu.Lock()
	id, ok := d.prefixes[dataDir]
	d.mu.Unlock()
	if ok {
		return id
	}

	id = readPrefix(dataDir)
	if id != "" {
		d.mu.Lock()
		d.prefixes[dataDir] = id
		d.mu.Unlock()
	}
	return id
}

func readPrefix(dataDir string) string {
	data, err := os.ReadFile(filepath.Join(dataDir, configFileName))
	if err != nil {
		return ""
	}
	var cfg beadsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = cfg.IssuePrefix
	}
	return strings.TrimSuffix(strings.TrimSpace(prefix), "-")
}

// FindRoot walks upward from start and returns the topmost ancestor that
// contains a beads dir. Being inside a rig therefore still resolves to the
// town root. Returns an error when no ancestor qualifies.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	found := ""
	for {
		if info, err := os.Stat(filepath.Join(dir, beadsDirName)); err == nil && info.IsDir() {
			found = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if found == "" {
		return "", fmt.Errorf("no town workspace found above %s", start)
	}
	return found, nil
}
