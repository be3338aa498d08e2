// ABOUTME: Registry stores tools keyed by name with semantic-version ordering and a default-version rule.
// ABOUTME: ScanDir seeds/refreshes the registry from *.tool.json definition files, skipping unchanged files by hash.

package tools

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/mod/semver"
)

// NotFoundError indicates Get was called with an unknown name or a version
// older than the tool's declared minimum.
type NotFoundError struct {
	Name    string
	Version string
}

func (e *NotFoundError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("tool not found: %s", e.Name)
	}
	return fmt.Sprintf("tool not found: %s@%s", e.Name, e.Version)
}

type versionedTool struct {
	tool       Tool
	version    string
	status     Status
	minVersion string
}

// Registry is the process-wide, mutex-guarded owner of registered tools. It
// is instantiated once at startup and passed by reference through
// construction, never accessed as a package-level singleton.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string][]*versionedTool
	defaults  map[string]string // name -> version used when unspecified
	scanMu    sync.Mutex        // serializes ScanDir so no two scans run concurrently
	fileHash  map[string][32]byte
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string][]*versionedTool),
		defaults: make(map[string]string),
		fileHash: make(map[string][32]byte),
	}
}

// Register adds a tool under the given semantic version and status. If
// defaultForName is true, or no default is yet set for this name, it becomes
// the version Get returns when the caller omits one.
func (r *Registry) Register(tool Tool, version string, status Status, defaultForName bool) error {
	if tool == nil || tool.Name() == "" {
		return fmt.Errorf("tool must have a non-empty name")
	}
	v := normalizeSemver(version)
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid semantic version %q for tool %q", version, tool.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	minVersion := ""
	if mv, ok := tool.(interface{ MinVersion() string }); ok {
		minVersion = mv.MinVersion()
	}
	entry := &versionedTool{tool: tool, version: version, status: status, minVersion: minVersion}
	r.byName[name] = append(r.byName[name], entry)
	sort.Slice(r.byName[name], func(i, j int) bool {
		return semver.Compare(normalizeSemver(r.byName[name][i].version), normalizeSemver(r.byName[name][j].version)) > 0
	})

	if defaultForName || r.defaults[name] == "" {
		r.defaults[name] = version
	} else if status == Stable {
		// Prefer the most recent stable version as the default when the
		// caller didn't pin one explicitly, matching "most recent stable if
		// none set".
		if cur, ok := r.findLocked(name, r.defaults[name]); ok && cur.status != Stable {
			r.defaults[name] = version
		}
	}

	return nil
}

// Get returns the tool registered under name at the given version (the
// default version if version is empty). Using a deprecated tool succeeds
// but emits a one-line observability record rather than an error.
func (r *Registry) Get(name, version string) (Tool, Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if version == "" {
		version = r.defaults[name]
	}
	entry, ok := r.findLocked(name, version)
	if !ok {
		return nil, 0, &NotFoundError{Name: name, Version: version}
	}
	if entry.minVersion != "" && semver.Compare(normalizeSemver(entry.version), normalizeSemver(entry.minVersion)) < 0 {
		return nil, 0, &NotFoundError{Name: name, Version: version}
	}
	if entry.status == Deprecated {
		logDeprecatedUse(name, version)
	}
	return entry.tool, entry.status, nil
}

func (r *Registry) findLocked(name, version string) (*versionedTool, bool) {
	entries := r.byName[name]
	if len(entries) == 0 {
		return nil, false
	}
	if version == "" {
		return entries[0], true
	}
	target := normalizeSemver(version)
	for _, e := range entries {
		if normalizeSemver(e.version) == target {
			return e, true
		}
	}
	return nil, false
}

// List returns descriptors for every registered tool's default version,
// optionally filtered to those supporting at least one of the given
// modalities. Used to build the tool section of the system prompt.
func (r *Registry) List(modalityFilter ...Modality) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]Descriptor, 0, len(names))
	for _, name := range names {
		entry, ok := r.findLocked(name, r.defaults[name])
		if !ok {
			continue
		}
		if len(modalityFilter) > 0 && !supportsAny(entry.tool.SupportedModalities(), modalityFilter) {
			continue
		}
		descriptors = append(descriptors, Descriptor{
			Name:                entry.tool.Name(),
			Description:         entry.tool.Description(),
			Usage:               entry.tool.Usage(),
			Version:             entry.version,
			Status:              entry.status,
			SupportedModalities: entry.tool.SupportedModalities(),
		})
	}
	return descriptors
}

func supportsAny(have []Modality, want []Modality) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// MigrateArgs is a no-op passthrough by default; tools requiring
// version-specific argument translation register a migration via
// RegisterMigration.
type migrationFunc func(args map[string]any) map[string]any

var migrations = struct {
	mu sync.RWMutex
	m  map[string]migrationFunc
}{m: make(map[string]migrationFunc)}

// RegisterMigration registers a function that translates args from
// fromVersion to toVersion for the named tool.
func RegisterMigration(name, fromVersion, toVersion string, fn func(args map[string]any) map[string]any) {
	migrations.mu.Lock()
	defer migrations.mu.Unlock()
	migrations.m[migrationKey(name, fromVersion, toVersion)] = fn
}

// MigrateArgs applies a registered migration, or returns args unchanged if
// none is registered for the given name/version pair.
func (r *Registry) MigrateArgs(name, fromVersion, toVersion string, args map[string]any) map[string]any {
	migrations.mu.RLock()
	defer migrations.mu.RUnlock()
	if fn, ok := migrations.m[migrationKey(name, fromVersion, toVersion)]; ok {
		return fn(args)
	}
	return args
}

func migrationKey(name, from, to string) string {
	return name + "\x00" + from + "\x00" + to
}

// toolDefFile is the on-disk shape of a *.tool.json discovery seed.
type toolDefFile struct {
	Name    string   `json:"name"`
	Version string   `json:"version"`
	Status  string   `json:"status"`
	Default bool     `json:"default"`
}

// ScanDir reads *.tool.json files from dir, registering any new or changed
// definitions. Changed is detected by a SHA-256 hash of the file's bytes, so
// an unchanged file is never re-registered. Scans are serialized: only one
// ScanDir call is ever in flight at a time.
//
// ScanDir registers metadata only (name/version/status/default); it does not
// construct the Tool implementation itself, since *.tool.json cannot carry
// executable code. Callers pair ScanDir with a name-keyed factory map to
// instantiate the Go Tool value once metadata is known.
func (r *Registry) ScanDir(dir string, factory map[string]func() Tool) error {
	r.scanMu.Lock()
	defer r.scanMu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("scan tool dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tool.json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256.Sum256(raw)
		r.mu.Lock()
		prev, seen := r.fileHash[path]
		r.mu.Unlock()
		if seen && prev == hash {
			continue
		}

		var def toolDefFile
		if err := json.Unmarshal(raw, &def); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		makeTool, ok := factory[def.Name]
		if !ok {
			continue
		}
		if err := r.Register(makeTool(), def.Version, ParseStatus(def.Status), def.Default); err != nil {
			return fmt.Errorf("register %s from %s: %w", def.Name, path, err)
		}

		r.mu.Lock()
		r.fileHash[path] = hash
		r.mu.Unlock()
	}

	return nil
}

func normalizeSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func logDeprecatedUse(name, version string) {
	log.Printf("component=tools.registry action=get kind=deprecated_tool_used name=%s version=%s", name, version)
}
