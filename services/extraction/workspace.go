package extraction

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const leasePrefix = "extract-"

// Workspace owns the on-disk scratch area where component sources are
// materialized during extraction. Every extraction gets its own lease
// directory and removes it when done; Sweep clears leftovers from earlier
// crashed runs.
type Workspace struct {
	root string
	log  zerolog.Logger
}

func NewWorkspace(root string, log zerolog.Logger) (*Workspace, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "context-engine")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	return &Workspace{
		root: root,
		log:  log.With().Str("component", "workspace").Logger(),
	}, nil
}

func (w *Workspace) Root() string { return w.root }

// Materialize writes the given files into a fresh lease directory. Empty
// names and empty contents are skipped. Relative paths inside the file set
// are preserved; anything trying to escape the lease is flattened to its
// base name.
func (w *Workspace) Materialize(files map[string]string) (*Lease, error) {
	dir, err := os.MkdirTemp(w.root, leasePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create lease dir: %w", err)
	}
	lease := &Lease{dir: dir, log: w.log}

	for name, content := range files {
		if name == "" || content == "" {
			continue
		}
		target := lease.Path(name)
		if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
			lease.Release()
			return nil, fmt.Errorf("failed to create lease subdir: %w", err)
		}
		if err := os.WriteFile(target, []byte(content), 0o600); err != nil {
			lease.Release()
			return nil, fmt.Errorf("failed to materialize %s: %w", name, err)
		}
	}
	return lease, nil
}

// Sweep removes every lease directory left behind by a previous process.
func (w *Workspace) Sweep() error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("failed to read workspace root: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), leasePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.root, entry.Name())); err != nil {
			w.log.Warn().Err(err).Str("dir", entry.Name()).Msg("failed to sweep stale lease")
			continue
		}
		removed++
	}
	if removed > 0 {
		w.log.Info().Int("removed", removed).Msg("swept stale extraction leases")
	}
	return nil
}

// Lease is one extraction's private directory.
type Lease struct {
	dir string
	log zerolog.Logger
}

func (l *Lease) Dir() string { return l.dir }

// Path maps a logical file name into the lease directory.
func (l *Lease) Path(name string) string {
	cleaned := filepath.Clean(strings.TrimPrefix(name, "/"))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		cleaned = filepath.Base(name)
	}
	return filepath.Join(l.dir, cleaned)
}

func (l *Lease) Release() {
	if err := os.RemoveAll(l.dir); err != nil {
		l.log.Warn().Err(err).Str("dir", l.dir).Msg("failed to release lease")
	}
}
