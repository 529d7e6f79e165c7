package model

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/disaster-prediction/internal/domain"
	"github.com/couchcryptid/disaster-prediction/internal/features"
	"github.com/couchcryptid/disaster-prediction/internal/forest"
)

const (
	bundlesDir    = "bundles"
	currentLink   = "current"
	partialSuffix = ".partial"

	// DefaultRetain is how many bundles are kept on disk after a save.
	DefaultRetain = 3
)

// DirStore persists bundles under a directory:
//
//	<root>/bundles/<version>/{*.json, manifest.json}
//	<root>/current -> bundles/<version>
//
// A bundle is written under a temporary name and renamed into place before
// current is swapped, so current always names a complete bundle.
type DirStore struct {
	root   string
	retain int
	logger *slog.Logger
}

// NewDirStore creates a store rooted at root. retain < 1 selects DefaultRetain.
func NewDirStore(root string, retain int, logger *slog.Logger) *DirStore {
	if retain < 1 {
		retain = DefaultRetain
	}
	return &DirStore{root: root, retain: retain, logger: logger}
}

// Root returns the store directory.
func (s *DirStore) Root() string { return s.root }

// Save writes every artifact plus a checksummed manifest, then makes the
// bundle current. It returns the bundle directory.
func (s *DirStore) Save(ctx context.Context, b *Bundle) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}
	version := b.Version()
	if version == "" || strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") {
		return "", &domain.PersistenceError{Op: "save", Err: fmt.Errorf("invalid bundle version %q", version)}
	}

	parent := filepath.Join(s.root, bundlesDir)
	final := filepath.Join(parent, version)
	partial := final + partialSuffix

	if _, err := os.Stat(final); err == nil {
		return "", &domain.PersistenceError{Op: "save", Err: fmt.Errorf("bundle %s already exists", version)}
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := os.RemoveAll(partial); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := os.Mkdir(partial, 0o755); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}

	if err := s.writeBundle(partial, b); err != nil {
		_ = os.RemoveAll(partial)
		return "", err
	}
	if err := os.Rename(partial, final); err != nil {
		_ = os.RemoveAll(partial)
		return "", &domain.PersistenceError{Op: "save", Err: fmt.Errorf("publish bundle: %w", err)}
	}
	if err := syncDir(parent); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: err}
	}

	if err := s.swapCurrent(version); err != nil {
		return "", &domain.PersistenceError{Op: "save", Err: fmt.Errorf("activate bundle: %w", err)}
	}

	s.logger.Info("model bundle saved", "version", version, "path", final)

	if err := s.prune(version); err != nil {
		s.logger.Warn("prune old bundles failed", "error", err)
	}
	return final, nil
}

func (s *DirStore) writeBundle(dir string, b *Bundle) error {
	values := b.artifacts()
	checksums := make(map[string]string, len(values))
	for _, name := range Artifacts {
		data, err := json.Marshal(values[name])
		if err != nil {
			return &domain.PersistenceError{Op: "save", Artifact: name, Err: err}
		}
		if err := writeFileSync(filepath.Join(dir, name), data); err != nil {
			return &domain.PersistenceError{Op: "save", Artifact: name, Err: err}
		}
		sum := sha256.Sum256(data)
		checksums[name] = hex.EncodeToString(sum[:])
	}

	manifest := b.Manifest()
	manifest.Checksums = checksums
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return &domain.PersistenceError{Op: "save", Artifact: ManifestFile, Err: err}
	}
	if err := writeFileSync(filepath.Join(dir, ManifestFile), append(data, '\n')); err != nil {
		return &domain.PersistenceError{Op: "save", Artifact: ManifestFile, Err: err}
	}
	return syncDir(dir)
}

// swapCurrent atomically repoints the current link at version.
func (s *DirStore) swapCurrent(version string) error {
	tmp := filepath.Join(s.root, currentLink+".tmp")
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.Symlink(filepath.Join(bundlesDir, version), tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(s.root, currentLink)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(s.root)
}

// Current returns the version the current link points at.
func (s *DirStore) Current() (string, error) {
	target, err := os.Readlink(filepath.Join(s.root, currentLink))
	if err != nil {
		return "", &domain.PersistenceError{Op: "load", Err: fmt.Errorf("resolve current bundle: %w", err)}
	}
	return filepath.Base(target), nil
}

// Load reads the current bundle, verifying every artifact checksum.
func (s *DirStore) Load(ctx context.Context) (*Bundle, error) {
	version, err := s.Current()
	if err != nil {
		return nil, err
	}
	return s.LoadVersion(ctx, version)
}

// LoadVersion reads a specific bundle.
func (s *DirStore) LoadVersion(ctx context.Context, version string) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}
	dir := filepath.Join(s.root, bundlesDir, version)

	manifest, err := readManifest(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range Artifacts {
		if manifest.Checksums[name] == "" {
			return nil, &domain.PersistenceError{Op: "load", Artifact: name, Err: errors.New("no checksum in manifest")}
		}
	}

	var (
		classifier forest.Classifier
		deaths     forest.Regressor
		infra      forest.Regressor
		scaler     features.StandardScaler
		encoder    features.LabelEncoder
	)
	targets := map[string]any{
		ArtifactClassifier: &classifier,
		ArtifactDeaths:     &deaths,
		ArtifactInfraLoss:  &infra,
		ArtifactScaler:     &scaler,
		ArtifactEncoder:    &encoder,
	}
	for _, name := range Artifacts {
		if err := readArtifact(dir, name, manifest.Checksums[name], targets[name]); err != nil {
			return nil, err
		}
	}

	b, err := NewBundle(&classifier, &deaths, &infra, &scaler, &encoder, manifest)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("inconsistent bundle %s: %w", version, err)}
	}
	s.logger.Info("model bundle loaded", "version", version, "trained_at", manifest.TrainedAt, "classes", b.Classes())
	return b, nil
}

func readManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return m, &domain.PersistenceError{Op: "load", Artifact: ManifestFile, Err: err}
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, &domain.PersistenceError{Op: "load", Artifact: ManifestFile, Err: err}
	}
	return m, nil
}

func readArtifact(dir, name, checksum string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return &domain.PersistenceError{Op: "load", Artifact: name, Err: err}
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != checksum {
		return &domain.PersistenceError{Op: "load", Artifact: name, Err: fmt.Errorf("checksum mismatch: manifest %s, file %s", checksum, got)}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &domain.PersistenceError{Op: "load", Artifact: name, Err: err}
	}
	return nil
}

// Versions lists complete bundles, newest first.
func (s *DirStore) Versions() ([]Manifest, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, bundlesDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var manifests []Manifest
	for _, e := range entries {
		if !e.IsDir() || strings.HasSuffix(e.Name(), partialSuffix) {
			continue
		}
		m, err := readManifest(filepath.Join(s.root, bundlesDir, e.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable bundle", "version", e.Name(), "error", err)
			continue
		}
		m.Version = e.Name()
		manifests = append(manifests, m)
	}
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].TrainedAt.After(manifests[j].TrainedAt)
	})
	return manifests, nil
}

// prune removes all but the newest retain bundles, never the current one.
func (s *DirStore) prune(current string) error {
	manifests, err := s.Versions()
	if err != nil {
		return err
	}
	kept := 0
	var errs []error
	for _, m := range manifests {
		if m.Version == current || kept < s.retain-1 {
			if m.Version != current {
				kept++
			}
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, bundlesDir, m.Version)); err != nil {
			errs = append(errs, err)
			continue
		}
		s.logger.Info("old model bundle pruned", "version", m.Version)
	}
	return errors.Join(errs...)
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}
