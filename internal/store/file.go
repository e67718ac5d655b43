package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/mejiasimon/chatbotTravelAgency/internal/catalog"
)

// FileCatalog persists the catalog as a JSON array on disk. A missing file
// is created from the seed on first use.
type FileCatalog struct {
	mu   sync.Mutex
	path string
	seed []catalog.Package
}

func NewFileCatalog(path string, seed []catalog.Package) *FileCatalog {
	return &FileCatalog{path: path, seed: seed}
}

func (f *FileCatalog) List(ctx context.Context) ([]catalog.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked()
}

func (f *FileCatalog) Get(ctx context.Context, id int) (catalog.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkgs, err := f.readLocked()
	if err != nil {
		return catalog.Package{}, err
	}
	for _, p := range pkgs {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Package{}, catalog.ErrNotFound
}

func (f *FileCatalog) Create(ctx context.Context, p catalog.Package) (catalog.Package, error) {
	if err := p.Validate(); err != nil {
		return catalog.Package{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	pkgs, err := f.readLocked()
	if err != nil {
		return catalog.Package{}, err
	}
	p.ID = catalog.NextID(pkgs)
	if err := f.writeLocked(append(pkgs, p)); err != nil {
		return catalog.Package{}, err
	}
	return p, nil
}

func (f *FileCatalog) Update(ctx context.Context, id int, patch catalog.Patch) (catalog.Package, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkgs, err := f.readLocked()
	if err != nil {
		return catalog.Package{}, err
	}
	for i, p := range pkgs {
		if p.ID != id {
			continue
		}
		next := patch.Apply(p)
		if err := next.Validate(); err != nil {
			return catalog.Package{}, err
		}
		pkgs[i] = next
		if err := f.writeLocked(pkgs); err != nil {
			return catalog.Package{}, err
		}
		return next, nil
	}
	return catalog.Package{}, catalog.ErrNotFound
}

func (f *FileCatalog) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pkgs, err := f.readLocked()
	if err != nil {
		return err
	}
	for i, p := range pkgs {
		if p.ID == id {
			return f.writeLocked(append(pkgs[:i], pkgs[i+1:]...))
		}
	}
	return catalog.ErrNotFound
}

func (f *FileCatalog) readLocked() ([]catalog.Package, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			seed := make([]catalog.Package, 0, len(f.seed))
			for _, p := range f.seed {
				seed = append(seed, p.Clone())
			}
			if err := f.writeLocked(seed); err != nil {
				return nil, err
			}
			return seed, nil
		}
		return nil, err
	}
	var pkgs []catalog.Package
	if err := json.Unmarshal(b, &pkgs); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", f.path, err)
	}
	return pkgs, nil
}

func (f *FileCatalog) writeLocked(pkgs []catalog.Package) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	if pkgs == nil {
		pkgs = []catalog.Package{}
	}
	b, err := json.MarshalIndent(pkgs, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
