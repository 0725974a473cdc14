package models

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Entry describes a bundle that can be installed into a Store
type Entry struct {
	Name        string
	Language    string
	Size        string
	URL         string // zip archive; empty for bundles generated locally
	Description string
}

// Builtin reports whether the bundle is generated rather than downloaded
func (e Entry) Builtin() bool { return e.URL == "" }

// Catalog lists the known bundles
var Catalog = []Entry{
	{
		Name:        StubBundleName,
		Language:    "none",
		Size:        "1K",
		Description: "Energy driven stub transducer that marks speech and pauses, for wiring tests",
	},
}

// DefaultModelName is used when no default has been set
const DefaultModelName = StubBundleName

const defaultModelFile = ".default_model"

// Store is a directory of model bundles, one sub-directory per bundle
type Store struct {
	Dir string
}

// DefaultStore returns the store under ./models
func DefaultStore() (*Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return &Store{Dir: filepath.Join(cwd, "models")}, nil
}

// NewStore returns a store rooted at dir, or ./models when dir is empty
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return DefaultStore()
	}
	return &Store{Dir: dir}, nil
}

// Find looks a bundle up in the catalog
func Find(name string) *Entry {
	for _, e := range Catalog {
		if e.Name == name {
			return &e
		}
	}
	return nil
}

// DefaultModel returns the name stored in .default_model, or DefaultModelName
func (s *Store) DefaultModel() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, defaultModelFile))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultModelName, nil
		}
		return DefaultModelName, err
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return DefaultModelName, nil
	}
	return name, nil
}

// SetDefaultModel records name as the default. The bundle must be installed
// or listed in the catalog.
func (s *Store) SetDefaultModel(name string) error {
	installed, err := s.IsInstalled(name)
	if err != nil {
		return err
	}
	if !installed && Find(name) == nil {
		return fmt.Errorf("unknown model: %s", name)
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, defaultModelFile), []byte(name), 0644); err != nil {
		return fmt.Errorf("failed to save default model: %w", err)
	}
	return nil
}

// IsInstalled reports whether name has a bundle manifest in the store
func (s *Store) IsInstalled(name string) (bool, error) {
	info, err := os.Stat(filepath.Join(s.Dir, name, BundleFile))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

// Path returns the directory of an installed bundle
func (s *Store) Path(name string) (string, error) {
	installed, err := s.IsInstalled(name)
	if err != nil {
		return "", err
	}
	if !installed {
		return "", fmt.Errorf("model not found: %s", name)
	}
	return filepath.Join(s.Dir, name), nil
}

// List returns the installed bundle names in order
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ok, _ := s.IsInstalled(entry.Name()); ok {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Install makes a catalog bundle available, generating or downloading it
func (s *Store) Install(name string, progress func(downloaded, total int64)) error {
	entry := Find(name)
	if entry == nil {
		return fmt.Errorf("unknown model: %s", name)
	}
	if entry.Builtin() {
		return s.InstallStub(name)
	}
	return s.Download(name, entry.URL, progress)
}

// Download fetches a zip archive containing the bundle directory name/ and
// extracts it into the store.
func (s *Store) Download(name, url string, progress func(downloaded, total int64)) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	zipPath := filepath.Join(s.Dir, name+".zip")
	defer os.Remove(zipPath)

	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	total := resp.ContentLength
	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return fmt.Errorf("failed to write file: %w", writeErr)
			}
			downloaded += int64(n)
			if progress != nil {
				progress(downloaded, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return fmt.Errorf("download error: %w", err)
		}
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := extractZip(zipPath, s.Dir); err != nil {
		return fmt.Errorf("failed to extract model: %w", err)
	}
	if _, err := s.LoadBundle(name); err != nil {
		return fmt.Errorf("downloaded archive is not a valid bundle: %w", err)
	}
	return nil
}

// extractZip extracts a zip file into destDir, refusing entries that would
// escape it.
func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, f := range r.File {
		fpath := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(fpath, root) {
			return fmt.Errorf("illegal file path: %s", fpath)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, 0755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fpath), 0755); err != nil {
			return err
		}
		if err := extractFile(f, fpath); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, fpath string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode()|0600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
