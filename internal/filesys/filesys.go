// Package filesys abstracts the few file system calls ipfreq makes so that
// the config loader, the domain list loader and the report writer can be
// tested against fakes.
package filesys

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lc/ipfreq/internal/log"
)

// ReadFS is the read side used by the config and domain list loaders.
// Both stream a single file. A missing file must surface as an error
// satisfying os.IsNotExist; the config loader falls back to its defaults
// on it.
type ReadFS interface {
	Open(string) (*os.File, error)
}

// FileOps is what the report writer needs for AtomicWrite. Open is used to
// fsync the parent directory after the rename.
type FileOps interface {
	Open(string) (*os.File, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(string, string) (*os.File, error)
	Rename(string, string) error
	Remove(string) error
	Chmod(string, os.FileMode) error
}

// OS returns a file system implementation that delegates to the standard library.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements both ReadFS and FileOps against the local disk.
type OsFS struct{}

func (OsFS) MkdirAll(p string, m os.FileMode) error       { return os.MkdirAll(p, m) }
func (OsFS) Open(p string) (*os.File, error)              { return os.Open(p) }
func (OsFS) CreateTemp(dir, pat string) (*os.File, error) { return os.CreateTemp(dir, pat) }
func (OsFS) Rename(old, newName string) error             { return os.Rename(old, newName) }
func (OsFS) Remove(p string) error                        { return os.Remove(p) }
func (OsFS) Chmod(p string, m os.FileMode) error          { return os.Chmod(p, m) }

var (
	_ ReadFS  = OsFS{}
	_ FileOps = OsFS{}
)

// AtomicWrite replaces dst with data. A reader of dst sees either the old
// contents or the new ones, never a partial report:
//
//  1. temp file in the same dir
//  2. fsync(temp) + close
//  3. chmod(temp, perm)
//  4. rename(temp, dst)
//  5. fsync(dir)
func AtomicWrite(fsys FileOps, dst string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	tmp, err := fsys.CreateTemp(dir, ".ipfreq-*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = fsys.Chmod(name, perm)
	}
	if err == nil {
		err = fsys.Rename(name, dst)
	}
	if err != nil {
		discard(fsys, name)
		return err
	}

	syncDir(fsys, dir)
	return nil
}

func discard(fsys FileOps, name string) {
	if err := fsys.Remove(name); err != nil {
		log.Warnf("filesys: failed to remove temp file %s: %v", name, err)
	}
}

func syncDir(fsys FileOps, dir string) {
	d, err := fsys.Open(dir)
	if err != nil {
		return
	}
	if err := d.Sync(); err != nil {
		log.Debugf("filesys: failed to sync directory %s: %v", dir, err)
	}
	if err := d.Close(); err != nil {
		log.Debugf("filesys: failed to close directory %s: %v", dir, err)
	}
}
