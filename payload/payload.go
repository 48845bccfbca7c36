// Package payload creates the synthetic zip archives a test run uploads.
package payload

import (
	"archive/zip"
	"crypto/rand"
	"fmt"
	"io"
	mathrand "math/rand"
	"os"
	"path"

	uuid "github.com/satori/go.uuid"
	"github.com/spf13/afero"
)

// Artifact is one generated test payload, owned by the worker that uploads
// it. Size is the uncompressed byte count, not the archive size.
type Artifact struct {
	LocalPath  string
	RemoteName string
	Size       int64
}

// Generator writes artifacts into a per-run scratch directory.
type Generator struct {
	fs  afero.Fs
	dir string
}

// NewGenerator creates a scratch directory under baseDir. A failure here is
// fatal for the whole run, not for a single artifact.
func NewGenerator(fs afero.Fs, baseDir string) (*Generator, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	dir := path.Join(baseDir, "sftpblast-"+uuid.NewV4().String())
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %v", err)
	}
	return &Generator{fs: fs, dir: dir}, nil
}

// Dir returns the scratch directory path.
func (g *Generator) Dir() string {
	return g.dir
}

// Generate writes test_<index>.zip wrapping exactly size random bytes.
func (g *Generator) Generate(index int, size int64) (Artifact, error) {
	name := fmt.Sprintf("test_%d.zip", index)
	localPath := path.Join(g.dir, name)

	f, err := g.fs.Create(localPath)
	if err != nil {
		return Artifact{}, fmt.Errorf("creating %s: %v", localPath, err)
	}

	zw := zip.NewWriter(f)
	entry, err := zw.Create("data.bin")
	if err == nil {
		_, err = io.CopyN(entry, rand.Reader, size)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		g.fs.Remove(localPath)
		return Artifact{}, fmt.Errorf("writing %s: %v", localPath, err)
	}

	return Artifact{LocalPath: localPath, RemoteName: name, Size: size}, nil
}

// Remove reclaims one artifact's local storage. Safe to call twice.
func (g *Generator) Remove(a Artifact) {
	if a.LocalPath == "" {
		return
	}
	g.fs.Remove(a.LocalPath)
}

// Cleanup removes the scratch directory and anything left in it.
func (g *Generator) Cleanup() error {
	return g.fs.RemoveAll(g.dir)
}

// RandomSize draws a size uniformly from [min, max]. Each artifact gets an
// independent draw.
func RandomSize(min, max int64) int64 {
	if max <= min {
		return min
	}
	return min + mathrand.Int63n(max-min+1)
}
