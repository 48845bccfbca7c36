package payload

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
)

func TestGenerateWritesValidArchive(t *testing.T) {
	assert := assert.New(t)
	fs := afero.NewMemMapFs()

	gen, err := NewGenerator(fs, "/tmp")
	assert.NoError(err, "Should create the scratch directory")

	artifact, err := gen.Generate(0, 1000)
	assert.NoError(err, "Should generate an artifact")
	assert.Equal("test_0.zip", artifact.RemoteName)
	assert.Equal(int64(1000), artifact.Size, "Size should be the uncompressed byte count")

	raw, err := afero.ReadFile(fs, artifact.LocalPath)
	assert.NoError(err, "The archive should exist on the scratch fs")

	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	assert.NoError(err, "The archive should be a readable zip")
	assert.Len(zr.File, 1)
	assert.Equal("data.bin", zr.File[0].Name)
	assert.Equal(uint64(1000), zr.File[0].UncompressedSize64, "The payload should be exactly the requested size")
}

func TestGenerateNamesAreUniquePerIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	gen, err := NewGenerator(fs, "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := gen.Generate(0, 100)
	b, _ := gen.Generate(1, 100)
	if a.LocalPath == b.LocalPath || a.RemoteName == b.RemoteName {
		t.Error("artifacts with distinct indexes should not collide")
	}
}

func TestRemoveAndCleanup(t *testing.T) {
	assert := assert.New(t)
	fs := afero.NewMemMapFs()
	gen, err := NewGenerator(fs, "/tmp")
	assert.NoError(err)

	artifact, err := gen.Generate(3, 64)
	assert.NoError(err)

	gen.Remove(artifact)
	exists, _ := afero.Exists(fs, artifact.LocalPath)
	assert.False(exists, "Remove should delete the local file")

	// removing twice must not panic or recreate anything
	gen.Remove(artifact)

	assert.NoError(gen.Cleanup(), "Cleanup should remove the scratch directory")
	exists, _ = afero.DirExists(fs, gen.Dir())
	assert.False(exists, "No scratch directory should remain after cleanup")
}

func TestGenerateFailsWithoutScratchSpace(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	_, err := NewGenerator(fs, "/tmp")
	if err == nil {
		t.Error("an unwritable scratch location should fail generator setup")
	}
}

func TestRandomSizeBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		size := RandomSize(6000, 9000)
		if size < 6000 || size > 9000 {
			t.Fatalf("size %d outside [6000, 9000]", size)
		}
	}
	if RandomSize(1000, 1000) != 1000 {
		t.Error("equal bounds should pin the size")
	}
}
