package deploy

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Bundle archive layout. The library directory is required; the two
// internal subtrees are never staged as assets.
const (
	BundleInternalDir = "bundle-inf"
	BundleMetaDir     = "meta-inf"
	bundleLibPrefix   = BundleInternalDir + "/lib/"

	assetsDirName = "assets"
	libDirName    = "lib"
)

var (
	// ErrArchiveUnreadable covers a missing or corrupt bundle archive.
	ErrArchiveUnreadable = errors.New("bundle archive unreadable")
	// ErrMissingLibDir is returned when the archive has no bundle-inf/lib.
	ErrMissingLibDir = errors.New("bundle archive missing " + bundleLibPrefix)
)

// Descriptor records the outcome of a single deployment attempt. It is
// immutable once returned; callers must check Succeeded before building
// anything on top of the staging tree.
type Descriptor struct {
	ID           string
	ArchivePath  string
	StagingRoot  string
	AssetsDir    string
	LibDir       string
	ExtraLibDirs []string
	Succeeded    bool
	Err          error
}

// LoadContext is the isolated library search path handed to the hosted
// application resolver.
type LoadContext struct {
	AssetsDir string
	LibDir    string
}

func (d *Descriptor) LoadContext() LoadContext {
	return LoadContext{AssetsDir: d.AssetsDir, LibDir: d.LibDir}
}

// Deploy stages the bundle archive into stagingRoot. The staging tree is
// wiped first, so redeploying over a previous attempt behaves identically
// to deploying into a fresh directory. Deployment runs once, before the
// service accepts traffic; it is not safe for concurrent use.
func Deploy(archivePath, stagingRoot string, extraLibDirs []string) *Descriptor {
	desc := &Descriptor{
		ID:           uuid.New().String(),
		ArchivePath:  archivePath,
		StagingRoot:  stagingRoot,
		AssetsDir:    filepath.Join(stagingRoot, assetsDirName),
		LibDir:       filepath.Join(stagingRoot, libDirName),
		ExtraLibDirs: extraLibDirs,
	}

	log.Info().
		Str("deployment_id", desc.ID).
		Str("archive", archivePath).
		Str("staging_root", stagingRoot).
		Msg("Deploying bundle")

	if err := resetStaging(desc); err != nil {
		return desc.fail(err)
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return desc.fail(fmt.Errorf("%w: %v", ErrArchiveUnreadable, err))
	}
	defer reader.Close()

	if err := stageLibraries(desc, &reader.Reader); err != nil {
		return desc.fail(err)
	}
	if err := mergeExternalLibraries(desc); err != nil {
		return desc.fail(err)
	}
	if err := stageAssets(desc, &reader.Reader); err != nil {
		return desc.fail(err)
	}

	desc.Succeeded = true
	log.Info().Str("deployment_id", desc.ID).Msg("Bundle deployed")
	return desc
}

func (d *Descriptor) fail(err error) *Descriptor {
	d.Err = err
	log.Error().Err(err).Str("deployment_id", d.ID).Msg("Bundle deployment failed")
	return d
}

func resetStaging(desc *Descriptor) error {
	if err := os.RemoveAll(desc.StagingRoot); err != nil {
		return fmt.Errorf("clearing staging root: %w", err)
	}
	if err := os.MkdirAll(desc.AssetsDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(desc.LibDir, 0o755)
}

// stageLibraries copies every file under bundle-inf/lib into the staging
// library directory, flattened to base names, preserving modification times.
func stageLibraries(desc *Descriptor, reader *zip.Reader) error {
	found := false
	for _, f := range reader.File {
		if !strings.HasPrefix(f.Name, bundleLibPrefix) {
			continue
		}
		found = true
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		dst := filepath.Join(desc.LibDir, path.Base(f.Name))
		if err := copyZipEntry(f, dst); err != nil {
			return fmt.Errorf("staging library %s: %w", f.Name, err)
		}
	}
	if !found {
		return ErrMissingLibDir
	}
	return nil
}

// mergeExternalLibraries appends every file from the configured external
// library directories, in traversal order. Collisions with already staged
// libraries are resolved last-wins.
func mergeExternalLibraries(desc *Descriptor) error {
	for _, dir := range desc.ExtraLibDirs {
		err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			dst := filepath.Join(desc.LibDir, entry.Name())
			if err := copyFile(p, dst); err != nil {
				return err
			}
			return os.Chtimes(dst, info.ModTime(), info.ModTime())
		})
		if err != nil {
			return fmt.Errorf("merging external libraries from %s: %w", dir, err)
		}
	}
	return nil
}

// stageAssets copies all remaining archive contents into the assets
// directory, preserving relative paths. Any single copy failure aborts
// the walk; a partial asset tree is never reported as usable.
func stageAssets(desc *Descriptor, reader *zip.Reader) error {
	type dirTime struct {
		path string
		f    *zip.File
	}
	var dirs []dirTime

	for _, f := range reader.File {
		if skipAsset(f.Name) {
			continue
		}
		rel, err := sanitizeEntryName(f.Name)
		if err != nil {
			return err
		}
		dst := filepath.Join(desc.AssetsDir, rel)
		if strings.HasSuffix(f.Name, "/") {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("staging asset dir %s: %w", f.Name, err)
			}
			dirs = append(dirs, dirTime{path: dst, f: f})
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("staging asset %s: %w", f.Name, err)
		}
		if err := copyZipEntry(f, dst); err != nil {
			return fmt.Errorf("staging asset %s: %w", f.Name, err)
		}
	}

	// Directory times are restored last; copying files into a directory
	// would bump them otherwise.
	for _, d := range dirs {
		if err := os.Chtimes(d.path, d.f.Modified, d.f.Modified); err != nil {
			return err
		}
	}
	return nil
}

func skipAsset(name string) bool {
	return strings.HasPrefix(name, BundleInternalDir+"/") ||
		strings.HasPrefix(name, BundleMetaDir+"/") ||
		name == BundleInternalDir || name == BundleMetaDir
}

func sanitizeEntryName(name string) (string, error) {
	rel := path.Clean(name)
	if rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("archive entry %q escapes the staging root", name)
	}
	return filepath.FromSlash(rel), nil
}

func copyZipEntry(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, f.Modified, f.Modified)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
