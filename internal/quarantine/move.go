//go:build unix

package quarantine

import (
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/xanadossd/avscan-core/internal/cerrors"
)

// moveFile relocates src to dst, preferring an atomic rename within the
// same filesystem; on EXDEV (crossing a filesystem boundary, the common
// case when the quarantine directory lives on a different volume than
// the scanned path) it falls back to copy+fsync+unlink, mirroring the
// teacher's deduper EXDEV fallback (internal/deduper/deduper.go).
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return cerrors.Wrap(cerrors.KindIO, "rename "+src+" to "+dst, err)
	}
	return copyThenUnlink(src, dst)
}

func copyThenUnlink(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "open source for cross-device move", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "stat source for cross-device move", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return cerrors.Wrap(cerrors.KindIO, "create destination for cross-device move", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return cerrors.Wrap(cerrors.KindIO, "copy during cross-device move", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return cerrors.Wrap(cerrors.KindIO, "fsync during cross-device move", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return cerrors.Wrap(cerrors.KindIO, "close destination during cross-device move", err)
	}
	if err := os.Remove(src); err != nil {
		return cerrors.Wrap(cerrors.KindIO, "unlink source after cross-device move", err)
	}
	return nil
}
