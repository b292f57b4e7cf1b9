package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/spf13/afero"
)

const copyChunkSize = 256 * 1024 // 256KB per chunk

// writeAtomic writes body to a temp file next to dst, then renames it over
// dst.
func writeAtomic(fsys afero.Fs, dst string, body io.Reader) error {
	dir := path.Dir(dst)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir dst parent: %w", err)
	}
	tmp, err := afero.TempFile(fsys, dir, ".pendingfs-*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpName := tmp.Name()

	if body != nil {
		if _, err := io.Copy(tmp, body); err != nil {
			tmp.Close()
			fsys.Remove(tmpName)
			return fmt.Errorf("write tmp: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := fsys.Rename(tmpName, dst); err != nil {
		fsys.Remove(tmpName)
		return fmt.Errorf("rename tmp to dst: %w", err)
	}
	return nil
}

// copyFile copies src to dst through a temp file, checking ctx between
// chunks and preserving the source mtime.
func copyFile(ctx context.Context, fsys afero.Fs, src, dst string) error {
	srcInfo, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("stat src: %w", err)
	}
	dir := path.Dir(dst)
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir dst parent: %w", err)
	}

	srcFile, err := fsys.Open(src)
	if err != nil {
		return fmt.Errorf("open src: %w", err)
	}
	defer srcFile.Close()

	tmpFile, err := afero.TempFile(fsys, dir, ".pendingfs-*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmpPath := tmpFile.Name()

	buf := make([]byte, copyChunkSize)
	var copyErr error
	for copyErr == nil {
		if err := ctx.Err(); err != nil {
			copyErr = err
			break
		}
		n, readErr := srcFile.Read(buf)
		if n > 0 {
			if _, writeErr := tmpFile.Write(buf[:n]); writeErr != nil {
				copyErr = fmt.Errorf("write tmp: %w", writeErr)
				break
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			copyErr = fmt.Errorf("read src: %w", readErr)
		}
	}
	tmpFile.Close()

	if copyErr != nil {
		fsys.Remove(tmpPath)
		return copyErr
	}

	if err := fsys.Chtimes(tmpPath, time.Now(), srcInfo.ModTime()); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("chtimes tmp: %w", err)
	}
	if err := fsys.Rename(tmpPath, dst); err != nil {
		fsys.Remove(tmpPath)
		return fmt.Errorf("rename tmp to dst: %w", err)
	}
	return nil
}

// copyTree copies the directory src and its contents to dst.
func copyTree(ctx context.Context, fsys afero.Fs, src, dst string) error {
	return afero.Walk(fsys, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := p[len(src):]
		target := dst + rel
		if info.IsDir() {
			return fsys.MkdirAll(target, 0755)
		}
		return copyFile(ctx, fsys, p, target)
	})
}

// softDelete moves target into trashRoot/YYYY-MM-DD/, appending _N before
// the extension on name collisions. Returns the final trash path.
func softDelete(fsys afero.Fs, target, trashRoot string) (string, error) {
	dateDir := path.Join(trashRoot, nowFunc().Format("2006-01-02"))
	if err := fsys.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir trash: %w", err)
	}

	base := path.Base(target)
	trashPath := path.Join(dateDir, base)

	if ok, _ := afero.Exists(fsys, trashPath); ok {
		ext := path.Ext(base)
		name := base[:len(base)-len(ext)]
		for i := 1; ; i++ {
			trashPath = path.Join(dateDir, fmt.Sprintf("%s_%d%s", name, i, ext))
			if ok, _ := afero.Exists(fsys, trashPath); !ok {
				break
			}
		}
	}

	if err := fsys.Rename(target, trashPath); err != nil {
		return "", fmt.Errorf("move to trash: %w", err)
	}
	return trashPath, nil
}
