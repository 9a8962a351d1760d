package estimator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sw965/omw/encoding/gobx"
)

// SaveFile は Blob を同じディレクトリの一時ファイルに書き込んでから path に rename します。
// 途中で失敗しても path の既存ファイルは壊れません。
func SaveFile(blob Blob, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := gobx.Save(blob, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save blob: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save blob: %w", err)
	}
	return nil
}

// LoadFile reads a blob written by SaveFile. A missing file yields an error
// satisfying errors.Is(err, fs.ErrNotExist).
func LoadFile(path string) (Blob, error) {
	if _, err := os.Stat(path); err != nil {
		return Blob{}, err
	}
	blob, err := gobx.Load[Blob](path)
	if err != nil {
		return Blob{}, fmt.Errorf("load blob %s: %w", path, err)
	}
	if blob.Version != BlobVersion {
		return Blob{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, blob.Version)
	}
	return blob, nil
}
