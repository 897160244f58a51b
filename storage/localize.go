package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Localize gives ffmpeg a real file for key. Backends with local paths
// answer directly; anything else is copied to a temp file that release
// removes. release is never nil and may be called more than once.
func Localize(ctx context.Context, s Storage, key string) (path string, release func(), err error) {
	release = func() {}
	if lp, ok := s.(LocalPather); ok {
		return lp.LocalPath(key), release, nil
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		return "", release, err
	}
	defer rc.Close() //nolint:errcheck

	f, err := os.CreateTemp("", "dictation-*"+filepath.Ext(key))
	if err != nil {
		return "", release, fmt.Errorf("storage: localize %s: %w", key, err)
	}
	tmp := f.Name()
	_, err = io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return "", release, fmt.Errorf("storage: localize %s: %w", key, err)
	}
	return tmp, func() { _ = os.Remove(tmp) }, nil
}
