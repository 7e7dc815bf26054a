package store

import (
	"os"
	"path/filepath"
	"strings"

	natomic "github.com/natefinch/atomic"

	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// atomicWrite writes text to path via write-to-temp-in-same-directory
// plus a rename, so a crash mid-write never leaves a torn note file
// (spec §4.D/§5).
func atomicWrite(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "create note directory").WithToken(path)
	}
	if err := natomic.WriteFile(path, strings.NewReader(text)); err != nil {
		return qipuerrors.Wrap(qipuerrors.Io, err, "write note file atomically").WithToken(path)
	}
	return nil
}
