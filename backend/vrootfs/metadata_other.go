//go:build !linux && !darwin

package vrootfs

import (
	"os"

	"github.com/dk26/anyfs"
)

// fillPlatformMetadata is a no-op on platforms without syscall.Stat_t;
// Metadata.Nlink stays at its os.FileInfo-derived default of 1.
func fillPlatformMetadata(info os.FileInfo, m *anyfs.Metadata) {}
