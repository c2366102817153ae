//go:build linux || darwin

package vrootfs

import (
	"os"
	"syscall"

	"github.com/dk26/anyfs"
)

// fillPlatformMetadata adds the nlink/ctime/atime fields os.FileInfo
// doesn't expose portably, the way rclone's metadata_unix.go pulls
// them out of the raw syscall.Stat_t.
func fillPlatformMetadata(info os.FileInfo, m *anyfs.Metadata) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	m.Nlink = uint32(stat.Nlink)
	ctime := statCtime(stat)
	atime := statAtime(stat)
	m.CreatedMs = &ctime
	m.AccessedMs = &atime
}
