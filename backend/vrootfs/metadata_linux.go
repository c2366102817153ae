//go:build linux

package vrootfs

import "syscall"

func statCtime(stat *syscall.Stat_t) int64 {
	return stat.Ctim.Sec*1000 + stat.Ctim.Nsec/1e6
}

func statAtime(stat *syscall.Stat_t) int64 {
	return stat.Atim.Sec*1000 + stat.Atim.Nsec/1e6
}
