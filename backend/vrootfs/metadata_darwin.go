//go:build darwin

package vrootfs

import "syscall"

func statCtime(stat *syscall.Stat_t) int64 {
	return stat.Ctimespec.Sec*1000 + stat.Ctimespec.Nsec/1e6
}

func statAtime(stat *syscall.Stat_t) int64 {
	return stat.Atimespec.Sec*1000 + stat.Atimespec.Nsec/1e6
}
