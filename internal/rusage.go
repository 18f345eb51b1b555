package internal

import (
	"syscall"
	"time"
)

// GetRusage returns the resource usage of the calling process.
func GetRusage() (Rusage, error) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return Rusage{}, err
	}
	return Rusage{
		User:                       toDuration(ru.Utime),
		System:                     toDuration(ru.Stime),
		MaxRSS:                     int64(ru.Maxrss),
		SoftFaults:                 int64(ru.Minflt),
		HardFaults:                 int64(ru.Majflt),
		VoluntaryContextSwitches:   int64(ru.Nvcsw),
		InvoluntaryContextSwitches: int64(ru.Nivcsw),
	}, nil
}

func toDuration(t syscall.Timeval) time.Duration {
	return time.Second*time.Duration(t.Sec) + time.Microsecond*time.Duration(t.Usec)
}
