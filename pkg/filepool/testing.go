package filepool

import "time"

// WaitForFormatDone polls pool's format progress until it has produced its
// full pre-allocation quota, the format worker pool has failed, or timeout
// elapses. It reports whether formatting finished successfully.
//
// Initialize already blocks until its format pass ends, so after a
// successful Initialize this returns true at once. It gives tests a way to
// poll format progress, and is deliberately not a method on FilePool's
// public API surface.
func WaitForFormatDone(pool *FilePool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		stat := pool.FormatStat()
		if stat.IsWrong() {
			return false
		}
		if stat.AllocateChunkNum() >= stat.PreAllocateNum {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
