package filepool

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// The pool surfaces every fallible outcome as a *status.Status built from
// one of these codes, status.Error(codes.X, ...) rather than a hand-rolled
// error type. The helpers below let callers branch on the kind of failure
// without depending on exact message text.
const (
	// CodeManifestCorrupt covers a missing-and-required or CRC-invalid
	// manifest. Fatal at startup.
	CodeManifestCorrupt = codes.DataLoss
	// CodeScan covers a malformed pool-directory entry or a directory
	// listing failure during the startup scan. Fatal at startup.
	CodeScan = codes.FailedPrecondition
	// CodeDiskFull covers insufficient available space to satisfy the
	// configured pool size at format time. Fatal at startup.
	CodeDiskFull = codes.ResourceExhausted
	// CodeIO covers an underlying syscall/filesystem failure. Retried by
	// GetFile where the caller loops.
	CodeIO = codes.Unavailable
	// CodeTargetExists covers a no-replace rename that observed the
	// target already present. Never retried.
	CodeTargetExists = codes.AlreadyExists
	// CodeExhausted covers GetFile retrying out of both free lists with
	// formatting complete.
	CodeExhausted = codes.ResourceExhausted
	// CodeFormatFailed covers the format worker pool observing isWrong,
	// which fails the initial Initialize call.
	CodeFormatFailed = codes.Internal
	// CodeValidation covers a configuration value rejected at startup,
	// e.g. bytesPerWrite outside [1, 1048576] or not a 4096 multiple.
	CodeValidation = codes.InvalidArgument
	// CodeNotFound covers operations against a chunk number that is not
	// present in either free list.
	CodeNotFound = codes.NotFound
)

func errManifestCorrupt(format string, args ...interface{}) error {
	return status.Errorf(CodeManifestCorrupt, format, args...)
}

func errScan(format string, args ...interface{}) error {
	return status.Errorf(CodeScan, format, args...)
}

func errDiskFull(format string, args ...interface{}) error {
	return status.Errorf(CodeDiskFull, format, args...)
}

func errIO(format string, args ...interface{}) error {
	return status.Errorf(CodeIO, format, args...)
}

func errTargetExists(format string, args ...interface{}) error {
	return status.Errorf(CodeTargetExists, format, args...)
}

func errExhausted(format string, args ...interface{}) error {
	return status.Errorf(CodeExhausted, format, args...)
}

func errFormatFailed(format string, args ...interface{}) error {
	return status.Errorf(CodeFormatFailed, format, args...)
}

func errValidation(format string, args ...interface{}) error {
	return status.Errorf(CodeValidation, format, args...)
}

// IsTargetExists reports whether err is the "no-replace rename observed an
// existing target" outcome. Callers use this to distinguish the one
// GetFile failure mode that is never retried from every other kind.
func IsTargetExists(err error) bool {
	return status.Code(err) == CodeTargetExists
}

// IsExhausted reports whether err is the PoolExhausted outcome: both free
// lists were empty and formatting had already completed. CodeExhausted and
// CodeDiskFull are the same code, so this also matches a DiskFull error;
// only GetFile returns PoolExhausted and only Initialize returns DiskFull.
func IsExhausted(err error) bool {
	return status.Code(err) == CodeExhausted
}

// IsDiskFull reports whether err is the DiskFull startup failure. It shares
// its code with PoolExhausted and so matches that error as well.
func IsDiskFull(err error) bool {
	return status.Code(err) == CodeDiskFull
}

// IsManifestCorrupt reports whether err is the ManifestMissingOrCorrupt
// startup failure.
func IsManifestCorrupt(err error) bool {
	return status.Code(err) == CodeManifestCorrupt
}
