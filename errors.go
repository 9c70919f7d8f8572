package fat

import "github.com/zeebo/errs"

// Error is the class that contains all the errors from this package.
var Error = errs.Class("fat")

// Errno enumerates every failure the engine can report. The directory
// and file layers built on top of the engine share the same taxonomy,
// so the name and type errors are defined here even though nothing in
// this package returns them.
type Errno int

const (
	ErrIO             Errno = iota + 1 // device read or write failed
	ErrBlockSize                       // device block size unusable
	ErrInvalidBPB                      // malformed or unsupported boot sector
	ErrBlockAlignment                  // filesystem not aligned for this block size
	ErrInvalidCluster                  // cluster index out of range
	ErrNameTooLong                     // filename too long
	ErrNotDirectory                    // not a directory
	ErrNotFile                         // not a file
)

// Strerror returns the descriptive text for an error code. Unknown
// codes report themselves as such rather than panicking, since codes
// may cross an API boundary as plain ints.
func Strerror(e Errno) string {
	switch e {
	case ErrIO:
		return "IO error"
	case ErrBlockSize:
		return "Invalid block size"
	case ErrInvalidBPB:
		return "Invalid BPB"
	case ErrBlockAlignment:
		return "Filesystem is not aligned for this block size"
	case ErrInvalidCluster:
		return "Invalid cluster index"
	case ErrNameTooLong:
		return "Filename too long"
	case ErrNotDirectory:
		return "Not a directory"
	case ErrNotFile:
		return "Not a file"
	}
	return "Invalid error code"
}

func (e Errno) Error() string { return Strerror(e) }
