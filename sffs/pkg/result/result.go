// Package result defines the enumerated status codes surfaced by the SFFS
// driver. Every driver operation fails with exactly one Code; Success is
// represented as a nil error.
package result

// Code is a driver status code. It implements the error interface so that
// codes can flow through ordinary Go error returns and be compared with
// errors.Is.
type Code uint32

const (
	Success Code = iota
	Invalid
	AccessDenied
	SuperblockWriteFailed
	SuperblockInitFailed
	AlreadyExists
	NotFound
	FstFull
	NoFreeSpace
	NoFreeHandle
	TooManyPathComponents
	InUse
	BadBlock
	EccError
	CriticalEccError
	FileNotEmpty
	CheckFailed
	UnknownError
)

var names = map[Code]string{
	Success:               "success",
	Invalid:               "invalid",
	AccessDenied:          "access denied",
	SuperblockWriteFailed: "superblock write failed",
	SuperblockInitFailed:  "superblock init failed",
	AlreadyExists:         "already exists",
	NotFound:              "not found",
	FstFull:               "fst full",
	NoFreeSpace:           "no free space",
	NoFreeHandle:          "no free handle",
	TooManyPathComponents: "too many path components",
	InUse:                 "in use",
	BadBlock:              "bad block",
	EccError:              "ecc error",
	CriticalEccError:      "critical ecc error",
	FileNotEmpty:          "file not empty",
	CheckFailed:           "check failed",
	UnknownError:          "unknown error",
}

func (c Code) String() string {
	if name, ok := names[c]; ok {
		return name
	}
	return "unknown error"
}

func (c Code) Error() string {
	return c.String()
}
