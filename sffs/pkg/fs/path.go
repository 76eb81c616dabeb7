package fs

import "strings"

// isValidNonRootPath reports whether path is absolute, at most 64 bytes,
// longer than "/" and does not end with a separator.
func isValidNonRootPath(path string) bool {
	return len(path) > 1 && len(path) <= 64 && path[0] == '/' && path[len(path)-1] != '/'
}

// hasValidPathCharacters reports whether every byte of the path is printable
// ASCII (0x20..0x7e).
func hasValidPathCharacters(path string) bool {
	for i := 0; i < len(path); i++ {
		if path[i]-0x20 > 0x5e {
			return false
		}
	}
	return true
}

// splitPath splits a valid non-root path into the parent path and the final
// component.
//
// Example: /shared2/sys/SYSCONF => {/shared2/sys, SYSCONF}
func splitPath(path string) (parent, fileName string) {
	i := strings.LastIndexByte(path, '/')
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}
