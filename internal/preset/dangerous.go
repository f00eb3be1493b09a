package preset

import "strings"

// dangerousPatterns are substrings that mark a command as destructive.
var dangerousPatterns = []string{"rm -rf", "shutdown", "reboot", "mkfs", "dd if="}

// Dangerous returns the dangerous patterns found in cmd, matched
// case-insensitively. It is advisory: callers warn, they do not block.
func Dangerous(cmd string) []string {
	lower := strings.ToLower(cmd)
	var hits []string
	for _, p := range dangerousPatterns {
		if strings.Contains(lower, p) {
			hits = append(hits, p)
		}
	}
	return hits
}
