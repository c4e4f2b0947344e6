package town

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	redirectFile     = "redirect"
	maxRedirectDepth = 3
)

// ResolveRedirect follows redirect marker files starting at dir. A marker
// names a replacement directory, absolute or relative to dir's parent.
// Chains are followed up to maxRedirectDepth hops; cyclic or malformed
// chains degrade to the last directory reached instead of failing.
func ResolveRedirect(dir string) string {
	current := dir
	for i := 0; i < maxRedirectDepth; i++ {
		data, err := os.ReadFile(filepath.Join(current, redirectFile))
		if err != nil {
			return current
		}
		target := strings.TrimSpace(string(data))
		if target == "" {
			return current
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(current), target)
		}
		target = filepath.Clean(target)
		if target == current {
			return current
		}
		current = target
	}
	return current
}
