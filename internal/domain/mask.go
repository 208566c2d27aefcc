package domain

// PathMask restricts which child collections an export descends into.
// Keys are sanitized collection names; values are the masks the matched
// children inherit. A nil or empty mask means the subtree below this
// point is unrestricted. Masking never affects the current node's own
// items, only descent into its children.
type PathMask map[string]PathMask

// Child reports whether a child with the given sanitized name should be
// visited, and with which mask. An unrestricted mask admits every child
// and terminates the restriction; a non-empty mask admits only children
// whose names it lists.
func (m PathMask) Child(sanitizedName string) (PathMask, bool) {
	if len(m) == 0 {
		return nil, true
	}
	sub, ok := m[sanitizedName]
	return sub, ok
}
