// Package fusefs adapts the vault's ciphered byte stream to bazil.org/fuse's
// Node/Handle model: every call resolves a FUSE-relative path to a physical
// path under the backing store and either manipulates the physical inode
// directly (metadata operations) or drives an open *os.File through the
// stream cipher (read/write).
package fusefs

import (
	"path"
	"path/filepath"
	"strings"
)

// dsStoreName is the one path component the original tool rewrites on the
// way to and from the backing store: Finder's ".DS_Store" shadow file is
// stored as ".DS_Store." so it never collides with a directory's own
// attribute file of the same name created by some other tool.
const dsStoreName = ".DS_Store"
const dsStoreSuffix = ".DS_Store."

func isDSStore(name string) bool {
	return name == dsStoreName
}

// resolvePath maps a FUSE-relative path (slash-separated, rooted at "/") to
// the absolute path under root, applying the .DS_Store rewrite.
func resolvePath(root, relPath string) string {
	clean := path.Clean("/" + relPath)
	dir, base := path.Split(clean)
	if isDSStore(base) {
		base = dsStoreSuffix
	}
	return filepath.Join(root, dir, base)
}

// displayName reverses the .DS_Store rewrite for directory listings.
func displayName(physicalName string) string {
	if physicalName == dsStoreSuffix {
		return dsStoreName
	}
	return physicalName
}

func childPath(parent, name string) string {
	return strings.TrimSuffix(parent, "/") + "/" + name
}
