package fusefs

import (
	"context"

	"bazil.org/fuse"
)

// quarantineAttr is silently accepted and dropped, the same way
// y_setxattr special-cases it: Finder tags every downloaded file with it,
// and there is nowhere meaningful to persist it through a FUSE passthrough.
const quarantineAttr = "com.apple.quarantine"

// resourceForkAttr is the one xattr name that carries a meaningful byte
// offset; every other attribute gets its position field forced to zero.
const resourceForkAttr = "com.apple.ResourceFork"

func (n *Node) Getxattr(ctx context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	val, err := unixGetxattr(n.physical(), req.Name)
	if err != nil {
		return errnoOf(err)
	}
	resp.Xattr = val
	return nil
}

func (n *Node) Listxattr(ctx context.Context, req *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	names, err := unixListxattr(n.physical())
	if err != nil {
		return errnoOf(err)
	}
	resp.Append(names...)
	return nil
}

func (n *Node) Setxattr(ctx context.Context, req *fuse.SetxattrRequest) error {
	if req.Name == quarantineAttr {
		return nil
	}
	position := req.Position
	if req.Name != resourceForkAttr {
		position = 0
	}
	if err := unixSetxattr(n.physical(), req.Name, req.Xattr, position, req.Flags); err != nil {
		n.fs.Vault.Log.Errorf("setxattr", err, "path=%s name=%s", n.relPath, req.Name)
		return errnoOf(err)
	}
	return nil
}

func (n *Node) Removexattr(ctx context.Context, req *fuse.RemovexattrRequest) error {
	if err := unixRemovexattr(n.physical(), req.Name); err != nil {
		n.fs.Vault.Log.Errorf("removexattr", err, "path=%s name=%s", n.relPath, req.Name)
		return errnoOf(err)
	}
	return nil
}
