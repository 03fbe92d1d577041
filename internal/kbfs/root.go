package kbfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Root is the mount's root directory. It behaves exactly like Node except
// that Lookup("kibosh_control") is intercepted before it ever reaches the
// backing target root: the control file is not listed as a directory
// entry, it is name-resolvable only.
type Root struct {
	Node
}

var _ fs.NodeLookuper = (*Root)(nil)

// NewRoot constructs the mount's root node over fsys.
func NewRoot(fsys *Fs) *Root {
	return &Root{Node: Node{fsys: fsys}}
}

func (r *Root) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name == controlName {
		cn := newControlNode(r.fsys.Ctrl)
		cn.attr(&out.Attr)
		return r.NewInode(ctx, cn, fs.StableAttr{Mode: syscall.S_IFREG}), 0
	}
	return r.Node.Lookup(ctx, name, out)
}
