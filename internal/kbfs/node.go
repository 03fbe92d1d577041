package kbfs

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Node is a tree node backed by a file somewhere under Fs.TargetRoot. Its
// path is recomputed from the Inode tree at operation time via n.Path,
// rather than cached, so renames elsewhere in the tree are reflected
// immediately — the one exception is a FileHandle, which deliberately
// captures its path once at open time and keeps it fixed even if the
// node is later renamed elsewhere in the tree.
type Node struct {
	fs.Inode
	fsys *Fs
}

var (
	_ fs.InodeEmbedder   = (*Node)(nil)
	_ fs.NodeLookuper    = (*Node)(nil)
	_ fs.NodeGetattrer   = (*Node)(nil)
	_ fs.NodeSetattrer   = (*Node)(nil)
	_ fs.NodeOpener      = (*Node)(nil)
	_ fs.NodeCreater     = (*Node)(nil)
	_ fs.NodeMkdirer     = (*Node)(nil)
	_ fs.NodeMknoder     = (*Node)(nil)
	_ fs.NodeUnlinker    = (*Node)(nil)
	_ fs.NodeRmdirer     = (*Node)(nil)
	_ fs.NodeRenamer     = (*Node)(nil)
	_ fs.NodeSymlinker   = (*Node)(nil)
	_ fs.NodeReadlinker  = (*Node)(nil)
	_ fs.NodeLinker      = (*Node)(nil)
	_ fs.NodeReaddirer   = (*Node)(nil)
	_ fs.NodeStatfser    = (*Node)(nil)
	_ fs.NodeGetxattrer  = (*Node)(nil)
	_ fs.NodeSetxattrer  = (*Node)(nil)
	_ fs.NodeListxattrer = (*Node)(nil)
	_ fs.NodeRemovexattrer = (*Node)(nil)
)

func errno(err error) syscall.Errno {
	return fs.ToErrno(err)
}

// path recomputes this node's backing path from the Inode tree, the way
// a standard go-fuse loopback filesystem does it: join the tree-relative
// path onto the target root rather than caching a string on the Node.
func (n *Node) path() string {
	return filepath.Join(n.fsys.TargetRoot, n.Path(n.Root()))
}

// mountPath is this node's path as seen from the mount root, e.g.
// "/logs/x". Fault matching always runs against this, never against
// path()'s target-root-prefixed backing path, since fault prefixes are
// expressed relative to the mount.
func (n *Node) mountPath() string {
	return "/" + n.Path(n.Root())
}

func newChild(fsys *Fs, st *syscall.Stat_t) (*Node, fs.StableAttr) {
	return &Node{fsys: fsys}, fs.StableAttr{
		Mode: st.Mode & syscall.S_IFMT,
		Ino:  st.Ino,
	}
}

func fillEntry(out *fuse.EntryOut, st *syscall.Stat_t) {
	out.Attr.FromStat(st)
	out.Ino = st.Ino
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	var st syscall.Stat_t
	if err := syscall.Lstat(full, &st); err != nil {
		return nil, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	return n.NewInode(ctx, child, attr), 0
}

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if fh, ok := f.(*FileHandle); ok {
		var st syscall.Stat_t
		if err := syscall.Fstat(fh.fd, &st); err != nil {
			return errno(err)
		}
		out.Attr.FromStat(&st)
		return 0
	}
	var st syscall.Stat_t
	if err := syscall.Lstat(n.path(), &st); err != nil {
		return errno(err)
	}
	out.Attr.FromStat(&st)
	return 0
}

func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.path()

	if mode, ok := in.GetMode(); ok {
		if err := syscall.Chmod(p, mode); err != nil {
			return errno(err)
		}
	}
	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		u, g := -1, -1
		if uok {
			u = int(uid)
		}
		if gok {
			g = int(gid)
		}
		if err := syscall.Lchown(p, u, g); err != nil {
			return errno(err)
		}
	}
	if size, ok := in.GetSize(); ok {
		if err := syscall.Truncate(p, int64(size)); err != nil {
			return errno(err)
		}
	}
	if mtime, ok := in.GetMTime(); ok {
		atime := mtime
		if at, ok := in.GetATime(); ok {
			atime = at
		}
		tv := []unix.Timeval{
			unix.NsecToTimeval(atime.UnixNano()),
			unix.NsecToTimeval(mtime.UnixNano()),
		}
		if err := unix.Lutimes(p, tv); err != nil {
			return errno(err)
		}
	}

	var st syscall.Stat_t
	if err := syscall.Lstat(p, &st); err != nil {
		return errno(err)
	}
	out.Attr.FromStat(&st)
	return 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	p := n.path()
	fd, err := syscall.Open(p, int(flags), 0)
	if err != nil {
		return nil, 0, errno(err)
	}
	if flags&uint32(os.O_CREATE) != 0 {
		if caller, ok := fuse.FromContext(ctx); ok {
			syscall.Fchown(fd, int(caller.Uid), int(caller.Gid))
		}
	}
	return newFileHandle(n.fsys, fd, n.mountPath()), 0, 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	fd, err := syscall.Open(full, int(flags)|os.O_CREATE, mode)
	if err != nil {
		return nil, nil, 0, errno(err)
	}

	if caller, ok := fuse.FromContext(ctx); ok {
		syscall.Fchown(fd, int(caller.Uid), int(caller.Gid))
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(fd, &st); err != nil {
		syscall.Close(fd)
		return nil, nil, 0, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	inode := n.NewInode(ctx, child, attr)
	mountPath := filepath.Join(n.mountPath(), name)
	return inode, newFileHandle(n.fsys, fd, mountPath), 0, 0
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	if err := syscall.Mkdir(full, mode); err != nil {
		return nil, errno(err)
	}
	if caller, ok := fuse.FromContext(ctx); ok {
		syscall.Chown(full, int(caller.Uid), int(caller.Gid))
	}
	var st syscall.Stat_t
	if err := syscall.Lstat(full, &st); err != nil {
		return nil, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	return n.NewInode(ctx, child, attr), 0
}

func (n *Node) Mknod(ctx context.Context, name string, mode uint32, dev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	if err := syscall.Mknod(full, mode, int(dev)); err != nil {
		return nil, errno(err)
	}
	var st syscall.Stat_t
	if err := syscall.Lstat(full, &st); err != nil {
		return nil, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	return n.NewInode(ctx, child, attr), 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errno(syscall.Unlink(filepath.Join(n.path(), name)))
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errno(syscall.Rmdir(filepath.Join(n.path(), name)))
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	newNode, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	oldPath := filepath.Join(n.path(), name)
	newPath := filepath.Join(newNode.path(), newName)
	return errno(syscall.Rename(oldPath, newPath))
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	full := filepath.Join(n.path(), name)
	if err := syscall.Symlink(target, full); err != nil {
		return nil, errno(err)
	}
	var st syscall.Stat_t
	if err := syscall.Lstat(full, &st); err != nil {
		return nil, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	return n.NewInode(ctx, child, attr), 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	buf := make([]byte, 4096)
	n2, err := syscall.Readlink(n.path(), buf)
	if err != nil {
		return nil, errno(err)
	}
	return buf[:n2], 0
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	targetNode, ok := target.(*Node)
	if !ok {
		return nil, syscall.EXDEV
	}
	full := filepath.Join(n.path(), name)
	if err := syscall.Link(targetNode.path(), full); err != nil {
		return nil, errno(err)
	}
	var st syscall.Stat_t
	if err := syscall.Lstat(full, &st); err != nil {
		return nil, errno(err)
	}
	child, attr := newChild(n.fsys, &st)
	fillEntry(out, &st)
	return n.NewInode(ctx, child, attr), 0
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	dir := n.path()
	f, err := os.Open(dir)
	if err != nil {
		return nil, errno(err)
	}
	names, err := f.Readdirnames(-1)
	f.Close()
	if err != nil {
		return nil, errno(err)
	}
	return newDirStream(dir, names), 0
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st syscall.Statfs_t
	if err := syscall.Statfs(n.path(), &st); err != nil {
		return errno(err)
	}
	out.FromStatfsT(&st)
	return 0
}

func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	sz, err := unix.Lgetxattr(n.path(), attr, dest)
	if err != nil {
		return 0, errno(err)
	}
	return uint32(sz), 0
}

func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	return errno(unix.Lsetxattr(n.path(), attr, data, int(flags)))
}

func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	return errno(unix.Lremovexattr(n.path(), attr))
}

func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	sz, err := unix.Llistxattr(n.path(), dest)
	if err != nil {
		return 0, errno(err)
	}
	return uint32(sz), 0
}
