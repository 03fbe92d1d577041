package kbfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/kibosh/kibosh/internal/control"
	"github.com/kibosh/kibosh/internal/handle"
)

// ControlNode is the synthetic /kibosh_control inode. It is a distinct
// type from Node — not a passthrough over any backing file —
// and never consults the fault set; every other node delegates reads and
// writes onto a real file under the target root, this one delegates onto
// the in-memory control.State.
type ControlNode struct {
	fs.Inode
	ctrl *control.State
}

var (
	_ fs.InodeEmbedder = (*ControlNode)(nil)
	_ fs.NodeGetattrer = (*ControlNode)(nil)
	_ fs.NodeOpener    = (*ControlNode)(nil)
)

func newControlNode(ctrl *control.State) *ControlNode {
	return &ControlNode{ctrl: ctrl}
}

func (c *ControlNode) attr(out *fuse.Attr) {
	out.Mode = syscall.S_IFREG | c.ctrl.Mode()
	out.Size = uint64(c.ctrl.Size())
	now := time.Now()
	out.SetTimes(&now, &now, &now)
}

func (c *ControlNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	c.attr(&out.Attr)
	return 0
}

// Open allocates a per-open accessor: O_TRUNC starts the accessor buffer
// empty, otherwise it snapshots the current document;
// O_RDONLY opens route Release to close silently rather than attempt a
// commit.
func (c *ControlNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	trunc := flags&uint32(syscall.O_TRUNC) != 0
	readOnly := flags&syscall.O_ACCMODE == syscall.O_RDONLY
	id := c.ctrl.Open(trunc, readOnly)
	return newControlFileHandle(c.ctrl, id), fuse.FOPEN_DIRECT_IO, 0
}

// controlFileHandle is the FileHandle half of the control file: every
// read/write operates on the per-open Accessor buffer, and Release decides
// whether to commit it.
type controlFileHandle struct {
	ctrl *control.State
	id   handle.ID
}

var (
	_ fs.FileHandle   = (*controlFileHandle)(nil)
	_ fs.FileReader   = (*controlFileHandle)(nil)
	_ fs.FileWriter   = (*controlFileHandle)(nil)
	_ fs.FileReleaser = (*controlFileHandle)(nil)
	_ fs.FileGetattrer = (*controlFileHandle)(nil)
)

func newControlFileHandle(ctrl *control.State, id handle.ID) *controlFileHandle {
	return &controlFileHandle{ctrl: ctrl, id: id}
}

func (h *controlFileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	acc, ok := h.ctrl.Accessor(h.id)
	if !ok {
		return nil, syscall.EBADF
	}
	return fuse.ReadResultData(acc.Read(off, len(dest))), 0
}

func (h *controlFileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	acc, ok := h.ctrl.Accessor(h.id)
	if !ok {
		return 0, syscall.EBADF
	}
	return uint32(acc.Write(off, data)), 0
}

func (h *controlFileHandle) Release(ctx context.Context) syscall.Errno {
	return errno(h.ctrl.Release(h.id))
}

func (h *controlFileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | h.ctrl.Mode()
	out.Size = uint64(h.ctrl.Size())
	return 0
}
