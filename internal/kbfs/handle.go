package kbfs

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/kibosh/kibosh/internal/fault"
)

// FileHandle backs a regular-file open. fd is the open backing file
// descriptor that every syscall runs against; path is the mount-relative
// path (e.g. "/logs/x", never TargetRoot-prefixed) used purely as the
// fault-matching key, captured once at Open time so later renames
// elsewhere in the tree do not change which fault rules this handle's
// reads/writes are matched against.
type FileHandle struct {
	fsys *Fs
	fd   int
	path string
}

var (
	_ fs.FileHandle   = (*FileHandle)(nil)
	_ fs.FileReader   = (*FileHandle)(nil)
	_ fs.FileWriter   = (*FileHandle)(nil)
	_ fs.FileFlusher  = (*FileHandle)(nil)
	_ fs.FileFsyncer  = (*FileHandle)(nil)
	_ fs.FileReleaser = (*FileHandle)(nil)
	_ fs.FileGetattrer = (*FileHandle)(nil)
	_ fs.FileAllocater = (*FileHandle)(nil)
)

func newFileHandle(fsys *Fs, fd int, path string) *FileHandle {
	return &FileHandle{fsys: fsys, fd: fd, path: path}
}

func sleepDelay(ms int64) {
	if ms <= 0 {
		return
	}
	d := time.Duration(ms) * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		time.Sleep(remaining)
	}
}

// Read performs a positioned read loop filling dest, then — if it
// transferred any bytes — consults the fault set exactly once. The delay of
// a matched read_delay fault is applied after the backing read and after
// the fault-set lock has been released, never while holding it.
func (h *FileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n := 0
	for n < len(dest) {
		got, err := syscall.Pread(h.fd, dest[n:], off+int64(n))
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			if n > 0 {
				break
			}
			return nil, errno(err)
		}
		if got == 0 {
			break
		}
		n += got
	}

	if n == 0 {
		return fuse.ReadResultData(dest[:0]), 0
	}

	eff, matched := h.fsys.firstMatchAndApply(h.path, fault.OpRead, dest[:n])
	if matched {
		if eff.Errno != 0 {
			return nil, syscall.Errno(-eff.Errno)
		}
		if eff.DelayMS > 0 {
			sleepDelay(eff.DelayMS)
		} else {
			n = eff.N
		}
	}
	return fuse.ReadResultData(dest[:n]), 0
}

// Write consults the fault set BEFORE touching the backing file: a forced
// error never reaches the backing write, a replacement
// buffer (write_corrupt) is what actually gets written, and a reduced
// count (DROP) shortens the backing write itself rather than lying about
// how many bytes landed.
func (h *FileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	writeBuf := data
	eff, matched := h.fsys.firstMatchAndApply(h.path, fault.OpWrite, data)
	if matched {
		if eff.Errno != 0 {
			return 0, syscall.Errno(-eff.Errno)
		}
		if eff.DelayMS > 0 {
			sleepDelay(eff.DelayMS)
		}
		if eff.Buf != nil {
			writeBuf = eff.Buf[:eff.N]
			defer fault.ReleaseBuf(eff.Buf)
		}
	}

	written := 0
	for written < len(writeBuf) {
		n, err := syscall.Pwrite(h.fd, writeBuf[written:], off+int64(written))
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			if written > 0 {
				break
			}
			return 0, errno(err)
		}
		if n == 0 {
			break
		}
		written += n
	}
	return uint32(written), 0
}

func (h *FileHandle) Flush(ctx context.Context) syscall.Errno {
	fd, err := syscall.Dup(h.fd)
	if err != nil {
		return errno(err)
	}
	return errno(syscall.Close(fd))
}

func (h *FileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return errno(syscall.Fsync(h.fd))
}

func (h *FileHandle) Release(ctx context.Context) syscall.Errno {
	return errno(syscall.Close(h.fd))
}

func (h *FileHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	var st syscall.Stat_t
	if err := syscall.Fstat(h.fd, &st); err != nil {
		return errno(err)
	}
	out.Attr.FromStat(&st)
	return 0
}

func (h *FileHandle) Allocate(ctx context.Context, off uint64, size uint64, mode uint32) syscall.Errno {
	return errno(syscall.Fallocate(h.fd, mode, int64(off), int64(size)))
}
