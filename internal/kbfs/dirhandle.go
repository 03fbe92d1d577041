package kbfs

import (
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// dirStream implements fs.DirStream over a pre-read, stat'd slice of
// directory entries. Readdir must skip "." and ".." and never list the
// control file as an entry; os.Readdirnames already omits the dot
// entries, and the control file is synthesized only by Lookup, so it
// never appears here.
type dirStream struct {
	dir     string
	names   []string
	pos     int
}

func newDirStream(dir string, names []string) *dirStream {
	return &dirStream{dir: dir, names: names}
}

func (d *dirStream) HasNext() bool {
	return d.pos < len(d.names)
}

func (d *dirStream) Next() (fuse.DirEntry, syscall.Errno) {
	name := d.names[d.pos]
	d.pos++

	var st syscall.Stat_t
	mode := uint32(0)
	if err := syscall.Lstat(filepath.Join(d.dir, name), &st); err == nil {
		mode = st.Mode
	}
	return fuse.DirEntry{Name: name, Mode: mode}, 0
}

func (d *dirStream) Close() {}
