//go:build linux || darwin

package sdfs

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"syscall"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/filesystem"
	"rsc.io/rsc/fuse"
)

func mount(image, dir string) error {
	c, err := fuse.Mount(dir)
	if err != nil {
		return err
	}
	d, err := diskfs.Open(image, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return err
	}
	defer d.File.Close()
	fatfs, err := d.GetFilesystem(*part)
	if err != nil {
		return err
	}

	go c.Serve(&fusefs{fatfs})
	<-sigintr

	cmd := exec.Command("/bin/umount", dir)
	_, err = cmd.CombinedOutput()
	return err
}

// fusefs implements the file system. Nodes address the underlying FAT32 by
// path, the fat32 layer has no persistent file handles.
type fusefs struct {
	fs filesystem.FileSystem
}

func (p *fusefs) Root() (fuse.Node, fuse.Error) {
	return &fusedir{p.fs, "/"}, nil
}

type fusedir struct {
	fs   filesystem.FileSystem
	path string
}

func (p *fusedir) Attr() fuse.Attr {
	return fuse.Attr{Mode: os.ModeDir | 0o555}
}

func (p *fusedir) Lookup(name string, intr fuse.Intr) (fuse.Node, fuse.Error) {
	entries, err := p.fs.ReadDir(p.path)
	if err != nil {
		return nil, errno(err)
	}
	for _, e := range entries {
		if e.Name() != name {
			continue
		}
		if e.IsDir() {
			return &fusedir{p.fs, path.Join(p.path, name)}, nil
		}
		return &fusefile{p.fs, path.Join(p.path, name)}, nil
	}
	return nil, fuse.Errno(syscall.ENOENT)
}

func (p *fusedir) ReadDir(intr fuse.Intr) ([]fuse.Dirent, fuse.Error) {
	entries, err := p.fs.ReadDir(p.path)
	if err != nil {
		return nil, errno(err)
	}
	fuseEntries := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		if e.Name() == "." || e.Name() == ".." {
			continue
		}
		fuseEntries = append(fuseEntries, fuse.Dirent{Name: e.Name()})
	}
	return fuseEntries, nil
}

// fusefile implements both Node and Handle. The mount is read only, the
// fat32 layer can't truncate files, which writing would need.
type fusefile struct {
	fs   filesystem.FileSystem
	path string
}

func (p *fusefile) stat() os.FileInfo {
	entries, err := p.fs.ReadDir(path.Dir(p.path))
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.Name() == path.Base(p.path) {
			return e
		}
	}
	return nil
}

func (p *fusefile) Attr() fuse.Attr {
	info := p.stat()
	if info == nil {
		return fuse.Attr{Mode: 0o444}
	}
	return fuse.Attr{
		Mode:  0o444,
		Mtime: info.ModTime(),
		Size:  uint64(info.Size()),
	}
}

func (p *fusefile) ReadAll(intr fuse.Intr) ([]byte, fuse.Error) {
	f, err := p.fs.OpenFile(p.path, os.O_RDONLY)
	if err != nil {
		return nil, errno(err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, errno(err)
	}
	return b, nil
}

func errno(err error) fuse.Error {
	if errors.Is(err, fs.ErrInvalid) {
		return fuse.Errno(syscall.EINVAL)
	} else if errors.Is(err, fs.ErrExist) {
		return fuse.Errno(syscall.EEXIST)
	} else if errors.Is(err, fs.ErrNotExist) {
		return fuse.Errno(syscall.ENOENT)
	} else {
		return fuse.EIO
	}
}
