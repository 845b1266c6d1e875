// Package img builds and inspects SD card images for LiteX SoCs.
//
// Images are MBR partitioned with a single FAT32 partition starting at the
// customary 1 MiB boundary, matching what the on-target filesystem code and
// most card formatters expect.
package img

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/partition/mbr"
)

const usageString = `SD card image utility.

Usage:

	%s [flags] <command> [arguments]

The commands are:

	create <image> [file ...]	build an MBR partitioned FAT32 image
	info <image>			print size and partition table
	ls <image> [dir]		list a directory of the first partition
	cp <image> <src> <dst>		copy a file in or out, ':' prefixes image paths
`

const (
	sectorSize = 512
	partStart  = 2048 // first partition sector, 1 MiB alignment
)

var (
	flags = flag.NewFlagSet("img", flag.ExitOnError)

	size  = flags.Int64("size", 64, "image size in MiB")
	label = flags.String("label", "LITEX", "volume label of the FAT32 partition")
)

func usage() {
	fmt.Fprintf(flags.Output(), usageString, "img")
	flags.PrintDefaults()
}

func Main(args []string) {
	flags.Usage = usage
	flags.Parse(args[1:])

	if flags.NArg() < 2 {
		flags.Usage()
		os.Exit(1)
	}

	var err error
	switch flags.Arg(0) {
	case "create":
		err = create(flags.Arg(1), flags.Args()[2:])
	case "info":
		err = printInfo(os.Stdout, flags.Arg(1))
	case "ls":
		dir := "/"
		if flags.NArg() > 2 {
			dir = flags.Arg(2)
		}
		err = printList(os.Stdout, flags.Arg(1), dir)
	case "cp":
		if flags.NArg() != 4 {
			flags.Usage()
			os.Exit(1)
		}
		err = cp(flags.Arg(1), flags.Arg(2), flags.Arg(3))
	default:
		fmt.Fprintf(flags.Output(), "unknown command: %s\n", flags.Arg(0))
		flags.Usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// create builds an image file with a single FAT32 partition and copies the
// given files into its root directory.
func create(image string, files []string) error {
	if *size < 16 {
		return fmt.Errorf("image size %d MiB too small", *size)
	}
	bytes := *size << 20

	d, err := diskfs.Create(image, bytes, diskfs.Raw, diskfs.SectorSize512)
	if err != nil {
		return err
	}
	defer d.File.Close()

	table := &mbr.Table{
		Partitions: []*mbr.Partition{{
			Type:  mbr.Fat32LBA,
			Start: partStart,
			Size:  uint32(bytes/sectorSize - partStart),
		}},
		LogicalSectorSize:  sectorSize,
		PhysicalSectorSize: sectorSize,
	}
	if err := d.Partition(table); err != nil {
		return fmt.Errorf("partition: %w", err)
	}

	fsys, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   1,
		FSType:      filesystem.TypeFat32,
		VolumeLabel: *label,
	})
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}
	for _, name := range files {
		if err := copyIn(fsys, name, "/"+filepath.Base(name)); err != nil {
			return err
		}
	}
	return nil
}

func printInfo(w io.Writer, image string) error {
	d, err := diskfs.Open(image, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return err
	}
	defer d.File.Close()

	table, err := d.GetPartitionTable()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d MiB, %s partition table\n",
		filepath.Base(image), d.Size>>20, table.Type())
	for i, p := range table.GetPartitions() {
		if p.GetStart() == 0 || p.GetSize() == 0 {
			continue
		}
		fmt.Fprintf(w, "p%d: sector %8d, %5d MiB", i+1,
			p.GetStart()/sectorSize, p.GetSize()>>20)
		if mp, ok := p.(*mbr.Partition); ok {
			fmt.Fprintf(w, ", type %#02x", byte(mp.Type))
		}
		fmt.Fprintln(w)
	}
	return nil
}

func printList(w io.Writer, image, dir string) error {
	d, err := diskfs.Open(image, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return err
	}
	defer d.File.Close()

	fsys, err := d.GetFilesystem(1)
	if err != nil {
		return err
	}
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(w, "%8s  %s/\n", "", e.Name())
			continue
		}
		fmt.Fprintf(w, "%8d  %s\n", e.Size(), e.Name())
	}
	return nil
}

// cp copies a file between the host and the image's first partition. The
// image side of the copy is marked with a ':' prefix, similar to scp's
// host:path notation.
func cp(image, src, dst string) error {
	srcImg := strings.HasPrefix(src, ":")
	dstImg := strings.HasPrefix(dst, ":")
	if srcImg == dstImg {
		return errors.New("exactly one of src and dst must be an image path, prefixed with ':'")
	}

	d, err := diskfs.Open(image)
	if err != nil {
		return err
	}
	defer d.File.Close()

	fsys, err := d.GetFilesystem(1)
	if err != nil {
		return err
	}
	if srcImg {
		return copyOut(fsys, strings.TrimPrefix(src, ":"), dst)
	}
	return copyIn(fsys, src, strings.TrimPrefix(dst, ":"))
}

func copyIn(fsys filesystem.FileSystem, hostpath, imgpath string) error {
	in, err := os.Open(hostpath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fsys.OpenFile(imgpath, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return fmt.Errorf("%s: %w", imgpath, err)
	}
	_, err = io.Copy(out, in)
	return err
}

func copyOut(fsys filesystem.FileSystem, imgpath, hostpath string) error {
	in, err := fsys.OpenFile(imgpath, os.O_RDONLY)
	if err != nil {
		return fmt.Errorf("%s: %w", imgpath, err)
	}

	out, err := os.Create(hostpath)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
