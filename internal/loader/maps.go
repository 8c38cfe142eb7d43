package loader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrLibraryNotFound is returned when no executable mapping of the library
// exists in the process.
var ErrLibraryNotFound = errors.New("loader: library not mapped")

// LibraryIdentity identifies a mapped library file for the hook host.
type LibraryIdentity struct {
	Dev   uint64
	Inode uint64
}

// FindLibrary scans a /proc/<pid>/maps listing for the executable mapping of
// the library whose file name is name.
func FindLibrary(r io.Reader, name string) (LibraryIdentity, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		// address perms offset dev inode [path]
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 {
			continue
		}
		perms, dev, inode, path := fields[1], fields[3], fields[4], fields[5]
		if len(perms) < 3 || perms[2] != 'x' || filepath.Base(path) != name {
			continue
		}
		major, minor, ok := strings.Cut(dev, ":")
		if !ok {
			continue
		}
		maj, err := strconv.ParseUint(major, 16, 32)
		if err != nil {
			continue
		}
		mnr, err := strconv.ParseUint(minor, 16, 32)
		if err != nil {
			continue
		}
		ino, err := strconv.ParseUint(inode, 10, 64)
		if err != nil {
			continue
		}
		return LibraryIdentity{Dev: unix.Mkdev(uint32(maj), uint32(mnr)), Inode: ino}, nil
	}
	if err := sc.Err(); err != nil {
		return LibraryIdentity{}, fmt.Errorf("scan maps: %w", err)
	}
	return LibraryIdentity{}, fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// LookupLibrary finds name in the calling process's memory map.
func LookupLibrary(name string) (LibraryIdentity, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return LibraryIdentity{}, fmt.Errorf("open maps: %w", err)
	}
	defer f.Close()
	return FindLibrary(f, name)
}
