package listfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// StorePackage is the process restarted after the list changes.
const StorePackage = "com.android.vending"

// Killer signals processes whose command line starts with a package name.
type Killer struct {
	// ProcRoot defaults to /proc.
	ProcRoot string
	// Signal delivers the kill. Defaults to SIGKILL.
	Signal func(pid int) error
}

// Kill signals every process whose cmdline begins with pkg, which covers
// its ":suffix" sub-processes, and returns the pids it signalled.
func (k Killer) Kill(pkg string) ([]int, error) {
	root := k.ProcRoot
	if root == "" {
		root = "/proc"
	}
	signal := k.Signal
	if signal == nil {
		signal = sigkill
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", root, err)
	}
	var killed []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		cmdline, err := os.ReadFile(filepath.Join(root, e.Name(), "cmdline"))
		if err != nil || !bytes.HasPrefix(cmdline, []byte(pkg)) {
			continue
		}
		if err := signal(pid); err != nil {
			continue
		}
		killed = append(killed, pid)
	}
	return killed, nil
}
