package listfile

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	curr := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

// Closest returns the candidate nearest to name by edit distance, or "" when
// there are no candidates. Ties keep the earlier candidate.
func Closest(name string, candidates []string) (string, int) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// ParsePackageList extracts names from "pm list packages" output.
func ParsePackageList(out string) []string {
	var names []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		name, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "package:")
		if ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// InstalledPackages asks the package manager for installed package names.
func InstalledPackages(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "pm", "list", "packages").Output()
	if err != nil {
		return nil, fmt.Errorf("pm list packages: %w", err)
	}
	return ParsePackageList(string(out)), nil
}
