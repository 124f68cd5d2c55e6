// Package target assembles the final target list from command-line entries
// and host files, expanding subnet descriptors into individual addresses.
package target

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"fleetrun/internal/networking"
)

// FromArgs collects target names from command-line arguments. Each argument
// may hold several comma-separated entries.
func FromArgs(args []string) []string {
	var entries []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				entries = append(entries, part)
			}
		}
	}
	return entries
}

// FromFile reads target names from a file, one per line. Blank lines and
// lines starting with '#' are skipped.
func FromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open host file %s: %w", filename, err)
	}
	defer file.Close()

	var entries []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read host file %s: %w", filename, err)
	}
	return entries, nil
}

// Expand resolves each entry into one or more target names. Entries that
// parse as an address/prefix block expand to every usable address in the
// block; anything else passes through as a plain hostname. No uniqueness is
// enforced: a target listed twice runs twice and reports twice.
func Expand(entries []string) []string {
	var targets []string
	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			if ips := networking.IPsInSubnet(entry); ips != nil {
				targets = append(targets, ips...)
				continue
			}
		}
		targets = append(targets, entry)
	}
	return targets
}
