// Package config loads the engine's configuration: the pipe-delimited
// record tables (processes to keep alive, heartbeat peers) and the TOML
// settings file for everything else. Tables are pure reads with strict
// arity checks; a malformed line fails the load rather than being
// silently skipped.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/loykin/hostbeat/internal/heartbeat"
	"github.com/loykin/hostbeat/internal/matcher"
	"github.com/loykin/hostbeat/internal/monitor"
)

// record is one parsed non-comment line.
type record struct {
	line   int
	fields []string
}

// readRecords parses a pipe-delimited table: blank lines and lines
// starting with # are skipped, every field is whitespace-trimmed, and
// each remaining line must split into between minFields and maxFields.
func readRecords(path string, minFields, maxFields int) ([]record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
		}
		return nil, err
	}
	var records []record
	for i, raw := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < minFields || len(parts) > maxFields {
			return nil, fmt.Errorf("%w: %s line %d: got %d fields, want %d..%d",
				ErrMalformedRecord, path, i+1, len(parts), minFields, maxFields)
		}
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		records = append(records, record{line: i + 1, fields: parts})
	}
	return records, nil
}

// LoadProcesses parses the monitored-process table:
//
//	workingDirectory|processName|startCommand|runMode
//
// runMode is foreground or background. The process pattern is compiled
// here so a bad pattern fails the cycle before reconciliation starts.
func LoadProcesses(path string) ([]monitor.Descriptor, error) {
	records, err := readRecords(path, 4, 4)
	if err != nil {
		return nil, err
	}
	descs := make([]monitor.Descriptor, 0, len(records))
	for _, r := range records {
		workDir, name, command, mode := r.fields[0], r.fields[1], r.fields[2], strings.ToLower(r.fields[3])
		if mode != string(monitor.Foreground) && mode != string(monitor.Background) {
			return nil, fmt.Errorf("%w: %s line %d: run mode %q must be foreground or background",
				ErrMalformedRecord, path, r.line, r.fields[3])
		}
		m, err := matcher.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedRecord, path, r.line, err)
		}
		descs = append(descs, monitor.Descriptor{
			WorkDir: workDir,
			Name:    name,
			Pattern: m,
			Command: command,
			Mode:    monitor.RunMode(mode),
		})
	}
	return descs, nil
}

// LoadPeers parses the heartbeat peer table:
//
//	hostname|port|username[|password]
func LoadPeers(path string) ([]heartbeat.Peer, error) {
	records, err := readRecords(path, 3, 4)
	if err != nil {
		return nil, err
	}
	peers := make([]heartbeat.Peer, 0, len(records))
	for _, r := range records {
		port, err := strconv.Atoi(r.fields[1])
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: %s line %d: invalid port %q",
				ErrMalformedRecord, path, r.line, r.fields[1])
		}
		p := heartbeat.Peer{
			Hostname: r.fields[0],
			Port:     port,
			Username: r.fields[2],
		}
		if len(r.fields) == 4 {
			p.Password = r.fields[3]
		}
		if p.Hostname == "" || p.Username == "" {
			return nil, fmt.Errorf("%w: %s line %d: hostname and username are required",
				ErrMalformedRecord, path, r.line)
		}
		peers = append(peers, p)
	}
	return peers, nil
}
