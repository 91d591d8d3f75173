// Package credfile reads and writes the plain-text credentials file shared
// with older Caramel tooling (secure.txt). Each non-blank line is a
// "key:value" pair; recognized keys are host, port, username and password.
// It is a leaf package so both config/ and the login command can use it.
package credfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FilePerms restricts credentials files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the parent directory.
const DirPerms = 0o700

// Recognized keys.
const (
	KeyHost     = "host"
	KeyPort     = "port"
	KeyUsername = "username"
	KeyPassword = "password"
)

// File is the parsed content of a credentials file. Unknown keys are kept
// in Extra so a rewrite does not drop them.
type File struct {
	Host     string
	Port     int
	Username string
	Password string
	Extra    map[string]string
}

// Load reads a credentials file. Returns (nil, nil) if the file does not
// exist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("credfile: reading %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("credfile: %s: %w", path, err)
	}

	return f, nil
}

// Parse decodes credentials file content. Values are split at the first
// colon, so passwords may contain colons.
func Parse(data []byte) (*File, error) {
	f := &File{}

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key:value", lineNo)
		}

		key = strings.TrimSpace(key)

		switch key {
		case KeyHost:
			f.Host = value
		case KeyPort:
			port, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid port %q", lineNo, value)
			}

			f.Port = port
		case KeyUsername:
			f.Username = value
		case KeyPassword:
			f.Password = value
		default:
			if f.Extra == nil {
				f.Extra = make(map[string]string)
			}

			f.Extra[key] = value
		}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}

	return f, nil
}

// Encode renders the file in key:value form. Empty fields are omitted;
// extra keys follow in sorted order.
func (f *File) Encode() []byte {
	var b bytes.Buffer

	put := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "%s:%s\n", k, v)
		}
	}

	put(KeyHost, f.Host)

	if f.Port != 0 {
		put(KeyPort, strconv.Itoa(f.Port))
	}

	put(KeyUsername, f.Username)
	put(KeyPassword, f.Password)

	keys := make([]string, 0, len(f.Extra))
	for k := range f.Extra {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		put(k, f.Extra[k])
	}

	return b.Bytes()
}

// Save writes a credentials file atomically (write-to-temp + rename) with
// 0600 permissions. Never logs credential values.
func Save(path string, f *File) error {
	data := f.Encode()

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("credfile: creating directory %s: %w", dir, mkErr)
	}

	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".secure-*.tmp")
	if err != nil {
		return fmt.Errorf("credfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credfile: renaming: %w", err)
	}

	success = true

	return nil
}
