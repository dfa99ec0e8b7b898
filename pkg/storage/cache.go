package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	// StampLayout formats the wall-clock part of a record name
	StampLayout = "2006.01.02.15.04.05"
	// ListsDir holds list-scoped records inside a target's leaf directory
	ListsDir = "lists"

	// tieBreakModulus bounds the sub-second counter
	tieBreakModulus = 100
)

var (
	ErrInvalidTargetID = errors.New("target id must be a non-empty string of digits")
	ErrInvalidListName = errors.New("invalid list name")
)

// Record is one fetched page waiting to be persisted
type Record struct {
	Kind     string
	Format   string
	TargetID string
	// ListName scopes the record under lists/<name>; empty for user records
	ListName string
	Header   []byte
	Body     []byte
	// AlreadyGzipped means Body is the API's own gzip stream, stored verbatim
	AlreadyGzipped bool
}

// Written describes the files produced by one Store call
type Written struct {
	HeaderPath string
	DataPath   string
	// Bytes is the on-disk size of both files
	Bytes int64
}

// Cache writes and reads the sharded on-disk record tree. It is safe for
// concurrent use; all workers share one Cache.
type Cache struct {
	root string

	mu        sync.Mutex
	seq       int
	lastStamp string

	now   func() time.Time
	sleep func(time.Duration)
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the wall clock and sleeper, for tests
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(c *Cache) {
		c.now = now
		c.sleep = sleep
	}
}

// NewCache creates the root directory if needed
func NewCache(root string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		root:  root,
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// ShardPath maps an id to d1/d2/d3/id, where d1..d3 are its last three
// digits least-significant first. Ids shorter than three digits are
// left-padded with zeros for the shard levels only.
func ShardPath(targetID string) string {
	padded := targetID
	for len(padded) < 3 {
		padded = "0" + padded
	}
	n := len(padded)
	return filepath.Join(padded[n-1:], padded[n-2:n-1], padded[n-3:n-2], targetID)
}

// Dir returns the leaf directory for a target, or its list directory
func (c *Cache) Dir(targetID, listName string) (string, error) {
	if !isDigits(targetID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTargetID, targetID)
	}
	dir := filepath.Join(c.root, ShardPath(targetID))
	if listName == "" {
		return dir, nil
	}
	if !validListName(listName) {
		return "", fmt.Errorf("%w: %q", ErrInvalidListName, listName)
	}
	return filepath.Join(dir, ListsDir, listName), nil
}

// Store writes the header file then the data file for one record. Both
// names share a timestamp and tie-break suffix, so lexicographic order of a
// directory's records is the order they were stored in.
func (c *Cache) Store(rec Record) (Written, error) {
	dir, err := c.Dir(rec.TargetID, rec.ListName)
	if err != nil {
		return Written{}, err
	}
	if rec.Kind == "" || rec.Format == "" {
		return Written{}, fmt.Errorf("record kind and format are required")
	}

	// MkdirAll treats an existing directory as success, so workers racing
	// on the same shard need no lock.
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Written{}, fmt.Errorf("failed to create cache directory: %w", err)
	}

	suffix := c.nextSuffix()
	base := rec.Kind + "." + rec.Format + ".%s." + suffix + ".gz"

	var w Written
	w.HeaderPath = filepath.Join(dir, fmt.Sprintf(base, "headers"))
	n, err := writeAtomic(w.HeaderPath, rec.Header, true)
	if err != nil {
		return Written{}, err
	}
	w.Bytes += n

	w.DataPath = filepath.Join(dir, fmt.Sprintf(base, "data"))
	n, err = writeAtomic(w.DataPath, rec.Body, !rec.AlreadyGzipped)
	if err != nil {
		return Written{}, err
	}
	w.Bytes += n

	return w, nil
}

// nextSuffix returns "<stamp>.<NNN>". When the counter wraps inside one
// second it waits for the next second so names keep increasing.
func (c *Cache) nextSuffix() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = (c.seq + 1) % tieBreakModulus
	stamp := c.now().UTC().Format(StampLayout)
	for c.seq == 0 && stamp == c.lastStamp {
		now := c.now()
		c.sleep(now.Truncate(time.Second).Add(time.Second).Sub(now))
		stamp = c.now().UTC().Format(StampLayout)
	}
	c.lastStamp = stamp

	return fmt.Sprintf("%s.%03d", stamp, c.seq)
}

// ListFiles returns the record names in a target's (or list's) directory,
// sorted. A missing directory yields no names and no error.
func (c *Cache) ListFiles(targetID, listName string) ([]string, error) {
	return c.ListFilesWithPrefix(targetID, listName, "")
}

// ListFilesWithPrefix is ListFiles restricted to names starting with prefix,
// e.g. "friends.json.data".
func (c *Cache) ListFilesWithPrefix(targetID, listName, prefix string) ([]string, error) {
	dir, err := c.Dir(targetID, listName)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".gz") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// WalkTargetIDs lazily yields (target id, leaf directory) for every leaf of
// the d/d/d/id shard tree. Each call starts a fresh walk.
func (c *Cache) WalkTargetIDs() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		_ = filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == c.root {
					return err
				}
				return nil
			}
			if !d.IsDir() || path == c.root {
				return nil
			}

			rel, err := filepath.Rel(c.root, path)
			if err != nil {
				return filepath.SkipDir
			}
			parts := strings.Split(rel, string(filepath.Separator))

			switch {
			case len(parts) < 4:
				if !isShardDigit(parts[len(parts)-1]) {
					return filepath.SkipDir
				}
				return nil
			case len(parts) == 4 && isDigits(parts[3]):
				if !yield(parts[3], path) {
					return filepath.SkipAll
				}
				return filepath.SkipDir
			default:
				return filepath.SkipDir
			}
		})
	}
}

// ReadRecord returns the decompressed contents of a record file
func ReadRecord(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// writeAtomic writes data (gzip-compressed if compress) to a temporary file
// in the target directory and renames it into place.
func writeAtomic(path string, data []byte, compress bool) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if compress {
		zw := gzip.NewWriter(tmp)
		_, err = zw.Write(data)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	} else {
		_, err = tmp.Write(data)
	}

	var size int64
	if err == nil {
		var info os.FileInfo
		if info, err = tmp.Stat(); err == nil {
			size = info.Size()
		}
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return size, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isShardDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

func validListName(name string) bool {
	if name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
