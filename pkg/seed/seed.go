// Package seed parses crawl seed lines.
//
// A seed line is
//
//	[<kindflags>\t]<target_id>[ <secondary>]
//
// Flags are single letters (u, t, f, m, l) or '*' for every kind. Without
// a flags field every kind is requested. The secondary token is the list
// slug for list-members and a start cursor for list-memberships. Lines
// starting with '#' and blank lines are comments.
package seed

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one category of fetch
type Kind string

const (
	Profile     Kind = "profile"
	Timeline    Kind = "timeline"
	Friends     Kind = "friends"
	Memberships Kind = "list-memberships"
	Members     Kind = "list-members"
)

// AllKinds is every kind in dispatch order
var AllKinds = []Kind{Profile, Timeline, Friends, Memberships, Members}

const Wildcard = '*'

var kindInfo = map[Kind]struct {
	flag      rune
	cacheName string
	paginated bool
}{
	Profile:     {'u', "userinfo", false},
	Timeline:    {'t', "tweets", false},
	Friends:     {'f', "friends", true},
	Memberships: {'m', "memberships", true},
	Members:     {'l', "members", true},
}

// Flag returns the seed-file letter for k
func (k Kind) Flag() rune { return kindInfo[k].flag }

// CacheName is the record name prefix used in the cache
func (k Kind) CacheName() string { return kindInfo[k].cacheName }

// Paginated reports whether k is fetched with a cursor loop
func (k Kind) Paginated() bool { return kindInfo[k].paginated }

// ListScoped reports whether records of k live under lists/<name>
func (k Kind) ListScoped() bool { return k == Members }

// KindForFlag maps a seed-file letter to its kind
func KindForFlag(flag rune) (Kind, bool) {
	for _, k := range AllKinds {
		if kindInfo[k].flag == flag {
			return k, true
		}
	}
	return "", false
}

// ParseKinds turns a flags field into kinds in dispatch order
func ParseKinds(flags string) ([]Kind, error) {
	flags = strings.TrimSpace(flags)
	if flags == "" || strings.ContainsRune(flags, Wildcard) {
		return append([]Kind(nil), AllKinds...), nil
	}

	want := make(map[Kind]bool)
	for _, r := range flags {
		k, ok := KindForFlag(r)
		if !ok {
			return nil, fmt.Errorf("%w: unknown kind flag %q", ErrInvalid, r)
		}
		want[k] = true
	}

	kinds := make([]Kind, 0, len(want))
	for _, k := range AllKinds {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// FormatKinds is the inverse of ParseKinds
func FormatKinds(kinds []Kind) string {
	if len(kinds) == len(AllKinds) {
		return string(Wildcard)
	}
	var b strings.Builder
	for _, k := range kinds {
		b.WriteRune(k.Flag())
	}
	return b.String()
}

var (
	// ErrInvalid marks a malformed seed line
	ErrInvalid = errors.New("invalid seed")
)

// Seed is one parsed line of crawl work
type Seed struct {
	Kinds     []Kind
	TargetID  string
	Secondary string
}

// Has reports whether k was requested
func (s Seed) Has(k Kind) bool {
	for _, have := range s.Kinds {
		if have == k {
			return true
		}
	}
	return false
}

func (s Seed) String() string {
	out := FormatKinds(s.Kinds) + "\t" + s.TargetID
	if s.Secondary != "" {
		out += " " + s.Secondary
	}
	return out
}

// IsComment reports whether a line carries no work
func IsComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// Parse parses one non-comment seed line
func Parse(line string) (Seed, error) {
	line = strings.TrimRight(line, "\r\n")
	if IsComment(line) {
		return Seed{}, fmt.Errorf("%w: comment or blank line", ErrInvalid)
	}

	flags, data := "", line
	if i := strings.IndexByte(line, '\t'); i >= 0 {
		flags, data = line[:i], line[i+1:]
	}

	kinds, err := ParseKinds(flags)
	if err != nil {
		return Seed{}, err
	}

	fields := strings.Fields(data)
	switch {
	case len(fields) == 0:
		return Seed{}, fmt.Errorf("%w: missing target id", ErrInvalid)
	case len(fields) > 2:
		return Seed{}, fmt.Errorf("%w: unexpected fields after %q", ErrInvalid, fields[1])
	}

	s := Seed{Kinds: kinds, TargetID: fields[0]}
	if !isDigits(s.TargetID) {
		return Seed{}, fmt.Errorf("%w: target id %q is not numeric", ErrInvalid, s.TargetID)
	}
	if len(fields) == 2 {
		s.Secondary = fields[1]
	}
	return s, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
