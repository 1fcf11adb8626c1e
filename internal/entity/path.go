// Package entity implements the entity path type addressed by the chunk
// store: an ordered, slash-separated sequence of non-empty name parts.
package entity

import (
	"errors"
	"hash/fnv"
	"strings"
)

// ErrEmptyPart is returned when a path part is the empty string.
var ErrEmptyPart = errors.New("entity: path part must not be empty")

// Path is the unique identifier of an entity, e.g. "camera/3/points".
//
// Path carries a precomputed 64-bit hash and shares its backing parts slice
// across clones, so Path is cheap to copy and cheap to use as a map key by
// hash. The zero value has no parts, so IsRoot reports true for it, but it
// carries no precomputed hash: it is not Equal to Root() and its Hash differs.
type Path struct {
	hash  uint64
	parts *[]string
}

var rootParts = []string{}

// Root returns the entity path with zero parts.
func Root() Path {
	return Path{hash: hashParts(nil), parts: &rootParts}
}

// New builds a Path from already-split parts. Every part must be non-empty.
func New(parts ...string) (Path, error) {
	for _, p := range parts {
		if p == "" {
			return Path{}, ErrEmptyPart
		}
	}
	cp := append([]string(nil), parts...)
	return Path{hash: hashParts(cp), parts: &cp}, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(parts ...string) Path {
	p, err := New(parts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse splits a "/"-separated string into a Path. Leading and trailing
// slashes are trimmed; an empty inner segment (a doubled slash) is rejected.
func Parse(s string) (Path, error) {
	if s == "" || s == "/" {
		return Root(), nil
	}
	s = strings.Trim(s, "/")
	return New(strings.Split(s, "/")...)
}

func hashParts(parts []string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

// Hash returns the precomputed 64-bit hash of the path.
func (p Path) Hash() uint64 { return p.hash }

// Len returns the number of parts.
func (p Path) Len() int {
	if p.parts == nil {
		return 0
	}
	return len(*p.parts)
}

// IsRoot reports whether the path has zero parts.
func (p Path) IsRoot() bool { return p.Len() == 0 }

// Parts returns the path's parts. The returned slice must not be mutated.
func (p Path) Parts() []string {
	if p.parts == nil {
		return nil
	}
	return *p.parts
}

// String renders the path as a "/"-joined string ("" for root).
func (p Path) String() string {
	if p.parts == nil {
		return ""
	}
	return strings.Join(*p.parts, "/")
}

// Equal reports structural equality. The hash is checked first as a
// fast-reject before falling back to part-by-part comparison, guarding
// against the (very unlikely) case of a hash collision.
func (p Path) Equal(other Path) bool {
	if p.hash != other.hash {
		return false
	}
	return equalParts(p.Parts(), other.Parts())
}

func equalParts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Child returns the path formed by appending name as a new final part.
func (p Path) Child(name string) (Path, error) {
	if name == "" {
		return Path{}, ErrEmptyPart
	}
	parts := append(append([]string(nil), p.Parts()...), name)
	return Path{hash: hashParts(parts), parts: &parts}, nil
}

// Parent returns the path with its last part removed, and false if p is root.
func (p Path) Parent() (Path, bool) {
	n := p.Len()
	if n == 0 {
		return Path{}, false
	}
	parts := append([]string(nil), p.Parts()[:n-1]...)
	return Path{hash: hashParts(parts), parts: &parts}, true
}

// StartsWith reports whether p equals prefix or is a descendant of it.
func (p Path) StartsWith(prefix Path) bool {
	if p.hash == prefix.hash {
		return true
	}
	pp, qp := p.Parts(), prefix.Parts()
	if len(qp) > len(pp) {
		return false
	}
	for i := range qp {
		if pp[i] != qp[i] {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether p is a strict descendant of other.
func (p Path) IsDescendantOf(other Path) bool {
	pp, op := p.Parts(), other.Parts()
	if len(op) >= len(pp) {
		return false
	}
	for i := range op {
		if pp[i] != op[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p is a strict ancestor of other.
func (p Path) IsAncestorOf(other Path) bool {
	return other.IsDescendantOf(p)
}

// IsChildOf reports whether p is a direct child of other (exactly one more part).
func (p Path) IsChildOf(other Path) bool {
	pp, op := p.Parts(), other.Parts()
	if len(op)+1 != len(pp) {
		return false
	}
	for i := range op {
		if pp[i] != op[i] {
			return false
		}
	}
	return true
}

// FirstCommonAncestor returns the longest path that is a prefix of both p and other.
func FirstCommonAncestor(p, other Path) Path {
	pp, op := p.Parts(), other.Parts()
	n := len(pp)
	if len(op) < n {
		n = len(op)
	}
	i := 0
	for i < n && pp[i] == op[i] {
		i++
	}
	parts := append([]string(nil), pp[:i]...)
	return Path{hash: hashParts(parts), parts: &parts}
}

// IncrementalWalk returns every path from just below start (exclusive) down
// to end (inclusive), each one part longer than the last. If start is the
// zero value, the walk starts at end's first part. Returns nil if end is not
// a descendant of start (or equal, when start is root).
func IncrementalWalk(start, end Path) []Path {
	if !start.IsRoot() && !end.IsDescendantOf(start) && !end.Equal(start) {
		return nil
	}
	endParts := end.Parts()
	first := 0
	if !start.IsRoot() {
		first = start.Len() + 1
	} else if end.IsRoot() {
		return nil
	} else {
		first = 1
	}
	out := make([]Path, 0, len(endParts)-first+1)
	for i := first; i <= len(endParts); i++ {
		parts := append([]string(nil), endParts[:i]...)
		out = append(out, Path{hash: hashParts(parts), parts: &parts})
	}
	return out
}
