// Package taxonomy implements the business rules layered over
// storage.TagRepo and storage.ConceptRepo: tag path validation and implied
// hierarchy, and SKOS inverse-relation bookkeeping.
package taxonomy

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/errs"
	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// MaxTagDepth is the maximum number of "/"-separated segments a tag path
// may have.
const MaxTagDepth = 5

// ValidatePath checks a raw tag path against the segment charset and depth
// invariants. It does not require parent segments to already exist:
// listings compute the implied hierarchy from occurrences, there is no
// separate hierarchy table to populate.
func ValidatePath(path string) error {
	if path == "" {
		return errs.New(errs.KindValidation, "taxonomy.ValidatePath", errEmptyPath{})
	}
	segments := strings.Split(strings.ToLower(path), "/")
	if len(segments) > MaxTagDepth {
		return errs.New(errs.KindValidation, "taxonomy.ValidatePath", errTagDepth{path: path, depth: len(segments)})
	}
	for _, seg := range segments {
		if !validSegment(seg) {
			return errs.New(errs.KindValidation, "taxonomy.ValidatePath", errTagSegment{path: path, segment: seg})
		}
	}
	return nil
}

func validSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// Attach validates path and attaches it to noteID via tags.
func Attach(ctx context.Context, tags *storage.TagRepo, noteID uuid.UUID, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	return tags.Attach(ctx, noteID, strings.ToLower(path))
}

// Node is one entry in the implied tag hierarchy: a path prefix (which may
// or may not itself have direct note references) together with the number
// of notes tagged exactly at that path.
type Node struct {
	Path     string
	Depth    int
	Count    int // notes tagged with this exact path; 0 for implied-only ancestors
	Implied  bool
	Children []*Node
}

// Hierarchy computes the implied prefix tree from every distinct tag path
// in use. A path "a/b/c" with no note tagged "a" or "a/b" still produces
// implied nodes for "a" and "a/b" so the tree has no gaps — listings
// compute the implied hierarchy from occurrences rather than storing it.
func Hierarchy(ctx context.Context, tags *storage.TagRepo) ([]*Node, error) {
	counts, err := tags.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]*Node)
	var roots []*Node

	ensure := func(path string, depth int) *Node {
		if n, ok := byPath[path]; ok {
			return n
		}
		n := &Node{Path: path, Depth: depth, Implied: true}
		byPath[path] = n
		return n
	}

	for _, tc := range counts {
		segments := strings.Split(tc.Path, "/")
		var parent *Node
		var acc []string
		for i, seg := range segments {
			acc = append(acc, seg)
			path := strings.Join(acc, "/")
			n := ensure(path, i+1)
			if i == len(segments)-1 {
				n.Count = tc.Count
				n.Implied = false
			}
			if parent == nil {
				alreadyRoot := false
				for _, r := range roots {
					if r == n {
						alreadyRoot = true
						break
					}
				}
				if !alreadyRoot {
					roots = append(roots, n)
				}
			} else {
				found := false
				for _, c := range parent.Children {
					if c == n {
						found = true
						break
					}
				}
				if !found {
					parent.Children = append(parent.Children, n)
				}
			}
			parent = n
		}
	}
	return roots, nil
}

type errEmptyPath struct{}

func (errEmptyPath) Error() string { return "taxonomy: tag path must not be empty" }

type errTagDepth struct {
	path  string
	depth int
}

func (e errTagDepth) Error() string {
	return "taxonomy: tag path " + e.path + " exceeds max depth"
}

type errTagSegment struct {
	path    string
	segment string
}

func (e errTagSegment) Error() string {
	return "taxonomy: tag path " + e.path + " has invalid segment " + e.segment
}
