// Package archive implements multi-tenant isolation via Postgres schema
// namespaces. Each archive owns one schema; callers never address a schema
// directly, they carry an Archive through context.Context and the storage
// layer switches search_path on checkout.
package archive

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// DefaultName is the archive every fresh install provisions. It must never
// be the bare string "default": that name collided with Postgres's own
// implicit "public" schema behavior in earlier deployments and caused
// silent cross-archive writes, so it is rejected outright by Validate.
const DefaultName = "public"

// maxNameLen mirrors Postgres's NAMEDATALEN limit (64 bytes) minus one byte
// for the trailing NUL Postgres itself reserves.
const maxNameLen = 63

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Common errors.
var (
	ErrInvalidName  = errors.New("archive: invalid name")
	ErrReservedName = errors.New("archive: \"default\" is a reserved name, use \"public\"")
	ErrNameTooLong  = errors.New("archive: name exceeds maximum length")
	ErrEmptyName    = errors.New("archive: name cannot be empty")
)

// Archive identifies a tenant's isolated schema namespace.
type Archive struct {
	// Name is both the archive's public identifier and its Postgres schema
	// name. Validate enforces identifier rules before this ever reaches SQL.
	Name string
}

// Validate checks that name is a safe, well-formed Postgres schema
// identifier: lowercase, starts with a letter, otherwise alphanumeric or
// underscore, at most 63 bytes, and never the reserved word "default".
func Validate(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name == "default" {
		return ErrReservedName
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, name, len(name), maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q must start with a lowercase letter and contain only lowercase letters, digits, or underscores", ErrInvalidName, name)
	}
	return nil
}

// New validates name and returns an Archive wrapping it.
func New(name string) (*Archive, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}
	return &Archive{Name: name}, nil
}

// SchemaName returns the Postgres schema identifier for this archive. It is
// identical to Name today; kept distinct from Name so a future prefixing
// scheme (e.g. "arc_"+name) doesn't require touching call sites.
func (a *Archive) SchemaName() string {
	return a.Name
}

type archiveCtxKey struct{}

// WithContext returns a context carrying archive. Archive identity is never
// read from a global or a singleton connection; every call that touches
// storage must thread it through context.Context explicitly.
func WithContext(ctx context.Context, a *Archive) context.Context {
	return context.WithValue(ctx, archiveCtxKey{}, a)
}

// FromContext extracts the archive carried by ctx, or nil if none was set.
func FromContext(ctx context.Context) *Archive {
	a, _ := ctx.Value(archiveCtxKey{}).(*Archive)
	return a
}

// MustFromContext extracts the archive carried by ctx and panics if absent.
// Use at the boundary of a repository method, never in general-purpose
// library code, so a missing archive fails loudly and close to its cause.
func MustFromContext(ctx context.Context) *Archive {
	a := FromContext(ctx)
	if a == nil {
		panic("archive: no archive in context")
	}
	return a
}
