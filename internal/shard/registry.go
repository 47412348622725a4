package shard

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Warning names one non-fatal deviation Import reports instead of failing
// outright.
type Warning struct {
	Kind    WarningKind
	Detail  string
}

// WarningKind enumerates the migration-chain deviations a Migrator may
// surface.
type WarningKind string

const (
	WarningFieldRemoved        WarningKind = "field_removed"
	WarningDefaultApplied      WarningKind = "default_applied"
	WarningUnknownFieldIgnored WarningKind = "unknown_field_ignored"
	WarningDataTruncated       WarningKind = "data_truncated"
)

// Migrator transforms a Bundle written at From into one valid at To,
// reporting any lossy step as a Warning rather than failing. Each
// registered Migrator handles exactly one
// version edge; Import walks a chain of them.
type Migrator interface {
	From() *semver.Version
	To() *semver.Version
	Migrate(b *Bundle) ([]Warning, error)
}

// Registry holds every registered version-to-version Migrator and resolves
// the shortest chain between two versions via bounded BFS over the edges —
// the same traversal idiom internal/linker.Traverse uses for its bounded
// graph walk, applied here to version edges instead of note links.
type Registry struct {
	edges map[string][]Migrator // from.String() -> migrators departing it
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{edges: make(map[string][]Migrator)}
}

// Register adds m as a directed edge from m.From() to m.To().
func (r *Registry) Register(m Migrator) {
	key := m.From().String()
	r.edges[key] = append(r.edges[key], m)
}

// UpgradeRequiredError means a shard's major version is newer than the
// engine importing it can understand at all: no migration chain could ever
// exist since migrators only walk forward from older to newer versions.
// Import surfaces this as a clear human-readable message naming the
// version the engine would need, rather than the generic "no chain found"
// error a same-or-older-major mismatch gets.
type UpgradeRequiredError struct {
	From *semver.Version
	To   *semver.Version
}

func (e *UpgradeRequiredError) Error() string {
	return fmt.Sprintf("shard: this bundle was written by a newer engine (format v%s) than this one understands (v%s); upgrade the engine to at least v%d.x to import it", e.From, e.To, e.From.Major())
}

// ShortestChain returns the fewest-hop sequence of Migrators taking a
// bundle at version from to version to. Returns a nil, nil chain if
// from.Equal(to): no migration needed. Returns an *UpgradeRequiredError if
// from's major version is newer than to's, and a generic "no migration
// chain" error if no path exists for any other reason.
func (r *Registry) ShortestChain(from, to *semver.Version) ([]Migrator, error) {
	if from.Equal(to) {
		return nil, nil
	}
	if from.Major() > to.Major() {
		return nil, &UpgradeRequiredError{From: from, To: to}
	}

	type node struct {
		version *semver.Version
		path    []Migrator
	}
	start := node{version: from}
	visited := map[string]bool{from.String(): true}
	frontier := []node{start}

	for len(frontier) > 0 {
		var next []node
		for _, n := range frontier {
			for _, m := range r.edges[n.version.String()] {
				if visited[m.To().String()] {
					continue
				}
				path := make([]Migrator, len(n.path)+1)
				copy(path, n.path)
				path[len(n.path)] = m
				if m.To().Equal(to) {
					return path, nil
				}
				visited[m.To().String()] = true
				next = append(next, node{version: m.To(), path: path})
			}
		}
		frontier = next
	}

	return nil, fmt.Errorf("shard: no migration chain from %s to %s", from, to)
}

// Migrate walks the shortest chain from the manifest's version to target,
// applying each Migrator in turn and collecting every Warning raised along
// the way.
func (r *Registry) Migrate(b *Bundle, from, to *semver.Version) ([]Warning, error) {
	chain, err := r.ShortestChain(from, to)
	if err != nil {
		return nil, err
	}
	var warnings []Warning
	for _, m := range chain {
		w, err := m.Migrate(b)
		if err != nil {
			return warnings, fmt.Errorf("shard: migrate %s -> %s: %w", m.From(), m.To(), err)
		}
		warnings = append(warnings, w...)
	}
	return warnings, nil
}
