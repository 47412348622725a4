package linker

import (
	"context"

	"github.com/google/uuid"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

// EdgeFilter selects which link kinds Traverse follows.
type EdgeFilter string

const (
	EdgeSemantic EdgeFilter = "semantic"
	EdgeManual   EdgeFilter = "manual"
	EdgeAll      EdgeFilter = "all"
)

func (f EdgeFilter) kind() storage.LinkKind {
	switch f {
	case EdgeSemantic:
		return storage.LinkSemantic
	case EdgeManual:
		return storage.LinkManual
	default:
		return ""
	}
}

// Subgraph is the result of a bounded traversal: every node visited and
// every edge followed to reach it.
type Subgraph struct {
	Nodes []uuid.UUID
	Edges []*storage.Link
}

// Traverse performs a bounded breadth-first walk over link edges starting
// at start, stopping once depth levels or maxNodes distinct nodes have been
// reached (whichever comes first). Edges are re-fetched
// from storage on every call — no graph is cached in memory.
func (l *Linker) Traverse(ctx context.Context, start uuid.UUID, depth, maxNodes int, filter EdgeFilter) (*Subgraph, error) {
	if maxNodes <= 0 {
		maxNodes = 1
	}
	visited := map[uuid.UUID]bool{start: true}
	order := []uuid.UUID{start}
	var edges []*storage.Link

	frontier := []uuid.UUID{start}
	for level := 0; level < depth && len(order) < maxNodes; level++ {
		var next []uuid.UUID
		for _, node := range frontier {
			if len(order) >= maxNodes {
				break
			}
			outgoing, err := l.Links.OutgoingFrom(ctx, node, filter.kind())
			if err != nil {
				return nil, err
			}
			for _, e := range outgoing {
				target := uuid.UUID(e.TargetID)
				if !visited[target] {
					if len(order) >= maxNodes {
						continue
					}
					visited[target] = true
					order = append(order, target)
					next = append(next, target)
				}
				edges = append(edges, e)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return &Subgraph{Nodes: order, Edges: edges}, nil
}
