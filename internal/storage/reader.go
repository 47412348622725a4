package storage

import "context"

// Reader scopes a set of repository reads to one checked-out, archive-scoped
// connection. Unlike UnitOfWork it opens no transaction: only writes need
// to compose atomically, reads are free to run as
// independent statements, each seeing its own snapshot.
type Reader struct {
	conn *Conn
}

// NewReader acquires a connection scoped to ctx's archive. Callers must
// call Close to release it back to the pool.
func (p *Pool) NewReader(ctx context.Context) (*Reader, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Reader{conn: conn}, nil
}

// Close releases the underlying connection.
func (r *Reader) Close(ctx context.Context) { r.conn.Release(ctx) }

func (r *Reader) Notes() *NoteRepo                       { return &NoteRepo{q: r.conn} }
func (r *Reader) NoteVersions() *NoteVersionRepo         { return &NoteVersionRepo{q: r.conn} }
func (r *Reader) Chunks() *ChunkRepo                     { return &ChunkRepo{q: r.conn} }
func (r *Reader) Embeddings() *EmbeddingRepo             { return &EmbeddingRepo{q: r.conn} }
func (r *Reader) EmbeddingConfigs() *EmbeddingConfigRepo { return &EmbeddingConfigRepo{q: r.conn} }
func (r *Reader) EmbeddingSets() *EmbeddingSetRepo       { return &EmbeddingSetRepo{q: r.conn} }
func (r *Reader) Jobs() *JobRepo                         { return &JobRepo{q: r.conn} }
func (r *Reader) Tags() *TagRepo                         { return &TagRepo{q: r.conn} }
func (r *Reader) Concepts() *ConceptRepo                 { return &ConceptRepo{q: r.conn} }
func (r *Reader) Collections() *CollectionRepo           { return &CollectionRepo{q: r.conn} }
func (r *Reader) Links() *LinkRepo                       { return &LinkRepo{q: r.conn} }
func (r *Reader) Provenance() *ProvenanceRepo            { return &ProvenanceRepo{q: r.conn} }
