// Package storage owns the schema, connection pool, transaction boundaries,
// and typed repositories for every entity in the data model.
package storage

import "time"

// RevisionMode controls whether a note's edits produce new versions.
type RevisionMode string

const (
	RevisionNone     RevisionMode = "none"
	RevisionOnCreate RevisionMode = "on_create"
	RevisionOnUpdate RevisionMode = "on_update"
)

// Note is a user-authored document. Content is immutable per version;
// updates always produce a new NoteVersion row rather than overwriting one.
type Note struct {
	ID           [16]byte // time-ordered 128-bit identifier (UUIDv7)
	Title        string
	Content      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	Starred      bool
	Archived     bool
	RevisionMode RevisionMode
}

// Track distinguishes a note's two revision histories.
type Track string

const (
	TrackOriginal Track = "original"
	TrackRevised  Track = "revised"
)

// NoteVersion is a point-in-time content snapshot on one of a note's two
// tracks. Restoration creates a new version equal in content to an older
// one; it never mutates history.
type NoteVersion struct {
	ID          [16]byte
	NoteID      [16]byte
	Version     int // monotonic per (note, track)
	Track       Track
	Content     string
	CreatedAt   time.Time
	Author      string
	RestoredFrom *int // nullable version number this was restored from
}

// ChunkStrategy names which chunker produced a Chunk.
type ChunkStrategy string

const (
	StrategySyntactic ChunkStrategy = "syntactic"
	StrategySemantic  ChunkStrategy = "semantic"
	StrategyFixed     ChunkStrategy = "fixed"
)

// Chunk is a sub-document unit used for retrieval. A chunk belongs to
// exactly one note; re-chunking deletes prior chunks in the same
// transaction that inserts the new ones.
type Chunk struct {
	ID         [16]byte
	NoteID     [16]byte
	Index      int
	ByteStart  int
	ByteEnd    int
	Content    string
	Strategy   ChunkStrategy
	Language   string // detected/stored language, drives FTS analyzer choice
}

// Embedding is a dense vector for one chunk under one embedding set.
// Unique per (ChunkID, EmbeddingSetID).
type Embedding struct {
	ID              [16]byte
	ChunkID         [16]byte
	EmbeddingSetID  [16]byte
	Vector          []float32
	TruncatedViews  map[int][]float32 // Matryoshka views keyed by dimension
	Model           string
	CreatedAt       time.Time
}

// DistanceMetric names the vector-similarity function an EmbeddingConfig uses.
type DistanceMetric string

const (
	DistanceCosine DistanceMetric = "cosine"
	DistanceL2     DistanceMetric = "l2"
	DistanceDot    DistanceMetric = "dot"
)

// HNSWParams are the build/query parameters for an embedding config's
// vector index.
type HNSWParams struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// EmbeddingConfig is a named, immutable-once-referenced model descriptor.
type EmbeddingConfig struct {
	ID                [16]byte
	ProviderID        string
	ModelName         string
	NativeDimension   int
	MatryoshkaDims    []int
	HNSW              HNSWParams
	ChunkStrategy     ChunkStrategy
	ChunkTokenTarget  int
	ChunkOverlap      int
	Distance          DistanceMetric
}

// AutoEmbedPolicy controls when and how an EmbeddingSet reacts to note changes.
type AutoEmbedPolicy struct {
	OnCreate    bool
	OnUpdate    bool
	OnDelete    string // cascade | orphan | keep
	BatchSize   int
	Priority    int
	Schedule    string // optional cron-like expression, empty = immediate
}

// EmbeddingSetType distinguishes sets that own vectors from sets that merely
// filter the default set's vectors at query time.
type EmbeddingSetType string

const (
	SetTypeFilter EmbeddingSetType = "filter"
	SetTypeFull   EmbeddingSetType = "full"
)

// EmbeddingSet scopes which notes get embedded and under what config.
// A filter set never writes vectors; a full set always does.
type EmbeddingSet struct {
	ID                  [16]byte
	Name                string
	Type                EmbeddingSetType
	EmbeddingConfigID    [16]byte
	AutoEmbed           AutoEmbedPolicy
	TagPredicate        []string // required tag paths for membership
	CollectionPredicate [][16]byte
}

// Tag is a hierarchical, case-insensitive path, e.g. "ml/deep/transformer".
// Tags exist only as long as at least one note references them.
type Tag struct {
	Path string
}

// ConceptScheme groups related Concepts (SKOS).
type ConceptScheme struct {
	ID   [16]byte
	Name string
}

// LabelType distinguishes a Concept's labels by resolution priority.
type LabelType string

const (
	LabelPreferred LabelType = "preferred"
	LabelAlternate LabelType = "alternate"
	LabelHidden    LabelType = "hidden"
)

// ConceptLabel is one (concept, type, language) label. Preferred is unique
// per (concept, language).
type ConceptLabel struct {
	ConceptID [16]byte
	Type      LabelType
	Language  string
	Text      string
}

// ConceptRelationKind names a SKOS relation between two concepts.
type ConceptRelationKind string

const (
	RelationBroader     ConceptRelationKind = "broader"
	RelationNarrower    ConceptRelationKind = "narrower"
	RelationRelated     ConceptRelationKind = "related" // symmetric
	RelationExactMatch  ConceptRelationKind = "exactMatch"
)

// Concept is a SKOS concept: a preferred label per language, alternates,
// hidden labels (misspellings), a notation, and typed relations to other
// concepts. broader/narrower are enforced as mutual inverses by the
// taxonomy package, not by the storage layer.
type Concept struct {
	ID       [16]byte
	SchemeID [16]byte
	Notation string
}

// ConceptRelation is one directed typed edge between two concepts.
type ConceptRelation struct {
	FromConceptID [16]byte
	ToConceptID   [16]byte
	Kind          ConceptRelationKind
}

// Collection is a named folder, optionally nested under a parent.
type Collection struct {
	ID       [16]byte
	Name     string
	ParentID *[16]byte
}

// LinkKind distinguishes derived semantic links from user-created manual ones.
type LinkKind string

const (
	LinkSemantic LinkKind = "semantic"
	LinkManual   LinkKind = "manual"
)

// Link is a typed directed edge between two notes. Semantic links are
// always stored as two rows (A->B and B->A); manual links are single-
// direction unless the user creates both.
type Link struct {
	SourceID  [16]byte
	TargetID  [16]byte
	Kind      LinkKind
	Weight    float64
	CreatedAt time.Time
}

// JobStatus is a Job's lifecycle state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobKind enumerates the handler types the job queue dispatches to.
type JobKind string

const (
	JobEmbed               JobKind = "embed"
	JobRevise              JobKind = "revise"
	JobConceptTag          JobKind = "concept-tag"
	JobLinkDiscover        JobKind = "link-discover"
	JobAttachmentExtract   JobKind = "attachment-extract"
	JobExifExtract         JobKind = "exif-extract"
	JobShardExport         JobKind = "shard-export"
	JobShardImport         JobKind = "shard-import"
	JobRefreshEmbeddingSet JobKind = "refresh-embedding-set"
	JobReembedAll          JobKind = "reembed-all"
)

// JobTarget is a small tagged struct standing in for a polymorphic
// job target (note id, attachment id, or embedding-set id) — Go has no
// native union type. Which fields are populated depends on the job kind:
// embed and link-discover jobs carry both a note id and an embedding-set id.
type JobTarget struct {
	NoteID         *[16]byte
	AttachmentID   *[16]byte
	EmbeddingSetID *[16]byte
}

// JobProgress is a handler-published (percent, message) pair, queryable
// without interrupting the worker.
type JobProgress struct {
	Percent int
	Message string
}

// Job is one unit of background work.
type Job struct {
	ID              [16]byte
	Kind            JobKind
	Target          JobTarget
	Payload         []byte // structured, handler-specific
	Status          JobStatus
	Priority        int // 0-9, lower = higher priority
	ScheduledAt     time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	RetryCount      int
	MaxRetries      int
	LastError       string
	Progress        JobProgress
	DedupKey        string // hash of (kind, target, payload)
	CancelRequested bool
}

// ProvenanceSource names where a ProvenanceEvent's data originated.
type ProvenanceSource string

const (
	SourceEXIF         ProvenanceSource = "exif"
	SourceDeviceAPI    ProvenanceSource = "device_api"
	SourceUserManual   ProvenanceSource = "user_manual"
	SourceGeocoded     ProvenanceSource = "geocoded"
	SourceAIEstimated  ProvenanceSource = "ai_estimated"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// ProvenanceEvent carries temporal and spatial provenance for a note or
// attachment. Time ranges are [start, end] inclusive; a single-instant
// event has Start == End.
type ProvenanceEvent struct {
	ID             [16]byte
	NoteID         *[16]byte
	AttachmentID   *[16]byte
	Start          time.Time
	End            time.Time
	Location       *GeoPoint
	NamedLocationID *[16]byte
	Source         ProvenanceSource
	Confidence     float64
	UserCorrected  bool
	RawMetadata    []byte
}
