package catalog

import (
	"time"

	"lightview/internal/mediatypes"
)

// JobKind identifies the work a job performs.
type JobKind string

const (
	JobHash      JobKind = "hash"
	JobThumbnail JobKind = "thumbnail"
	JobMetadata  JobKind = "metadata"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Base priorities by kind. Hashing gates the derived work, so it runs first.
const (
	PriorityHash      = 30
	PriorityThumbnail = 20
	PriorityMetadata  = 10
)

// TrackedDirectory is a library root registered with the indexer.
type TrackedDirectory struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	Watched   bool      `json:"watched"`
	CreatedAt time.Time `json:"createdAt"`
}

// FileRecord is one path under a tracked directory. Identity is the path;
// content identity lives on the linked ContentRecord. Retired records stay
// in the table but are excluded from every listing.
type FileRecord struct {
	ID         int64           `json:"id"`
	Path       string          `json:"path"`
	DirID      int64           `json:"dirId"`
	ParentPath string          `json:"parentPath"`
	Name       string          `json:"name"`
	Kind       mediatypes.Kind `json:"kind"`
	Size       int64           `json:"size"`
	ModTime    time.Time       `json:"modTime"`
	Liked      bool            `json:"liked"`
	ContentID  int64           `json:"contentId,omitempty"`
	Retired    bool            `json:"-"`
}

// ContentRecord holds everything derived from file bytes: the fingerprint,
// probed metadata, and the thumbnail blob. Multiple FileRecords may point at
// one ContentRecord.
type ContentRecord struct {
	ID          int64  `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	Format      string `json:"format,omitempty"`
	DurationMS  int64  `json:"durationMs,omitempty"`
	Bitrate     int64  `json:"bitrate,omitempty"`
	Codec       string `json:"codec,omitempty"`
	PNGInfo     string `json:"pngInfo,omitempty"`
	ThumbReady  bool   `json:"thumbReady"`
	MetaReady   bool   `json:"metaReady"`
}

// Job is one unit of background work. FileID targets hash jobs; ContentID
// targets thumbnail and metadata jobs. Zero means "not set".
type Job struct {
	ID        int64     `json:"id"`
	Kind      JobKind   `json:"kind"`
	FileID    int64     `json:"fileId,omitempty"`
	ContentID int64     `json:"contentId,omitempty"`
	Status    JobStatus `json:"status"`
	Priority  int       `json:"priority"`
	Boost     int       `json:"boost"`
	Attempts  int       `json:"attempts"`
	WorkerID  string    `json:"-"`
	LastError string    `json:"lastError,omitempty"`
}

// Effective returns the priority used for claim ordering.
func (j *Job) Effective() int {
	return j.Priority + j.Boost
}

// Counts is the aggregate snapshot served by the status endpoint.
type Counts struct {
	Files       int64 `json:"files"`
	Directories int64 `json:"directories"`
	Hashed      int64 `json:"hashed"`
	Thumbed     int64 `json:"thumbed"`
	Watched     int64 `json:"watched"`
	JobsPending int64 `json:"jobsPending"`
	JobsRunning int64 `json:"jobsRunning"`
	JobsDone    int64 `json:"jobsDone"`
	JobsFailed  int64 `json:"jobsFailed"`
}

// BasePriority returns the default priority for a job kind.
func BasePriority(kind JobKind) int {
	switch kind {
	case JobHash:
		return PriorityHash
	case JobThumbnail:
		return PriorityThumbnail
	case JobMetadata:
		return PriorityMetadata
	default:
		return 0
	}
}
