package types

import "time"

// Priority orders File Tasks in the scan scheduler's dispatch queue.
// Lower numeric value dispatches first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBackground
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// FileTask is one pending per-file work item discovered during enumeration.
type FileTask struct {
	Path       string
	Priority   Priority
	RetryCount int
	EnqueuedAt time.Time

	// seq breaks ties between equal-priority tasks in enqueue order,
	// giving the priority queue stable ordering (spec §4.6).
	seq uint64
}

// Seq returns the task's enqueue sequence number, used only for stable
// priority-queue tie-breaking.
func (t *FileTask) Seq() uint64 { return t.seq }

// SetSeq is called exactly once by the scheduler when a task is enqueued.
func (t *FileTask) SetSeq(n uint64) { t.seq = n }

// FileKind is the coarse classification used both for default priority
// assignment and for the scan.filter configuration option.
type FileKind string

const (
	KindExecutable FileKind = "executable"
	KindDocument   FileKind = "document"
	KindMedia      FileKind = "media"
	KindArchive    FileKind = "archive"
	KindTemp       FileKind = "temp"
	KindOther      FileKind = "other"
)

// FileKindFilter selects which kinds an enumeration pass keeps.
type FileKindFilter string

const (
	FilterAll         FileKindFilter = "all"
	FilterExecutables FileKindFilter = "executables"
	FilterDocuments   FileKindFilter = "documents"
	FilterArchives    FileKindFilter = "archives"
)

// Matches reports whether kind passes this filter.
func (f FileKindFilter) Matches(kind FileKind) bool {
	switch f {
	case "", FilterAll:
		return true
	case FilterExecutables:
		return kind == KindExecutable
	case FilterDocuments:
		return kind == KindDocument
	case FilterArchives:
		return kind == KindArchive
	default:
		return true
	}
}
