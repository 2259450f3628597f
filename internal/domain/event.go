package domain

import "time"

// EventKind identifies what an Event carries
type EventKind string

const (
	EventProgress    EventKind = "progress"
	EventStatus      EventKind = "status"
	EventThumbnail   EventKind = "thumbnail"
	EventSizeKnown   EventKind = "size_known"
	EventMetadata    EventKind = "metadata"
	EventInitialized EventKind = "initialized"
	EventPhase       EventKind = "phase"
	EventFinished    EventKind = "finished"

	// EventEntry carries an entry snapshot after the coordinator changed it.
	// It only goes to subscribers, never through the worker channel.
	EventEntry EventKind = "entry"
)

// JobPhase is the step a download job is currently in
type JobPhase string

const (
	PhaseResolving   JobPhase = "resolving"
	PhaseDownloading JobPhase = "downloading"
	PhaseTrimming    JobPhase = "trimming"
	PhaseDone        JobPhase = "done"
)

// JobOutcome is how a download job ended
type JobOutcome string

const (
	OutcomeCompleted JobOutcome = "completed"
	OutcomeAborted   JobOutcome = "aborted"
	OutcomeFailed    JobOutcome = "failed"
)

// JobResult is the payload of a finished event
type JobResult struct {
	Outcome  JobOutcome `json:"outcome"`
	Filename string     `json:"filename,omitempty"`
	Trimmed  bool       `json:"trimmed"`
	Err      *JobError  `json:"-"`
	Error    string     `json:"error,omitempty"`
	// Warning is a non-fatal problem on a completed job, such as a trim
	// that could not be applied
	Warning     *JobError `json:"-"`
	WarningText string    `json:"warning,omitempty"`
}

// Event is a message from a background worker to the queue coordinator and
// from there to subscribed clients.
type Event struct {
	Kind      EventKind  `json:"kind"`
	EntryID   string     `json:"entry_id"`
	Percent   int        `json:"percent,omitempty"`
	Text      string     `json:"text,omitempty"`
	Thumbnail []byte     `json:"thumbnail,omitempty"`
	Phase     JobPhase   `json:"phase,omitempty"`
	Media     *MediaInfo `json:"media,omitempty"`
	Result    *JobResult `json:"result,omitempty"`
	Entry     *Entry     `json:"entry,omitempty"`
	Time      time.Time  `json:"time"`
}

// Blocking reports whether the event must not be dropped when the event
// channel is full.
func (e Event) Blocking() bool {
	switch e.Kind {
	case EventMetadata, EventInitialized, EventPhase, EventFinished:
		return true
	}
	return false
}
