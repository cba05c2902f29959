// Package job holds the job model and the persistent job store.
package job

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Status is the lifecycle state of a job.
type Status string

// Job lifecycle states. Analysis walks the pipeline states in order and
// parks at StatusAwaitingVoices until voices are assigned; every workflow
// terminates in StatusCompleted or StatusFailed.
const (
	StatusPending         Status = "pending"
	StatusExtractingAudio Status = "extracting_audio"
	StatusSeparating      Status = "separating"
	StatusDiarizing       Status = "diarizing"
	StatusTranscribing    Status = "transcribing"
	StatusAwaitingVoices  Status = "awaiting_voice_assignment"
	StatusGenerating      Status = "generating_speech"
	StatusAligning        Status = "aligning"
	StatusMerging         Status = "merging"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
)

// Terminal reports whether no further state changes can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InputKind classifies what a job was created from.
type InputKind string

const (
	InputAudio InputKind = "audio"
	InputVideo InputKind = "video"
	InputText  InputKind = "text"
)

// Segment is one diarized speech span with its transcription.
type Segment struct {
	SpeakerID string  `json:"speaker_id"`
	Start     float64 `json:"start_time"`
	End       float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Speaker is one detected voice in the input, with its optional assigned
// replacement reference.
type Speaker struct {
	ID            string  `json:"speaker_id"`
	Label         string  `json:"label"`
	SegmentCount  int     `json:"segment_count"`
	TotalDuration float64 `json:"total_duration"`
	VoiceRef      string  `json:"assigned_voice_ref,omitempty"`
}

// Job is the full persisted state of one unit of work.
type Job struct {
	ID            string    `json:"job_id"`
	Status        Status    `json:"status"`
	InputKind     InputKind `json:"input_kind"`
	InputFilename string    `json:"input_filename,omitempty"`
	Speakers      []Speaker `json:"speakers,omitempty"`
	Segments      []Segment `json:"segments,omitempty"`
	Progress      float64   `json:"progress"`
	Error         string    `json:"error,omitempty"`
	OutputFile    string    `json:"output_file,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy, so callers can hand jobs out of the store
// without exposing shared slices to concurrent mutation.
func (j *Job) Clone() *Job {
	c := *j
	if j.Speakers != nil {
		c.Speakers = make([]Speaker, len(j.Speakers))
		copy(c.Speakers, j.Speakers)
	}
	if j.Segments != nil {
		c.Segments = make([]Segment, len(j.Segments))
		copy(c.Segments, j.Segments)
	}
	return &c
}

// NewID returns a fresh 12-character lowercase hex identifier, used for
// jobs and voice profiles alike.
func NewID() string {
	var b [6]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
