// Package record builds and serializes the per-file metadata record
// described in spec.md §4.7: identity, provenance, import context,
// classification, related-file links, and a chain-of-custody event list.
package record

import (
	"sort"
	"time"
)

// EventAction is one kind of custody-chain event.
type EventAction string

const (
	EventIngestion                 EventAction = "ingestion"
	EventMessageDigestCalculation  EventAction = "message_digest_calculation"
	EventFixityCheck               EventAction = "fixity_check"
	EventMigration                 EventAction = "migration"
	EventMetadataModification      EventAction = "metadata_modification"
)

// EventOutcome is the result of a custody-chain event.
type EventOutcome string

const (
	OutcomeSuccess EventOutcome = "success"
	OutcomeFailure EventOutcome = "failure"
	OutcomePartial EventOutcome = "partial"
)

// CustodyEvent is one entry in a record's custodyChain.
type CustodyEvent struct {
	EventID        string       `json:"eventId"`
	EventTimestamp time.Time    `json:"eventTimestamp"`
	EventAction    EventAction  `json:"eventAction"`
	EventOutcome   EventOutcome `json:"eventOutcome"`
	EventLocation  string       `json:"eventLocation,omitempty"`
	EventHost      string       `json:"eventHost"`
	EventUser      string       `json:"eventUser"`
	EventTool      string       `json:"eventTool"`
	EventHash      string       `json:"eventHash,omitempty"`
	EventHashAlgorithm string   `json:"eventHashAlgorithm,omitempty"`
	EventNotes     string       `json:"eventNotes,omitempty"`
}

// CopiedCompanion is a preserved side file, optionally inlined by content.
type CopiedCompanion struct {
	SourcePath     string `json:"sourcePath"`
	DestPath       string `json:"destPath"`
	Extension      string `json:"extension"`
	Hash           string `json:"hash"`
	Size           int64  `json:"size"`
	ContentBase64  string `json:"contentBase64,omitempty"`
}

// IngestedCompanion records a companion whose fields were merged into the
// primary record rather than preserved as a separate file.
type IngestedCompanion struct {
	SourcePath string   `json:"sourcePath"`
	Extension  string   `json:"extension"`
	FieldsAdded []string `json:"fieldsAdded"`
}

// SourceDevice optionally describes the originating hardware.
type SourceDevice struct {
	USB        string `json:"usb,omitempty"`
	CardReader string `json:"cardReader,omitempty"`
	Media      string `json:"media,omitempty"`
}

// Record is the full per-file metadata document of spec.md §4.7.
type Record struct {
	SchemaVersion  int       `json:"schemaVersion"`
	SidecarCreated time.Time `json:"sidecarCreated"`
	SidecarUpdated time.Time `json:"sidecarUpdated"`

	ContentHash     string `json:"contentHash"`
	ContentHashFull string `json:"contentHashFull"`
	HashAlgorithm   string `json:"hashAlgorithm"`
	FileSize        int64  `json:"fileSize"`
	Verified        bool   `json:"verified"`

	SourceHash string `json:"sourceHash,omitempty"`
	DestHash   string `json:"destHash,omitempty"`
	HashMatch  *bool  `json:"hashMatch,omitempty"`

	FileCategory     string `json:"fileCategory"`
	DetectedMimeType string `json:"detectedMimeType"`
	DeclaredExtension string `json:"declaredExtension"`

	SourcePath         string `json:"sourcePath"`
	SourceFilename     string `json:"sourceFilename"`
	SourceHost         string `json:"sourceHost"`
	SourceVolume       string `json:"sourceVolume,omitempty"`
	SourceVolumeSerial string `json:"sourceVolumeSerial,omitempty"`
	SourceType         string `json:"sourceType"`
	SourceDevice       *SourceDevice `json:"sourceDevice,omitempty"`

	OriginalMtime time.Time  `json:"originalMtime"`
	OriginalCtime *time.Time `json:"originalCtime,omitempty"`
	OriginalBtime *time.Time `json:"originalBtime,omitempty"`
	OriginalAtime *time.Time `json:"originalAtime,omitempty"`

	ImportTimestamp time.Time `json:"importTimestamp"`
	SessionID       string    `json:"sessionId"`
	ToolVersion     string    `json:"toolVersion"`
	ImportUser      string    `json:"importUser"`
	ImportHost      string    `json:"importHost"`
	ImportPlatform  string    `json:"importPlatform"`
	ImportMethod    string    `json:"importMethod"`

	BatchID       string `json:"batchId,omitempty"`
	BatchName     string `json:"batchName,omitempty"`
	BatchFileCount int   `json:"batchFileCount,omitempty"`
	BatchSequence  int   `json:"batchSequence,omitempty"`

	WasRenamed   bool   `json:"wasRenamed,omitempty"`
	DestFilename string `json:"destFilename,omitempty"`
	RenameReason string `json:"renameReason,omitempty"`

	RelatedFiles  []string `json:"relatedFiles,omitempty"`
	IsPrimaryFile bool     `json:"isPrimaryFile,omitempty"`

	CustodyChain []CustodyEvent `json:"custodyChain"`
	FirstSeen    time.Time      `json:"firstSeen"`
	EventCount   int            `json:"eventCount"`

	RawMetadata map[string]string `json:"rawMetadata,omitempty"`

	Photo    map[string]any `json:"photo,omitempty"`
	Video    map[string]any `json:"video,omitempty"`
	Audio    map[string]any `json:"audio,omitempty"`
	Document map[string]any `json:"document,omitempty"`

	CopiedCompanions   []CopiedCompanion   `json:"copiedCompanions,omitempty"`
	IngestedCompanions []IngestedCompanion `json:"ingestedCompanions,omitempty"`
}

// SchemaVersion is the current record schema version.
const SchemaVersion = 1

// AppendEvent adds an event to the chain, bumps eventCount, and refreshes
// sidecarUpdated — but never sidecarCreated, which is set once at first
// emission and left alone thereafter.
func (r *Record) AppendEvent(e CustodyEvent, now time.Time) {
	r.CustodyChain = append(r.CustodyChain, e)
	r.EventCount = len(r.CustodyChain)
	r.SidecarUpdated = now
	if r.FirstSeen.IsZero() {
		r.FirstSeen = e.EventTimestamp
	}
}

// SetHashMatch records whether source and destination hashes agree. Per the
// spec's contract, this is only ever called once destHash is known (i.e.
// once the copy stage completed), so hashMatch and destHash appear together.
func (r *Record) SetHashMatch(match bool) {
	r.HashMatch = &match
}

// SortRawMetadataKeys returns rawMetadata's keys sorted, for deterministic
// rendering into the XMP envelope.
func (r *Record) SortRawMetadataKeys() []string {
	keys := make([]string, 0, len(r.RawMetadata))
	for k := range r.RawMetadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
