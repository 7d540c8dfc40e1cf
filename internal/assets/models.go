package assets

import (
	"strings"
	"time"
)

// Status represents the delivery lifecycle of an asset.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusUploaded,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Asset represents one captured media item persisted in SQLite.
//
// Payload fields (Filename through Username) are written once at creation and
// never mutated by the upload engine. ServerID is set only on the transition
// into StatusUploaded. LastAttemptAt is set whenever the asset moves into
// StatusUploading and is used to detect items stuck after a crash.
type Asset struct {
	ID            int64
	ClientKey     string
	Filename      string
	MimeType      string
	CapturedAt    time.Time
	Latitude      *float64
	Longitude     *float64
	URI           string
	SizeBytes     int64
	Category      string
	UserID        *int64
	Username      string
	Status        Status
	Retries       int
	ServerID      string
	LastAttemptAt *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsTerminal reports whether the asset is in a state the engine will not
// pick up without an explicit reset.
func (a Asset) IsTerminal() bool {
	return a.Status == StatusUploaded || a.Status == StatusFailed
}

// Eligible reports whether the asset competes for batch reservation given
// the configured retry cap.
func (a Asset) Eligible(maxRetries int) bool {
	if a.Status == StatusPending {
		return true
	}
	return a.Status == StatusFailed && a.Retries < maxRetries
}

// HealthSummary describes aggregated asset counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Uploading int
	Uploaded  int
	Failed    int
}

// NewAssetParams carries the immutable payload for a freshly captured asset.
type NewAssetParams struct {
	Filename   string
	MimeType   string
	CapturedAt time.Time
	Latitude   *float64
	Longitude  *float64
	URI        string
	SizeBytes  int64
	Category   string
	UserID     *int64
	Username   string
}
