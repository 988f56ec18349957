package domain

import (
	"sort"
	"time"
)

// Table is the relation every sink appends to.
const Table = "user_logins"

const (
	FieldDeviceID   = "device_id"
	FieldIP         = "ip"
	FieldAppVersion = "app_version"

	ColumnMaskedDeviceID = "masked_device_id"
	ColumnMaskedIP       = "masked_ip"
	ColumnAppVersion     = "app_version"
	ColumnCreateDate     = "create_date"
)

// RawEvent is a login event as decoded from a queue message body.
type RawEvent map[string]any

// HasRequired reports whether the event carries the keys needed to be ingested.
func (e RawEvent) HasRequired() (string, bool) {
	for _, key := range []string{FieldDeviceID, FieldIP} {
		if _, ok := e[key]; !ok {
			return key, false
		}
	}
	return "", true
}

// NormalizedRow is the persisted shape of a login event.
type NormalizedRow struct {
	MaskedDeviceID string
	MaskedIP       string
	AppVersion     string
	CreateDate     time.Time
	// Extra holds the remaining flattened scalar fields keyed by dotted column name.
	Extra map[string]any
}

var fixedColumns = []string{
	ColumnMaskedDeviceID,
	ColumnMaskedIP,
	ColumnAppVersion,
	ColumnCreateDate,
}

// Value returns the value of the named column and whether the row has it.
func (r NormalizedRow) Value(column string) (any, bool) {
	switch column {
	case ColumnMaskedDeviceID:
		return r.MaskedDeviceID, true
	case ColumnMaskedIP:
		return r.MaskedIP, true
	case ColumnAppVersion:
		return r.AppVersion, true
	case ColumnCreateDate:
		return r.CreateDate, true
	}
	v, ok := r.Extra[column]
	return v, ok
}

// Columns returns the fixed columns followed by the sorted union of extra
// columns across rows.
func Columns(rows []NormalizedRow) []string {
	seen := make(map[string]struct{})
	extra := make([]string, 0)
	for i := range rows {
		for k := range rows[i].Extra {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	columns := make([]string, 0, len(fixedColumns)+len(extra))
	columns = append(columns, fixedColumns...)
	return append(columns, extra...)
}

// Values lays the row out along columns, using nil for columns the row lacks.
func (r NormalizedRow) Values(columns []string) []any {
	values := make([]any, len(columns))
	for i, c := range columns {
		if v, ok := r.Value(c); ok {
			values[i] = v
		}
	}
	return values
}

// QueueMessage is one message received from the queue.
type QueueMessage struct {
	ID            string
	ReceiptHandle string
	Body          string
	Attributes    map[string]string
}

// AckEntry identifies a received message for deletion.
type AckEntry struct {
	ID            string
	ReceiptHandle string
}

// DeleteResult is the queue's answer to a batched delete.
type DeleteResult struct {
	Successful []string
	Failed     []DeleteFailure
}

type DeleteFailure struct {
	ID      string
	Code    string
	Message string
}

// Batch is the unit of work committed and acknowledged together.
type Batch struct {
	Rows    []NormalizedRow
	Entries []AckEntry
	Skipped int
}

func (b Batch) Empty() bool {
	return len(b.Rows) == 0
}

// BatchReport is published once a batch is committed and acknowledged.
type BatchReport struct {
	ID          string    `json:"id"`
	RunID       string    `json:"run_id"`
	Rows        int       `json:"rows"`
	Skipped     int       `json:"skipped"`
	CreateDate  string    `json:"create_date"`
	CommittedAt time.Time `json:"committed_at"`
}
