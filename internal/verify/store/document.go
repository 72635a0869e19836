package store

import (
	"github.com/MonkeyBytes-Hosting/M.B.OAuth/internal/verify/types"
)

// Document is the persisted on-disk layout: one JSON object holding the
// three per-state maps plus the running statistics.  The map keys mirror the
// original database file, so an existing document loads unchanged.
type Document struct {
	Pending    map[string]types.UserRecord `json:"pendingApprovals"`
	Verified   map[string]types.UserRecord `json:"verifiedUsers"`
	Revoked    map[string]types.UserRecord `json:"deauthorizedUsers"`
	Statistics types.Statistics            `json:"statistics"`
}

// NewDocument returns an empty document with all maps allocated.
func NewDocument() Document {
	return Document{
		Pending:  make(map[string]types.UserRecord),
		Verified: make(map[string]types.UserRecord),
		Revoked:  make(map[string]types.UserRecord),
		Statistics: types.Statistics{
			VerificationsByDay: make(map[string]int),
		},
	}
}

// normalize allocates any maps a hand-edited or partial document left nil.
func (d *Document) normalize() {
	if d.Pending == nil {
		d.Pending = make(map[string]types.UserRecord)
	}
	if d.Verified == nil {
		d.Verified = make(map[string]types.UserRecord)
	}
	if d.Revoked == nil {
		d.Revoked = make(map[string]types.UserRecord)
	}
	if d.Statistics.VerificationsByDay == nil {
		d.Statistics.VerificationsByDay = make(map[string]int)
	}
}
