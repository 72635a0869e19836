package types

import "time"

// AccessState is the lifecycle state of a tracked user.  A user occupies
// exactly one state at a time; Revoked records are historical tombstones and
// may coexist with a later Pending/Verified record for the same id.
type AccessState string

const (
	StatePending  AccessState = "pending"
	StateVerified AccessState = "verified"
	StateRevoked  AccessState = "revoked"
)

// Profile is the identity snapshot captured from the OAuth callback or from
// a live membership lookup.  All fields except ID are optional.
type Profile struct {
	ID            string  `json:"id"`
	Username      string  `json:"username,omitempty"`
	Discriminator string  `json:"discriminator,omitempty"`
	GlobalName    string  `json:"globalName,omitempty"`
	Email         *string `json:"email,omitempty"`
	Avatar        string  `json:"avatar,omitempty"`
}

// UserRecord is the canonical per-id record.  State is carried in memory
// only — on disk the record's state is implied by which document map it
// lives in (see store.Document).
type UserRecord struct {
	ID    string      `json:"id"`
	State AccessState `json:"-"`

	Username      string  `json:"username,omitempty"`
	Discriminator string  `json:"discriminator,omitempty"`
	GlobalName    string  `json:"globalName,omitempty"`
	Email         *string `json:"email,omitempty"`
	Avatar        string  `json:"avatar,omitempty"`

	// AccessToken is retained on Pending records only, so approval can use
	// the OAuth guilds.join path.  It is dropped on promote.
	AccessToken string `json:"accessToken,omitempty"`

	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	VerifiedAt  *time.Time `json:"verifiedAt,omitempty"`
	ApprovedBy  string     `json:"approvedBy,omitempty"`

	DeauthorizedAt *time.Time `json:"deauthorizedAt,omitempty"`
	DeauthorizedBy string     `json:"deauthorizedBy,omitempty"`
	Reason         string     `json:"deauthorizationReason,omitempty"`
}

// Profile returns the identity snapshot portion of the record.
func (r UserRecord) Profile() Profile {
	return Profile{
		ID:            r.ID,
		Username:      r.Username,
		Discriminator: r.Discriminator,
		GlobalName:    r.GlobalName,
		Email:         r.Email,
		Avatar:        r.Avatar,
	}
}

// Statistics are running counters updated transactionally with the record
// mutation that causes them — never recomputed by scanning records.
type Statistics struct {
	TotalVerified      int            `json:"totalVerified"`
	TotalDeauths       int            `json:"totalDeauths"`
	VerificationsByDay map[string]int `json:"verificationsByDay"`
}

// Clone returns a deep copy safe to hand to callers.
func (s Statistics) Clone() Statistics {
	out := s
	out.VerificationsByDay = make(map[string]int, len(s.VerificationsByDay))
	for day, n := range s.VerificationsByDay {
		out.VerificationsByDay[day] = n
	}
	return out
}

// DayKey is the bucket key used by VerificationsByDay.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
