package models

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleOfficer Role = "officer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleOfficer
}

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserInactive
}

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	BadgeNumber  *string    `json:"badge_number,omitempty"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Identity is the authenticated caller as resolved from a session token.
type Identity struct {
	UserID string
	Name   string
	Email  string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

func IdentityOf(u User) Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type EvidenceStatus string

const (
	EvidenceActive   EvidenceStatus = "active"
	EvidenceArchived EvidenceStatus = "archived"
	EvidenceDeleted  EvidenceStatus = "deleted"
)

type Evidence struct {
	ID               string         `json:"id"`
	CaseNumber       string         `json:"case_number"`
	FileName         string         `json:"file_name"`
	OriginalFileName string         `json:"original_file_name"`
	FilePath         string         `json:"-"`
	FileSize         int64          `json:"file_size"`
	FileType         string         `json:"file_type"`
	Description      *string        `json:"description,omitempty"`
	Encrypted        bool           `json:"encrypted"`
	OfficerID        string         `json:"officer_id"`
	OfficerName      string         `json:"officer_name,omitempty"`
	OfficerBadge     *string        `json:"officer_badge,omitempty"`
	Status           EvidenceStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type EvidenceQuery struct {
	CaseNumber string
	OfficerID  string
}

// Action verbs recorded in the audit trail.
const (
	ActionUpload          = "UPLOAD"
	ActionDownload        = "DOWNLOAD"
	ActionEncrypt         = "ENCRYPT"
	ActionDecrypt         = "DECRYPT"
	ActionDelete          = "DELETE"
	ActionUserCreated     = "USER_CREATED"
	ActionUserUpdated     = "USER_UPDATED"
	ActionPasswordReset   = "PASSWORD_RESET"
	ActionPasswordChanged = "PASSWORD_CHANGED"
	ActionUserDeleted     = "USER_DELETED"
)

const (
	ScopeUser     = "user"
	ScopeEvidence = "evidence"
)

// AuditEntry is one immutable row of the audit trail. The user fields are a
// snapshot taken when the entry was written: the subject account for user
// actions and the acting account for evidence actions.
type AuditEntry struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	ActorID    string    `json:"actor_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	UserRole   Role      `json:"user_role"`
	EvidenceID *string   `json:"evidence_id,omitempty"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
}

type AuditQuery struct {
	Scope  string
	Action string
	UserID string
	Limit  int
	Offset int
}

type Stats struct {
	Users struct {
		Active int `json:"active"`
	} `json:"users"`
	Evidence struct {
		Total     int `json:"total"`
		Encrypted int `json:"encrypted"`
		Recent    int `json:"recent"`
	} `json:"evidence"`
	Logs struct {
		Total    int `json:"total"`
		User     int `json:"user"`
		Evidence int `json:"evidence"`
	} `json:"logs"`
}
