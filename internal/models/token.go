package models

import (
	"time"

	"github.com/uptrace/bun"
)

type HolderKind string

const (
	HolderCastMember HolderKind = "CAST_MEMBER"
	HolderClass      HolderKind = "CLASS"
)

// InvitationToken grants free seats up to QuotaMax. QuotaUsed only moves
// through the guarded update in the tokens db layer.
type InvitationToken struct {
	bun.BaseModel `bun:"table:invitation_tokens"`

	ID         string     `bun:"id,pk" json:"id"`
	Token      string     `bun:"token,notnull,unique" json:"token"`
	ShowID     string     `bun:"show_id,notnull" json:"show_id"`
	SessionID  string     `bun:"session_id" json:"session_id,omitempty"`
	HolderKind HolderKind `bun:"holder_kind,notnull" json:"holder_kind"`
	HolderName string     `bun:"holder_name" json:"holder_name"`
	MemberID   string     `bun:"member_id" json:"member_id,omitempty"`
	ClassName  string     `bun:"class_name" json:"class_name,omitempty"`
	QuotaMax   int        `bun:"quota_max,notnull" json:"quota_max"`
	QuotaUsed  int        `bun:"quota_used,notnull" json:"quota_used"`
	CreatedAt  time.Time  `bun:"created_at,notnull" json:"created_at"`
}

func (t *InvitationToken) Remaining() int {
	if t.QuotaUsed >= t.QuotaMax {
		return 0
	}
	return t.QuotaMax - t.QuotaUsed
}

func (t *InvitationToken) IsClass() bool {
	return t.HolderKind == HolderClass
}

// TokenValidation is the read-only view returned to a booking form.
type TokenValidation struct {
	Valid              bool   `json:"valid"`
	Reason             string `json:"reason,omitempty"`
	TokenID            string `json:"token_id,omitempty"`
	ShowID             string `json:"show_id,omitempty"`
	RemainingQuota     int    `json:"remaining_quota"`
	SessionRestriction string `json:"session_restriction,omitempty"`
	HolderName         string `json:"holder_name,omitempty"`
	IsClass            bool   `json:"is_class"`
}

const (
	ReasonTokenNotFound  = "TOKEN_NOT_FOUND"
	ReasonQuotaExhausted = "QUOTA_EXHAUSTED"
)
