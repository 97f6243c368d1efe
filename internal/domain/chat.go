package domain

import "time"

type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Valid reports whether r is one of the known transcript roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleBot
}

// ChatMessage is a single transcript entry. TS is epoch milliseconds.
type ChatMessage struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// TranscriptEntry is the payload persisted to the transcript store.
type TranscriptEntry struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	TS        int64  `json:"ts"`
}

type Handoff struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

type CallStep int

const (
	StepIdle CallStep = iota
	StepAwaitingLanguage
	StepAwaitingPhone
)

func (s CallStep) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepAwaitingLanguage:
		return "awaiting_language"
	case StepAwaitingPhone:
		return "awaiting_phone"
	default:
		return "unknown"
	}
}

// CallFlowState tracks the callback request dialogue for one user.
type CallFlowState struct {
	Step     CallStep `json:"step"`
	Language string   `json:"language,omitempty"`
	Number   string   `json:"number,omitempty"`
}
