// Package models - wire message types exchanged with the session server.
// File: models/messages.go
package models

// MessageKind tags every frame on the session channel. The set is closed:
// the router switches exhaustively over these values and ignores anything
// else for forward compatibility.
type MessageKind string

// Inbound kinds (server -> client).
const (
	KindJoinSuccess       MessageKind = "join_success"
	KindJoinError         MessageKind = "join_error"
	KindError             MessageKind = "error"
	KindShowResults       MessageKind = "show_results"
	KindResetForNextLift  MessageKind = "reset_for_next_lift"
	KindTimerStart        MessageKind = "timer_start"
	KindTimerReset        MessageKind = "timer_reset"
	KindSessionEnded      MessageKind = "session_ended"
	KindSettingsUpdate    MessageKind = "settings_update"
	KindServerRestarting  MessageKind = "server_restarting"
	KindJudgeStatusUpdate MessageKind = "judge_status_update"
)

// Outbound kinds (client -> server).
const (
	KindJoin                MessageKind = "join"
	KindVoteLock            MessageKind = "vote_lock"
	KindNextLift            MessageKind = "next_lift"
	KindEndSessionConfirmed MessageKind = "end_session_confirmed"
)

// ----------------------- inbound payloads -----------------------

// JudgeSnapshot is one judge's state inside a session snapshot.
type JudgeSnapshot struct {
	Connected     bool       `json:"connected"`
	Locked        bool       `json:"locked"`
	CurrentVote   *VoteColor `json:"current_vote"`
	CurrentReason *string    `json:"current_reason"`
}

// SessionSnapshot is the authoritative session state sent on join_success.
// It fully supersedes whatever the client guessed locally.
type SessionSnapshot struct {
	Name            string                           `json:"name"`
	Settings        Settings                         `json:"settings"`
	TimeRemainingMs int64                            `json:"time_remaining_ms"`
	Judges          map[JudgePosition]*JudgeSnapshot `json:"judges,omitempty"`
}

// InboundMessage is the decoded form of every server -> client frame.
// The messages on the wire are flat tagged objects, so one struct with
// optional fields covers all kinds; which fields are meaningful depends
// on Type.
type InboundMessage struct {
	Type MessageKind `json:"type"`

	// join_success
	IsHead         bool             `json:"is_head,omitempty"`
	SessionState   *SessionSnapshot `json:"session_state,omitempty"`
	ReconnectToken string           `json:"reconnect_token,omitempty"`

	// join_error, error
	Message string `json:"message,omitempty"`

	// show_results
	Votes   map[JudgePosition]*VoteColor `json:"votes,omitempty"`
	Reasons map[JudgePosition]*string    `json:"reasons,omitempty"`

	// show_results and settings_update carry these camel-cased; pointers
	// distinguish "absent" from "false"/"" for partial settings updates.
	ShowExplanations *bool   `json:"showExplanations,omitempty"`
	LiftType         *string `json:"liftType,omitempty"`
	RequireReasons   *bool   `json:"requireReasons,omitempty"`

	// timer_start
	TimeRemainingMs int64 `json:"time_remaining_ms,omitempty"`

	// judge_status_update
	Position  JudgePosition `json:"position,omitempty"`
	Connected bool          `json:"connected"`
}

// ----------------------- outbound payloads -----------------------

// JoinMessage asks the server to bind this client to a session role.
type JoinMessage struct {
	Type           MessageKind `json:"type"`
	SessionCode    string      `json:"session_code"`
	Role           Role        `json:"role"`
	ReconnectToken string      `json:"reconnect_token,omitempty"`
}

// VoteLockMessage submits a locked verdict. Reason is null for white.
type VoteLockMessage struct {
	Type   MessageKind `json:"type"`
	Color  VoteColor   `json:"color"`
	Reason *string     `json:"reason"`
}

// SettingsUpdateMessage broadcasts the head judge's settings.
type SettingsUpdateMessage struct {
	Type             MessageKind `json:"type"`
	ShowExplanations bool        `json:"showExplanations"`
	LiftType         string      `json:"liftType"`
	RequireReasons   bool        `json:"requireReasons"`
}

// SimpleMessage covers the outbound kinds that carry no payload:
// timer_start, timer_reset, next_lift, end_session_confirmed.
type SimpleMessage struct {
	Type MessageKind `json:"type"`
}
