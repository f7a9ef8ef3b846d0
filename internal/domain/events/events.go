// Package events names the typed change notifications that flow from
// committed writes to the broadcast hub and on to connected clients.
package events

// Wire event types. These are the `type` field of the {type, data} JSON
// frames on the websocket; unknown types are logged and ignored by
// consumers so the set can grow without breaking old clients.
const (
	TypeNewEvent          = "new_event"
	TypeNewRegistration   = "new_registration"
	TypeTeamJoined        = "team_joined"
	TypeNewSubmission     = "new_submission"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeAnnouncement      = "announcement"
)

// RegistrationData is the payload of a new_registration event.
type RegistrationData struct {
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
}

// TeamJoinedData is the payload of a team_joined event.
type TeamJoinedData struct {
	EventID string `json:"event_id"`
	TeamID  string `json:"team_id"`
	UserID  string `json:"user_id"`
}

// SubmissionData is the payload of a new_submission event.
type SubmissionData struct {
	EventID      string `json:"event_id"`
	TeamID       string `json:"team_id"`
	SubmissionID string `json:"submission_id"`
	Round        int    `json:"round"`
}

// LeaderboardData is the payload of a leaderboard_update event. It names
// the user whose delta changed the visible window; clients re-fetch the
// leaderboard rather than applying the payload.
type LeaderboardData struct {
	UserID    string `json:"user_id"`
	NewTotal  int64  `json:"new_total"`
	Reason    string `json:"reason"`
	TopKDirty bool   `json:"top_k_dirty"`
}

// AnnouncementData is the payload of an announcement event.
type AnnouncementData struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
