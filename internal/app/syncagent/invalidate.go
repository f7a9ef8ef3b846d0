package syncagent

import (
	"encoding/json"
)

// InvalidationTable is the explicit, enumerated mapping from event type
// to the cached views the notification makes stale. Resolvers get the raw
// payload so parameterized view names (per event, per user) can be built.
type InvalidationTable map[string]func(data json.RawMessage) []string

// Resolve returns the views invalidated by an event of the given type and
// whether the type is known to this table.
func (t InvalidationTable) Resolve(eventType string, data json.RawMessage) ([]string, bool) {
	f, ok := t[eventType]
	if !ok {
		return nil, false
	}
	return f(data), true
}

// View name builders. Keeping these as functions keeps the same names
// in the table, the cache registrations, and the tests.
func ViewLeaderboard() string { return "leaderboard" }

func ViewEventList() string { return "eventList" }

func ViewAnnouncements() string { return "announcements" }

func ViewEventParticipants(eventID string) string { return "eventParticipants:" + eventID }

func ViewUserDashboard(userID string) string { return "userDashboard:" + userID }

func ViewTeamRoster(teamID string) string { return "teamRoster:" + teamID }

func ViewEventSubmissions(eventID string) string { return "eventSubmissions:" + eventID }

// DefaultInvalidations maps the recognized wire event types to views.
// Unknown types are not listed: the agent logs and ignores them, which is
// what keeps old clients working against newer servers.
func DefaultInvalidations() InvalidationTable {
	return InvalidationTable{
		"new_event": func(json.RawMessage) []string {
			return []string{ViewEventList()}
		},
		"new_registration": func(data json.RawMessage) []string {
			var p struct {
				EventID string `json:"event_id"`
				UserID  string `json:"user_id"`
			}
			if err := json.Unmarshal(data, &p); err != nil || p.EventID == "" {
				return []string{ViewEventList()}
			}
			return []string{
				ViewEventParticipants(p.EventID),
				ViewUserDashboard(p.UserID),
			}
		},
		"team_joined": func(data json.RawMessage) []string {
			var p struct {
				TeamID string `json:"team_id"`
				UserID string `json:"user_id"`
			}
			if err := json.Unmarshal(data, &p); err != nil || p.TeamID == "" {
				return nil
			}
			return []string{
				ViewTeamRoster(p.TeamID),
				ViewUserDashboard(p.UserID),
			}
		},
		"new_submission": func(data json.RawMessage) []string {
			var p struct {
				EventID string `json:"event_id"`
			}
			if err := json.Unmarshal(data, &p); err != nil || p.EventID == "" {
				return nil
			}
			return []string{ViewEventSubmissions(p.EventID)}
		},
		"leaderboard_update": func(json.RawMessage) []string {
			return []string{ViewLeaderboard()}
		},
		"announcement": func(json.RawMessage) []string {
			return []string{ViewAnnouncements()}
		},
	}
}
