// Package fulfillment turns completed payments into team, roster and
// registration changes.
package fulfillment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoAction means the payment carries no event type and needs no
	// post-processing.
	ErrNoAction = errors.New("payment has no fulfillment action")
	// ErrUnknownAction means the event type is not one we handle.
	ErrUnknownAction = errors.New("unsupported fulfillment action")
	// ErrMissingField means a required identifier was absent after alias
	// normalization.
	ErrMissingField = errors.New("missing required field")
)

// Kind names a fulfillment action. The value is stored on the payment
// outcome.
type Kind string

const (
	KindTeamTransfer           Kind = "team_transfer"
	KindTournamentRegistration Kind = "tournament"
	KindLeagueRegistration     Kind = "league"
	KindTeamRebrand            Kind = "team_rebrand"
	KindRosterChange           Kind = "roster_change"
	KindOnlineIDChange         Kind = "online_id_change"
	KindTeamCreation           Kind = "team_creation"
)

var kindAliases = map[string]Kind{
	"team_transfer":           KindTeamTransfer,
	"tournament":              KindTournamentRegistration,
	"tournament_registration": KindTournamentRegistration,
	"league":                  KindLeagueRegistration,
	"league_registration":     KindLeagueRegistration,
	"team_rebrand":            KindTeamRebrand,
	"roster_change":           KindRosterChange,
	"online_id_change":        KindOnlineIDChange,
	"team_creation":           KindTeamCreation,
}

// Roster operations.
const (
	RosterAdd    = "add"
	RosterRemove = "remove"
)

// Action is one of the concrete action types below.
type Action interface {
	Kind() Kind
	// ChangeRequestID returns the linked change request, or "".
	ChangeRequestID() string
}

type TeamTransfer struct {
	TeamID       string
	NewCaptainID string
	RequestID    string
}

type TournamentRegistration struct {
	TournamentID string
	TeamID       string
}

type LeagueRegistration struct {
	LeagueID string
	TeamID   string
}

type TeamRebrand struct {
	TeamID    string
	NewName   string
	RequestID string
}

type RosterChange struct {
	TeamID    string
	PlayerID  string
	Operation string
	OnlineID  string
	RequestID string
}

type OnlineIDChange struct {
	TeamID    string
	PlayerID  string
	OnlineID  string
	RequestID string
}

type TeamCreation struct {
	TeamName  string
	CaptainID string
	OnlineID  string
	RequestID string
}

func (TeamTransfer) Kind() Kind           { return KindTeamTransfer }
func (TournamentRegistration) Kind() Kind { return KindTournamentRegistration }
func (LeagueRegistration) Kind() Kind     { return KindLeagueRegistration }
func (TeamRebrand) Kind() Kind            { return KindTeamRebrand }
func (RosterChange) Kind() Kind           { return KindRosterChange }
func (OnlineIDChange) Kind() Kind         { return KindOnlineIDChange }
func (TeamCreation) Kind() Kind           { return KindTeamCreation }

func (a TeamTransfer) ChangeRequestID() string         { return a.RequestID }
func (TournamentRegistration) ChangeRequestID() string { return "" }
func (LeagueRegistration) ChangeRequestID() string     { return "" }
func (a TeamRebrand) ChangeRequestID() string          { return a.RequestID }
func (a RosterChange) ChangeRequestID() string         { return a.RequestID }
func (a OnlineIDChange) ChangeRequestID() string       { return a.RequestID }
func (a TeamCreation) ChangeRequestID() string         { return a.RequestID }

// Canonical field names and the aliases accepted for them, in lookup order.
var fieldAliases = map[string][]string{
	"team_id":       {"team_id", "teamId"},
	"player_id":     {"player_id", "playerId", "new_captain_id", "newCaptainId"},
	"captain_id":    {"captain_id", "captainId", "player_id", "playerId"},
	"request_id":    {"request_id", "requestId"},
	"tournament_id": {"event_id", "eventId", "tournament_id", "tournamentId"},
	"league_id":     {"event_id", "eventId", "league_id", "leagueId"},
	"new_name":      {"new_name", "newName", "team_name", "teamName"},
	"online_id":     {"online_id", "onlineId"},
	"operation":     {"operation", "action"},
}

// fields resolves canonical fields from metadata first, then payment details.
type fields struct {
	metadata map[string]any
	details  map[string]any
	missing  []string
}

func (f *fields) optional(name string) string {
	for _, source := range []map[string]any{f.metadata, f.details} {
		for _, alias := range fieldAliases[name] {
			if v := stringValue(source[alias]); v != "" {
				return v
			}
		}
	}
	return ""
}

func (f *fields) required(name string) string {
	v := f.optional(name)
	if v == "" {
		f.missing = append(f.missing, name)
	}
	return v
}

func (f *fields) err(kind Kind) error {
	if len(f.missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s requires %s", ErrMissingField, kind, strings.Join(f.missing, ", "))
}

// Discriminator returns the event type carried by a payment: metadata
// event_type first, then payment_details type.
func Discriminator(metadata, details map[string]any) string {
	if v := stringValue(metadata["event_type"]); v != "" {
		return v
	}
	return stringValue(details["type"])
}

// Normalize maps a payment's metadata and payment details onto a typed
// action. Missing required fields fail with ErrMissingField; nothing is
// defaulted.
func Normalize(metadata, details map[string]any) (Action, error) {
	discriminator := Discriminator(metadata, details)
	if discriminator == "" {
		return nil, ErrNoAction
	}
	kind, ok := kindAliases[strings.ToLower(discriminator)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, discriminator)
	}

	f := &fields{metadata: metadata, details: details}
	var action Action
	switch kind {
	case KindTeamTransfer:
		action = TeamTransfer{
			TeamID:       f.required("team_id"),
			NewCaptainID: f.required("player_id"),
			RequestID:    f.optional("request_id"),
		}
	case KindTournamentRegistration:
		action = TournamentRegistration{
			TournamentID: f.required("tournament_id"),
			TeamID:       f.required("team_id"),
		}
	case KindLeagueRegistration:
		action = LeagueRegistration{
			LeagueID: f.required("league_id"),
			TeamID:   f.required("team_id"),
		}
	case KindTeamRebrand:
		action = TeamRebrand{
			TeamID:    f.required("team_id"),
			NewName:   f.required("new_name"),
			RequestID: f.optional("request_id"),
		}
	case KindRosterChange:
		op := strings.ToLower(f.required("operation"))
		if op != "" && op != RosterAdd && op != RosterRemove {
			return nil, fmt.Errorf("%w: roster operation %q", ErrUnknownAction, op)
		}
		action = RosterChange{
			TeamID:    f.required("team_id"),
			PlayerID:  f.required("player_id"),
			Operation: op,
			OnlineID:  f.optional("online_id"),
			RequestID: f.optional("request_id"),
		}
	case KindOnlineIDChange:
		action = OnlineIDChange{
			TeamID:    f.required("team_id"),
			PlayerID:  f.required("player_id"),
			OnlineID:  f.required("online_id"),
			RequestID: f.optional("request_id"),
		}
	case KindTeamCreation:
		action = TeamCreation{
			TeamName:  f.required("new_name"),
			CaptainID: f.required("captain_id"),
			OnlineID:  f.optional("online_id"),
			RequestID: f.optional("request_id"),
		}
	}

	if err := f.err(kind); err != nil {
		return nil, err
	}
	return action, nil
}

// DecodeObject parses a JSON object column. Empty input yields an empty map.
func DecodeObject(raw string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}
