package mailman

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Action is a moderation decision. The server is authoritative about which
// values it accepts.
type Action string

// Moderation actions
const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionDiscard Action = "discard"
	ActionDefer   Action = "defer"
)

// String returns the action name
func (a Action) String() string {
	return string(a)
}

// ParseAction normalizes an action name. It returns false for names outside
// the four known actions; callers may still send them.
func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionAccept, ActionReject, ActionDiscard, ActionDefer:
		return a, true
	default:
		return a, false
	}
}

// Roles a member can hold on a list
const (
	RoleMember    = "member"
	RoleOwner     = "owner"
	RoleModerator = "moderator"
	RoleNonmember = "nonmember"
)

// ID is an identifier the server sends either as a JSON string or a number.
type ID string

// UnmarshalJSON accepts both strings and numbers
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Property names each resource type declares
var (
	domainProperties = []string{"alias_domain", "description", "mail_host", "self_link"}

	listProperties = []string{
		"display_name", "fqdn_listname", "list_id", "list_name",
		"mail_host", "member_count", "volume", "self_link",
	}

	memberProperties = []string{
		"address", "delivery_mode", "display_name", "email", "list_id",
		"member_id", "moderation_action", "role", "self_link",
		"subscription_mode", "user",
	}

	heldMessageProperties = []string{
		"hold_date", "message_id", "msg", "reason", "request_id",
		"self_link", "sender", "subject", "type",
	}

	banProperties = []string{"email", "list_id", "self_link"}

	headerMatchProperties = []string{"action", "header", "pattern", "position", "self_link", "tag"}
)

// DomainInfo is the representation of a domain
type DomainInfo struct {
	AliasDomain string `json:"alias_domain"`
	Description string `json:"description"`
	MailHost    string `json:"mail_host"`
	SelfLink    string `json:"self_link"`
}

// ListInfo is the representation of a mailing list
type ListInfo struct {
	DisplayName  string `json:"display_name"`
	FQDNListname string `json:"fqdn_listname"`
	ListID       string `json:"list_id"`
	ListName     string `json:"list_name"`
	MailHost     string `json:"mail_host"`
	MemberCount  int    `json:"member_count"`
	Volume       int    `json:"volume"`
	SelfLink     string `json:"self_link"`
}

// FilterFields exposes the list to filter expressions
func (l ListInfo) FilterFields() map[string]any {
	return map[string]any{
		"display_name":  l.DisplayName,
		"fqdn_listname": l.FQDNListname,
		"list_id":       l.ListID,
		"list_name":     l.ListName,
		"mail_host":     l.MailHost,
		"member_count":  l.MemberCount,
		"volume":        l.Volume,
	}
}

// MemberInfo is the representation of a membership
type MemberInfo struct {
	Address          string `json:"address"`
	DeliveryMode     string `json:"delivery_mode"`
	DisplayName      string `json:"display_name"`
	Email            string `json:"email"`
	ListID           string `json:"list_id"`
	MemberID         ID     `json:"member_id"`
	ModerationAction string `json:"moderation_action"`
	Role             string `json:"role"`
	SelfLink         string `json:"self_link"`
	SubscriptionMode string `json:"subscription_mode"`
	User             string `json:"user"`
}

// FilterFields exposes the member to filter expressions
func (m MemberInfo) FilterFields() map[string]any {
	return map[string]any{
		"address":           m.Address,
		"email":             m.Email,
		"display_name":      m.DisplayName,
		"delivery_mode":     m.DeliveryMode,
		"list_id":           m.ListID,
		"member_id":         string(m.MemberID),
		"moderation_action": m.ModerationAction,
		"role":              m.Role,
		"subscription_mode": m.SubscriptionMode,
		"user":              m.User,
	}
}

// HeldMessageInfo is the representation of a held message
type HeldMessageInfo struct {
	HoldDate  string `json:"hold_date"`
	MessageID string `json:"message_id"`
	Msg       string `json:"msg"`
	Reason    string `json:"reason"`
	RequestID int    `json:"request_id"`
	SelfLink  string `json:"self_link"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Type      string `json:"type"`
}

// HeldAt parses HoldDate. The zero time is returned if it cannot be parsed.
func (h HeldMessageInfo) HeldAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, h.HoldDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FilterFields exposes the held message to filter expressions
func (h HeldMessageInfo) FilterFields() map[string]any {
	// an unreadable date is nil so that no date comparison matches it
	var holdDate any
	if t := h.HeldAt(); !t.IsZero() {
		holdDate = t
	}
	return map[string]any{
		"hold_date":  holdDate,
		"message_id": h.MessageID,
		"msg":        h.Msg,
		"reason":     h.Reason,
		"request_id": h.RequestID,
		"sender":     h.Sender,
		"subject":    h.Subject,
		"type":       h.Type,
	}
}

// BanInfo is the representation of a banned address
type BanInfo struct {
	Email    string `json:"email"`
	ListID   string `json:"list_id"`
	SelfLink string `json:"self_link"`
}

// HeaderMatchInfo is the representation of a header-match rule
type HeaderMatchInfo struct {
	Action   string `json:"action"`
	Header   string `json:"header"`
	Pattern  string `json:"pattern"`
	Position int    `json:"position"`
	SelfLink string `json:"self_link"`
	Tag      string `json:"tag"`
}

// SubscriptionRequest is a pending subscription awaiting moderation
type SubscriptionRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	TokenOwner  string `json:"token_owner"`
	ListID      string `json:"list_id"`
	RequestDate string `json:"request_date"`
	DisplayName string `json:"display_name,omitempty"`
}
