package mailman

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/s0up4200/mailmanctl/restbase"
)

// MailingList is a proxy for a mailing list
type MailingList struct {
	*restbase.Resource[ListInfo]
	settings *restbase.Settings
}

func newMailingList(conn *restbase.Connection, url string, entry map[string]any) *MailingList {
	return &MailingList{Resource: restbase.NewResource[ListInfo](conn, "MailingList", url, listProperties, entry)}
}

// String never fetches; an unloaded list prints its URL.
func (l *MailingList) String() string {
	if v, ok := l.Peek("fqdn_listname"); ok {
		if fqdn, _ := v.(string); fqdn != "" {
			return fmt.Sprintf("<List %q>", fqdn)
		}
	}
	return fmt.Sprintf("<List %s>", l.URL())
}

// path builds lists/<fqdn_listname>/<rest> or lists/<list_id>/<rest>.
// The server addresses different sub-resources by different list keys.
func (l *MailingList) path(ctx context.Context, byListID bool, rest ...string) (string, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return "", err
	}
	key := info.FQDNListname
	if byListID {
		key = info.ListID
	}
	p := "lists/" + url.PathEscape(key)
	for _, segment := range rest {
		p += "/" + url.PathEscape(segment)
	}
	return p, nil
}

func (l *MailingList) rosterEmails(ctx context.Context, role string) ([]string, error) {
	entries, err := fetchEntries(ctx, l.Connection(), l.URL()+"/roster/"+role, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s roster: %w", role, err)
	}
	emails := make([]string, 0, len(entries))
	for _, entry := range entries {
		emails = append(emails, restbase.StringField(entry, "email"))
	}
	return emails, nil
}

// Owners returns the owner email addresses
func (l *MailingList) Owners(ctx context.Context) ([]string, error) {
	return l.rosterEmails(ctx, RoleOwner)
}

// Moderators returns the moderator email addresses
func (l *MailingList) Moderators(ctx context.Context) ([]string, error) {
	return l.rosterEmails(ctx, RoleModerator)
}

// Members returns the member roster sorted by address
func (l *MailingList) Members(ctx context.Context) ([]*Member, error) {
	path, err := l.path(ctx, false, "roster", RoleMember)
	if err != nil {
		return nil, err
	}
	entries, err := fetchEntries(ctx, l.Connection(), path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	sortByAddress(entries)
	return toMembers(l.Connection(), entries), nil
}

// Nonmembers returns the nonmember records sorted by address
func (l *MailingList) Nonmembers(ctx context.Context) ([]*Member, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := fetchEntries(ctx, l.Connection(), "members/find", restbase.Data{
		"role":    RoleNonmember,
		"list_id": info.ListID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get nonmembers: %w", err)
	}
	sortByAddress(entries)
	return toMembers(l.Connection(), entries), nil
}

// MemberPage returns one page of the member roster
func (l *MailingList) MemberPage(ctx context.Context, count, page int) (*restbase.Page[*Member], error) {
	path, err := l.path(ctx, false, "roster", RoleMember)
	if err != nil {
		return nil, err
	}
	return restbase.NewPage(l.Connection(), path, count, page, newMember), nil
}

func (l *MailingList) findOptions(ctx context.Context, address, role string) (FindOptions, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return FindOptions{}, err
	}
	if role == "" {
		role = RoleMember
	}
	return FindOptions{Subscriber: address, Role: role, ListID: info.ListID}, nil
}

// FindMembers searches this list for address in role. An empty role means member.
func (l *MailingList) FindMembers(ctx context.Context, address, role string) ([]*Member, error) {
	opts, err := l.findOptions(ctx, address, role)
	if err != nil {
		return nil, err
	}
	return findMembers(ctx, l.Connection(), opts)
}

// FindMemberPage is the paginated form of FindMembers
func (l *MailingList) FindMemberPage(ctx context.Context, address, role string, count, page int) (*restbase.Page[*Member], error) {
	opts, err := l.findOptions(ctx, address, role)
	if err != nil {
		return nil, err
	}
	return restbase.NewPage(l.Connection(), "members/find?"+opts.query(), count, page, newMember), nil
}

// Settings returns the list configuration. The same view is returned on
// every call so unsaved changes are kept.
func (l *MailingList) Settings(ctx context.Context) (*restbase.Settings, error) {
	if l.settings != nil {
		return l.settings, nil
	}
	path, err := l.path(ctx, false, "config")
	if err != nil {
		return nil, err
	}
	l.settings = restbase.NewSettings(l.Connection(), path)
	return l.settings, nil
}

// Held returns the messages held for moderation
func (l *MailingList) Held(ctx context.Context) ([]*HeldMessage, error) {
	path, err := l.path(ctx, false, "held")
	if err != nil {
		return nil, err
	}
	held, err := restbase.Collect(ctx, l.Connection(), path, newHeldMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to get held messages: %w", err)
	}
	return held, nil
}

// HeldPage returns one page of held messages
func (l *MailingList) HeldPage(ctx context.Context, count, page int) (*restbase.Page[*HeldMessage], error) {
	path, err := l.path(ctx, false, "held")
	if err != nil {
		return nil, err
	}
	return restbase.NewPage(l.Connection(), path, count, page, newHeldMessage), nil
}

// HeldMessage returns an unloaded proxy for one held message
func (l *MailingList) HeldMessage(ctx context.Context, requestID int) (*HeldMessage, error) {
	path, err := l.path(ctx, false, "held", strconv.Itoa(requestID))
	if err != nil {
		return nil, err
	}
	target, err := l.Connection().Resolve(path)
	if err != nil {
		return nil, err
	}
	return newHeldMessage(l.Connection(), target, nil), nil
}

// ModerateMessage applies action to a held message
func (l *MailingList) ModerateMessage(ctx context.Context, requestID int, action Action) (*restbase.Response, error) {
	path, err := l.path(ctx, false, "held", strconv.Itoa(requestID))
	if err != nil {
		return nil, err
	}
	resp, _, err := l.Connection().Call(ctx, path, restbase.Data{"action": action.String()}, http.MethodPost)
	if err != nil {
		return nil, fmt.Errorf("failed to %s held message %d: %w", action, requestID, err)
	}
	return resp, nil
}

// AcceptMessage accepts a held message
func (l *MailingList) AcceptMessage(ctx context.Context, requestID int) (*restbase.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionAccept)
}

// RejectMessage rejects a held message, notifying the sender
func (l *MailingList) RejectMessage(ctx context.Context, requestID int) (*restbase.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionReject)
}

// DiscardMessage discards a held message silently
func (l *MailingList) DiscardMessage(ctx context.Context, requestID int) (*restbase.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionDiscard)
}

// DeferMessage leaves a held message for later
func (l *MailingList) DeferMessage(ctx context.Context, requestID int) (*restbase.Response, error) {
	return l.ModerateMessage(ctx, requestID, ActionDefer)
}

// Requests returns the pending subscription requests
func (l *MailingList) Requests(ctx context.Context) ([]SubscriptionRequest, error) {
	path, err := l.path(ctx, false, "requests")
	if err != nil {
		return nil, err
	}
	entries, err := fetchEntries(ctx, l.Connection(), path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription requests: %w", err)
	}

	requests := make([]SubscriptionRequest, 0, len(entries))
	for _, entry := range entries {
		requests = append(requests, SubscriptionRequest{
			Email:       restbase.StringField(entry, "email"),
			Token:       restbase.StringField(entry, "token"),
			TokenOwner:  restbase.StringField(entry, "token_owner"),
			ListID:      restbase.StringField(entry, "list_id"),
			RequestDate: restbase.StringField(entry, "when"),
			DisplayName: restbase.StringField(entry, "display_name"),
		})
	}
	return requests, nil
}

// ModerateRequest applies action to a subscription request identified by its token
func (l *MailingList) ModerateRequest(ctx context.Context, token string, action Action) (*restbase.Response, error) {
	path, err := l.path(ctx, true, "requests", token)
	if err != nil {
		return nil, err
	}
	resp, _, err := l.Connection().Call(ctx, path, restbase.Data{"action": action.String()}, "")
	if err != nil {
		return nil, fmt.Errorf("failed to %s request %s: %w", action, token, err)
	}
	return resp, nil
}

// AcceptRequest accepts a subscription request
func (l *MailingList) AcceptRequest(ctx context.Context, token string) (*restbase.Response, error) {
	return l.ModerateRequest(ctx, token, ActionAccept)
}

// RejectRequest rejects a subscription request
func (l *MailingList) RejectRequest(ctx context.Context, token string) (*restbase.Response, error) {
	return l.ModerateRequest(ctx, token, ActionReject)
}

// DiscardRequest discards a subscription request
func (l *MailingList) DiscardRequest(ctx context.Context, token string) (*restbase.Response, error) {
	return l.ModerateRequest(ctx, token, ActionDiscard)
}

// DeferRequest defers a subscription request
func (l *MailingList) DeferRequest(ctx context.Context, token string) (*restbase.Response, error) {
	return l.ModerateRequest(ctx, token, ActionDefer)
}

// AddRole gives address the role on this list
func (l *MailingList) AddRole(ctx context.Context, role, address string) error {
	info, err := l.Info(ctx)
	if err != nil {
		return err
	}
	data := restbase.Data{
		"list_id":    info.ListID,
		"subscriber": address,
		"role":       role,
	}
	if _, _, err := l.Connection().Call(ctx, "members", data, ""); err != nil {
		return fmt.Errorf("failed to add %s %s: %w", role, address, err)
	}
	return nil
}

// AddOwner makes address an owner
func (l *MailingList) AddOwner(ctx context.Context, address string) error {
	return l.AddRole(ctx, RoleOwner, address)
}

// AddModerator makes address a moderator
func (l *MailingList) AddModerator(ctx context.Context, address string) error {
	return l.AddRole(ctx, RoleModerator, address)
}

// RemoveRole takes the role away from address
func (l *MailingList) RemoveRole(ctx context.Context, role, address string) error {
	path, err := l.path(ctx, false, role, address)
	if err != nil {
		return err
	}
	if _, _, err := l.Connection().Call(ctx, path, nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to remove %s %s: %w", role, address, err)
	}
	return nil
}

// RemoveOwner removes an owner
func (l *MailingList) RemoveOwner(ctx context.Context, address string) error {
	return l.RemoveRole(ctx, RoleOwner, address)
}

// RemoveModerator removes a moderator
func (l *MailingList) RemoveModerator(ctx context.Context, address string) error {
	return l.RemoveRole(ctx, RoleModerator, address)
}

// notAMember relabels a 404 as *NotAMemberError; other errors pass through.
func notAMember(err error, address, list string) error {
	var httpErr *restbase.HTTPError
	if errors.As(err, &httpErr) && httpErr.IsNotFound() {
		return &NotAMemberError{Address: address, List: list, Err: err}
	}
	return err
}

// GetMember returns the membership of email on this list
func (l *MailingList) GetMember(ctx context.Context, email string) (*Member, error) {
	path, err := l.path(ctx, true, "member", email)
	if err != nil {
		return nil, err
	}
	resp, content, err := l.Connection().CallObject(ctx, path, nil, "")
	if err != nil {
		info, _ := l.Cached()
		return nil, notAMember(err, email, info.FQDNListname)
	}
	return newMember(l.Connection(), selfLink(content, resp.URL), content), nil
}

// SubscribeOptions are the optional flags of a subscription. False flags
// are not sent.
type SubscribeOptions struct {
	DisplayName  string
	PreVerified  bool
	PreConfirmed bool
	PreApproved  bool
}

// SubscribeResult is either an immediate membership or a pending
// subscription awaiting verification, confirmation or approval.
type SubscribeResult struct {
	Member  *Member
	Pending map[string]any
}

// IsPending reports whether the subscription still needs action
func (r SubscribeResult) IsPending() bool {
	return r.Member == nil
}

// Subscribe subscribes address to this list
func (l *MailingList) Subscribe(ctx context.Context, address string, opts SubscribeOptions) (SubscribeResult, error) {
	info, err := l.Info(ctx)
	if err != nil {
		return SubscribeResult{}, err
	}
	data := restbase.Data{
		"list_id":    info.ListID,
		"subscriber": address,
	}
	if opts.DisplayName != "" {
		data["display_name"] = opts.DisplayName
	}
	if opts.PreVerified {
		data["pre_verified"] = true
	}
	if opts.PreConfirmed {
		data["pre_confirmed"] = true
	}
	if opts.PreApproved {
		data["pre_approved"] = true
	}

	resp, content, err := l.Connection().Call(ctx, "members", data, "")
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("failed to subscribe %s: %w", address, err)
	}

	if resp.StatusCode == http.StatusAccepted {
		pending, _ := content.(map[string]any)
		if pending == nil {
			pending = map[string]any{}
		}
		logger := l.Connection().Logger()
		logger.Debug().Str("address", address).Str("list", info.ListID).Msg("Subscription pending")
		return SubscribeResult{Pending: pending}, nil
	}

	location, err := requireLocation(resp)
	if err != nil {
		return SubscribeResult{}, err
	}
	return SubscribeResult{Member: newMember(l.Connection(), location, nil)}, nil
}

// Unsubscribe removes the membership of email from this list
func (l *MailingList) Unsubscribe(ctx context.Context, email string) error {
	path, err := l.path(ctx, true, "member", email)
	if err != nil {
		return err
	}
	if _, _, err := l.Connection().Call(ctx, path, nil, http.MethodDelete); err != nil {
		info, _ := l.Cached()
		return notAMember(err, email, info.FQDNListname)
	}
	return nil
}

// Bans returns the ban list of this list
func (l *MailingList) Bans(ctx context.Context) (*Bans, error) {
	path, err := l.path(ctx, true, "bans")
	if err != nil {
		return nil, err
	}
	return &Bans{conn: l.Connection(), url: path, list: l}, nil
}

// BansPage returns one page of this list's banned addresses
func (l *MailingList) BansPage(ctx context.Context, count, page int) (*restbase.Page[*BannedAddress], error) {
	path, err := l.path(ctx, true, "bans")
	if err != nil {
		return nil, err
	}
	return restbase.NewPage(l.Connection(), path, count, page, newBannedAddress), nil
}

// HeaderMatches returns the header-match rules of this list
func (l *MailingList) HeaderMatches(ctx context.Context) (*HeaderMatches, error) {
	path, err := l.path(ctx, true, "header-matches")
	if err != nil {
		return nil, err
	}
	return &HeaderMatches{conn: l.Connection(), url: path, list: l}, nil
}

// Archivers returns the archiver switches of this list, archiver name to
// enabled flag. Change them with Set and write them back with Save.
func (l *MailingList) Archivers(ctx context.Context) (*restbase.Settings, error) {
	path, err := l.path(ctx, true, "archivers")
	if err != nil {
		return nil, err
	}
	return restbase.NewSettings(l.Connection(), path), nil
}

// SetArchivers enables or disables the named archivers and saves them.
// Archivers not named keep their current state.
func (l *MailingList) SetArchivers(ctx context.Context, enabled map[string]bool) error {
	archivers, err := l.Archivers(ctx)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(enabled)) {
		if err := archivers.Set(ctx, name, enabled[name]); err != nil {
			return err
		}
	}
	if _, err := archivers.Save(ctx); err != nil {
		return fmt.Errorf("failed to save archivers: %w", err)
	}
	return nil
}

// Delete deletes this list
func (l *MailingList) Delete(ctx context.Context) error {
	if _, _, err := l.Connection().Call(ctx, l.URL(), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return nil
}
