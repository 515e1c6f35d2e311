package mailman

import (
	"context"
	"fmt"
	"net/http"

	"github.com/s0up4200/mailmanctl/restbase"
)

// HeaderMatches is the ordered set of header-match rules of a list
type HeaderMatches struct {
	conn *restbase.Connection
	url  string
	list *MailingList
}

// List returns the owning list
func (h *HeaderMatches) List() *MailingList {
	return h.list
}

// Entries returns the rules in evaluation order
func (h *HeaderMatches) Entries(ctx context.Context) ([]*HeaderMatch, error) {
	matches, err := restbase.Collect(ctx, h.conn, h.url, newHeaderMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to get header matches: %w", err)
	}
	return matches, nil
}

// HeaderMatchRule describes a new rule. An empty Action defers to the
// list's default header action.
type HeaderMatchRule struct {
	Header  string
	Pattern string
	Action  Action
	Tag     string
}

// Add appends a rule
func (h *HeaderMatches) Add(ctx context.Context, rule HeaderMatchRule) (*HeaderMatch, error) {
	data := restbase.Data{
		"header":  rule.Header,
		"pattern": rule.Pattern,
	}
	if rule.Action != "" {
		data["action"] = rule.Action.String()
	}
	if rule.Tag != "" {
		data["tag"] = rule.Tag
	}

	resp, _, err := h.conn.Call(ctx, h.url, data, "")
	if err != nil {
		return nil, fmt.Errorf("failed to add header match %s: %w", rule.Header, err)
	}
	location, err := requireLocation(resp)
	if err != nil {
		return nil, err
	}
	return newHeaderMatch(h.conn, location, nil), nil
}

// Clear deletes every rule
func (h *HeaderMatches) Clear(ctx context.Context) error {
	if _, _, err := h.conn.Call(ctx, h.url, nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to clear header matches: %w", err)
	}
	return nil
}

// HeaderMatch is a proxy for one header-match rule
type HeaderMatch struct {
	*restbase.Resource[HeaderMatchInfo]
}

func newHeaderMatch(conn *restbase.Connection, url string, entry map[string]any) *HeaderMatch {
	return &HeaderMatch{restbase.NewResource[HeaderMatchInfo](conn, "HeaderMatch", url, headerMatchProperties, entry)}
}

// String never fetches
func (m *HeaderMatch) String() string {
	info, ok := m.Cached()
	if !ok {
		return fmt.Sprintf("<HeaderMatch %s>", m.URL())
	}
	return fmt.Sprintf("<HeaderMatch on %q>", info.Header)
}

// Delete removes this rule
func (m *HeaderMatch) Delete(ctx context.Context) error {
	if _, _, err := m.Connection().Call(ctx, m.URL(), nil, http.MethodDelete); err != nil {
		return fmt.Errorf("failed to delete header match: %w", err)
	}
	return nil
}
