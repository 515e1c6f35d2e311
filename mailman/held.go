package mailman

import (
	"context"
	"fmt"
	"net/http"

	"github.com/s0up4200/mailmanctl/restbase"
)

// HeldMessage is a proxy for a message held for moderation
type HeldMessage struct {
	*restbase.Resource[HeldMessageInfo]
}

func newHeldMessage(conn *restbase.Connection, url string, entry map[string]any) *HeldMessage {
	return &HeldMessage{restbase.NewResource[HeldMessageInfo](conn, "HeldMessage", url, heldMessageProperties, entry)}
}

// String never fetches; an unloaded message prints its URL.
func (h *HeldMessage) String() string {
	info, ok := h.Cached()
	if !ok {
		return fmt.Sprintf("<HeldMessage %s>", h.URL())
	}
	return fmt.Sprintf("<HeldMessage \"%d\" by %s>", info.RequestID, info.Sender)
}

// Moderate applies action to this message
func (h *HeldMessage) Moderate(ctx context.Context, action Action) (*restbase.Response, error) {
	resp, _, err := h.Connection().Call(ctx, h.URL(), restbase.Data{"action": action.String()}, http.MethodPost)
	if err != nil {
		return nil, fmt.Errorf("failed to %s held message: %w", action, err)
	}
	return resp, nil
}

// Accept posts the message to the list
func (h *HeldMessage) Accept(ctx context.Context) (*restbase.Response, error) {
	return h.Moderate(ctx, ActionAccept)
}

// Reject bounces the message back to the sender
func (h *HeldMessage) Reject(ctx context.Context) (*restbase.Response, error) {
	return h.Moderate(ctx, ActionReject)
}

// Discard drops the message without notice
func (h *HeldMessage) Discard(ctx context.Context) (*restbase.Response, error) {
	return h.Moderate(ctx, ActionDiscard)
}

// Defer keeps the message held
func (h *HeldMessage) Defer(ctx context.Context) (*restbase.Response, error) {
	return h.Moderate(ctx, ActionDefer)
}
