package transfer

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotModified is returned by a Messenger when an edit would leave the
	// message text unchanged.
	ErrNotModified = errors.New("message is not modified")

	ErrNoHandle = errors.New("no status message to edit")
)

// Handle identifies a message sent into a conversation.
type Handle struct {
	ChatID    int64
	MessageID int
}

//go:generate mockgen -destination=../mocks/mock_messenger.go -package=mocks github.com/imrenagi/go-drive-relay/transfer Messenger

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (Handle, error)
	EditMessage(ctx context.Context, h Handle, text string) error
}

type Outcome int

const (
	Updated Outcome = iota
	Unchanged
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	default:
		return "failed"
	}
}

// Notifier maintains the single status message of one transfer.
type Notifier struct {
	messenger Messenger
	chatID    int64
	replyTo   int
	handle    *Handle
}

func NewNotifier(m Messenger, chatID int64, replyTo int) *Notifier {
	return &Notifier{
		messenger: m,
		chatID:    chatID,
		replyTo:   replyTo,
	}
}

// Start sends the status message that later updates edit.
func (n *Notifier) Start(ctx context.Context, text string) error {
	h, err := n.messenger.SendMessage(ctx, n.chatID, n.replyTo, text)
	if err != nil {
		return err
	}
	n.handle = &h
	return nil
}

// Update edits the status message. A no-op edit is reported as Unchanged
// with a nil error; callers are free to ignore the outcome.
func (n *Notifier) Update(ctx context.Context, text string) (Outcome, error) {
	if n.handle == nil {
		return Failed, ErrNoHandle
	}
	err := n.messenger.EditMessage(ctx, *n.handle, text)
	switch {
	case err == nil:
		return Updated, nil
	case errors.Is(err, ErrNotModified):
		return Unchanged, nil
	default:
		return Failed, err
	}
}

// Report delivers a terminal message. When the status message cannot be
// edited a new message is sent instead; the returned error means neither
// worked.
func (n *Notifier) Report(ctx context.Context, text string) error {
	outcome, editErr := n.Update(ctx, text)
	if outcome != Failed {
		return nil
	}
	h, err := n.messenger.SendMessage(ctx, n.chatID, n.replyTo, text)
	if err != nil {
		return fmt.Errorf("edit status: %v; send fallback: %w", editErr, err)
	}
	n.handle = &h
	return nil
}
