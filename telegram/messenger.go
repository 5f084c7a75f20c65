// Package telegram connects the transfer pipeline to a Telegram bot: it turns
// inbound media messages into transfer requests and keeps the status message
// of each transfer up to date.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/imrenagi/go-drive-relay/transfer"
)

// BotAPI is the subset of *tgbotapi.BotAPI the relay uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Messenger struct {
	api BotAPI
}

func NewMessenger(api BotAPI) *Messenger {
	return &Messenger{api: api}
}

func (m *Messenger) SendMessage(ctx context.Context, chatID int64, replyTo int, text string) (transfer.Handle, error) {
	if err := ctx.Err(); err != nil {
		return transfer.Handle{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := m.api.Send(msg)
	if err != nil {
		return transfer.Handle{}, fmt.Errorf("send message: %w", err)
	}
	return transfer.Handle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (m *Messenger) EditMessage(ctx context.Context, h transfer.Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Request(tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, text))
	if err == nil {
		return nil
	}
	// Telegram rejects edits that leave the text unchanged with a 400.
	if strings.Contains(err.Error(), "message is not modified") {
		return fmt.Errorf("edit message %d: %w", h.MessageID, transfer.ErrNotModified)
	}
	return fmt.Errorf("edit message %d: %w", h.MessageID, err)
}
