package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/imrenagi/go-drive-relay/transfer"
	"github.com/samber/lo"
)

// transferID is unique per inbound message: message ids are only unique
// within a chat.
func transferID(msg *tgbotapi.Message) string {
	return fmt.Sprintf("%d_%d", msg.Chat.ID, msg.MessageID)
}

// requestFromMessage converts a media message into a transfer request. The
// returned file id is what the download opener resolves; ok is false for
// messages that carry no supported media.
func requestFromMessage(msg *tgbotapi.Message) (req transfer.Request, fileID string, ok bool) {
	if msg == nil || msg.Chat == nil {
		return transfer.Request{}, "", false
	}
	req = transfer.Request{
		ID:        transferID(msg),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Caption:   msg.Caption,
	}

	switch {
	case msg.Document != nil:
		d := msg.Document
		req.Kind = transfer.KindDocument
		req.DeclaredName, req.MimeType, req.Size = d.FileName, d.MimeType, int64(d.FileSize)
		fileID = d.FileID
	case msg.Video != nil:
		v := msg.Video
		req.Kind = transfer.KindVideo
		req.DeclaredName, req.MimeType, req.Size = v.FileName, v.MimeType, int64(v.FileSize)
		fileID = v.FileID
	case msg.Audio != nil:
		a := msg.Audio
		req.Kind = transfer.KindAudio
		req.DeclaredName, req.MimeType, req.Size = a.FileName, a.MimeType, int64(a.FileSize)
		fileID = a.FileID
	case len(msg.Photo) > 0:
		p := largestPhoto(msg.Photo)
		req.Kind = transfer.KindPhoto
		req.Size = int64(p.FileSize)
		fileID = p.FileID
	default:
		return transfer.Request{}, "", false
	}
	return req, fileID, true
}

func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	return lo.MaxBy(sizes, func(a, b tgbotapi.PhotoSize) bool {
		if a.Width*a.Height != b.Width*b.Height {
			return a.Width*a.Height > b.Width*b.Height
		}
		return a.FileSize > b.FileSize
	})
}
