package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/imrenagi/go-drive-relay/journal"
	"github.com/imrenagi/go-drive-relay/transfer"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const (
	startText = "👋 Hello! I'm a Google Drive Upload Bot.\n\n" +
		"📎 Send me any file and I'll upload it to your Google Drive!\n\n" +
		"Commands:\n" +
		"/start - Show this message\n" +
		"/help - Get help\n" +
		"/recent - List your latest uploads"

	helpText = "📚 How to use:\n\n" +
		"1. Send me any document/file\n" +
		"2. I'll download it temporarily\n" +
		"3. Upload it to your Google Drive\n" +
		"4. Send you the link\n\n" +
		"✨ Simple as that!"

	noRecentText = "📭 Nothing uploaded yet."

	RecentLimit = 5
)

// Runner runs one transfer to completion.
type Runner interface {
	Run(ctx context.Context, req transfer.Request) transfer.Result
}

type Option func(*Bot)

// WithHTTPClient sets the client used to download files from Telegram.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) {
		b.client = c
	}
}

func WithJournal(j journal.Store) Option {
	return func(b *Bot) {
		b.journal = j
	}
}

type Bot struct {
	api     BotAPI
	runner  Runner
	journal journal.Store
	client  *http.Client
	now     func() time.Time

	wg sync.WaitGroup
}

func NewBot(api BotAPI, runner Runner, opts ...Option) *Bot {
	b := &Bot{
		api:     api,
		runner:  runner,
		journal: journal.NewMemory(),
		client:  http.DefaultClient,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run consumes updates until ctx is done or the update channel closes, then
// waits for in-flight transfers to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	log.Info().Msg("bot is receiving updates")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("bot stopped receiving updates, waiting for in-flight transfers")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.IsCommand() {
		b.command(ctx, msg)
		return
	}

	req, fileID, ok := requestFromMessage(msg)
	if !ok {
		return
	}
	req.Open = b.opener(fileID)

	// A transfer runs to completion even after the bot is asked to stop.
	tctx := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		res := b.runner.Run(tctx, req)
		if err := b.journal.Save(tctx, journal.FromResult(req, res, b.now())); err != nil {
			log.Error().Err(err).Str("transfer_id", req.ID).Msg("unable to journal transfer result")
		}
	}()
}

func (b *Bot) command(ctx context.Context, msg *tgbotapi.Message) {
	var text string
	switch msg.Command() {
	case "start":
		text = startText
	case "help":
		text = helpText
	case "recent":
		entries, err := b.journal.Recent(ctx, msg.Chat.ID, RecentLimit)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("unable to list recent transfers")
			text = fmt.Sprintf("❌ Error: %s", err)
			break
		}
		text = recentText(entries)
	default:
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(reply); err != nil {
		log.Warn().Err(err).Str("command", msg.Command()).Msg("unable to reply to command")
	}
}

func recentText(entries []journal.Entry) string {
	if len(entries) == 0 {
		return noRecentText
	}
	lines := lo.Map(entries, func(e journal.Entry, _ int) string {
		if e.Status == journal.StatusDone {
			return fmt.Sprintf("✅ %s\n🔗 %s", e.Name, e.Link)
		}
		if e.Code != 0 {
			return fmt.Sprintf("❌ %s (%s, status %d)", e.Name, e.Failure, e.Code)
		}
		return fmt.Sprintf("❌ %s (%s)", e.Name, e.Failure)
	})
	return "🗂 Recent uploads:\n\n" + strings.Join(lines, "\n\n")
}

// opener downloads a file through the Bot API file endpoint. The direct URL
// embeds the bot token and is never logged.
func (b *Bot) opener(fileID string) transfer.Opener {
	return func(ctx context.Context) (io.ReadCloser, error) {
		direct, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("resolve telegram file: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, direct, nil)
		if err != nil {
			return nil, fmt.Errorf("build telegram download request: %w", err)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download telegram file: %w", stripURL(err))
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("download telegram file: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
}

// stripURL drops the request URL from client errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
