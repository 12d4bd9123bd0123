package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"watchlist-compare/logger"
	"watchlist-compare/models"
	"watchlist-compare/progress"
	"watchlist-compare/sheets"
)

const (
	maxMessageLength = 4096
	historyLimit     = 5
)

// Sender is the part of the Telegram client the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Comparer runs one comparison and streams its progress to sink
type Comparer interface {
	Compare(ctx context.Context, usernames []string, sink progress.Sink) (progress.Event, error)
}

// Exporter writes a comparison result to a spreadsheet
type Exporter interface {
	CreateSheetAndWriteFilms(ctx context.Context, sheetName string, films []models.Film, usernames []string) (string, int64, error)
	SheetURL(sheetID int64) string
}

// HistoryReader lists recent comparisons
type HistoryReader interface {
	RecentComparisons(ctx context.Context, limit int) ([]models.ComparisonRecord, error)
}

// Bot answers Telegram commands
type Bot struct {
	sender   Sender
	comparer Comparer
	exporter Exporter
	history  HistoryReader
	allowed  map[int64]bool
	log      logger.Logger

	wg sync.WaitGroup
}

// NewBot creates a Bot. An empty allowedUsers list lets everyone in.
func NewBot(sender Sender, comparer Comparer, allowedUsers []int64, log logger.Logger) *Bot {
	if log == nil {
		log = logger.NewNop()
	}
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{
		sender:   sender,
		comparer: comparer,
		allowed:  allowed,
		log:      log,
	}
}

// WithExporter enables exporting results to Google Sheets
func (b *Bot) WithExporter(e Exporter) *Bot {
	b.exporter = e
	return b
}

// WithHistory enables the /history command
func (b *Bot) WithHistory(h HistoryReader) *Bot {
	b.history = h
	return b
}

// Run handles updates until ctx ends or the channel closes. Comparisons run
// concurrently; Run waits for them before returning.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate processes a single update synchronously
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.isAllowed(msg.From.ID) {
		b.log.Warn("Unauthorized user attempted to use the bot", logger.Int64("user_id", msg.From.ID))
		b.send(chatID, "Sorry, you are not authorized to use this bot.")
		return
	}

	if !msg.IsCommand() {
		// Plain text is treated as a list of usernames
		b.handleCompare(ctx, chatID, strings.Fields(msg.Text))
		return
	}

	switch msg.Command() {
	case "start":
		b.send(chatID, "Welcome! Send me two or more Letterboxd usernames and I will find the films on all of their watchlists.\n\nExample: /compare alice bob")
	case "help":
		b.send(chatID, "Commands:\n/start - Start the bot\n/help - Show this help\n/compare user1 user2 ... - Compare watchlists\n/history - Show recent comparisons")
	case "compare":
		b.handleCompare(ctx, chatID, strings.Fields(msg.CommandArguments()))
	case "history":
		b.handleHistory(ctx, chatID)
	default:
		b.send(chatID, "Unknown command. Send /help for the list of commands.")
	}
}

func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowed) == 0 || b.allowed[userID]
}

func (b *Bot) handleCompare(ctx context.Context, chatID int64, usernames []string) {
	log := b.log.With(logger.Int64("chat_id", chatID))
	log.Info("Comparison requested", logger.Strings("usernames", usernames))

	sink := progress.SinkFunc(func(e progress.Event) {
		if !e.Terminal() {
			b.send(chatID, statusText(e))
		}
	})

	terminal, err := b.comparer.Compare(ctx, usernames, sink)
	if err != nil {
		log.Warn("Comparison interrupted", logger.Error(err))
		return
	}

	if terminal.Type != progress.EventResult {
		b.send(chatID, "❌ "+terminal.Message)
		return
	}

	for _, part := range splitMessage(formatResult(usernames, terminal.Films), maxMessageLength) {
		b.send(chatID, part)
	}

	if b.exporter != nil && len(terminal.Films) > 0 {
		b.export(ctx, chatID, usernames, terminal.Films)
	}
}

func (b *Bot) export(ctx context.Context, chatID int64, usernames []string, films []models.Film) {
	name := sheets.SheetNameFor(usernames, time.Now().UTC())
	_, sheetID, err := b.exporter.CreateSheetAndWriteFilms(ctx, name, films, usernames)
	if err != nil {
		b.log.Error("Failed to export comparison", logger.Error(err))
		b.send(chatID, "⚠️ Could not write the result to Google Sheets.")
		return
	}
	b.send(chatID, fmt.Sprintf("📊 Google Sheet: %s", b.exporter.SheetURL(sheetID)))
}

func (b *Bot) handleHistory(ctx context.Context, chatID int64) {
	if b.history == nil {
		b.send(chatID, "History is not enabled.")
		return
	}
	records, err := b.history.RecentComparisons(ctx, historyLimit)
	if err != nil {
		b.log.Error("Failed to load comparison history", logger.Error(err))
		b.send(chatID, "❌ Could not load the history.")
		return
	}
	b.send(chatID, formatHistory(records))
}

// send sends a message to Telegram
func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Warn("Error sending message", logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
