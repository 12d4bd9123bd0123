package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchlist-compare/models"
	"watchlist-compare/progress"
)

type fakeSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.texts = append(s.texts, m.Text)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type fakeComparer struct {
	events []progress.Event
	err    error
	got    []string
}

func (c *fakeComparer) Compare(_ context.Context, usernames []string, sink progress.Sink) (progress.Event, error) {
	c.got = usernames
	if c.err != nil {
		return progress.Event{}, c.err
	}
	for _, e := range c.events {
		sink.Emit(e)
	}
	return c.events[len(c.events)-1], nil
}

type fakeExporter struct {
	films []models.Film
	err   error
}

func (e *fakeExporter) CreateSheetAndWriteFilms(_ context.Context, name string, films []models.Film, _ []string) (string, int64, error) {
	e.films = films
	return name, 7, e.err
}

func (e *fakeExporter) SheetURL(id int64) string {
	return "https://docs.google.com/spreadsheets/d/x/edit#gid=7"
}

type fakeHistory struct{ records []models.ComparisonRecord }

func (h fakeHistory) RecentComparisons(context.Context, int) ([]models.ComparisonRecord, error) {
	return h.records, nil
}

func command(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: userID},
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(strings.Fields(text)[0])
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return tgbotapi.Update{Message: msg}
}

var dune = models.Film{Title: "Dune", Link: "https://letterboxd.com/film/dune/"}

func TestHandleUpdate_Compare(t *testing.T) {
	sender := &fakeSender{}
	comparer := &fakeComparer{events: []progress.Event{
		progress.UserDone("alice", 2),
		progress.UserCached("bob", 3),
		progress.Result([]models.Film{dune}),
	}}
	exporter := &fakeExporter{}
	b := NewBot(sender, comparer, nil, nil).WithExporter(exporter)

	b.HandleUpdate(context.Background(), command(1, "/compare alice bob"))

	assert.Equal(t, []string{"alice", "bob"}, comparer.got)
	texts := sender.Texts()
	require.Len(t, texts, 4)
	assert.Equal(t, "✅ alice: 2 films collected", texts[0])
	assert.Equal(t, "♻️ bob: 3 films (cached)", texts[1])
	assert.Contains(t, texts[2], `1. <a href="https://letterboxd.com/film/dune/">Dune</a>`)
	assert.Contains(t, texts[3], "#gid=7")
	assert.Equal(t, []models.Film{dune}, exporter.films)
}

func TestHandleUpdate_PlainTextIsCompare(t *testing.T) {
	comparer := &fakeComparer{events: []progress.Event{progress.Error(models.ErrorValidation, "Provide at least two usernames")}}
	sender := &fakeSender{}
	b := NewBot(sender, comparer, nil, nil)

	b.HandleUpdate(context.Background(), command(1, "alice"))

	assert.Equal(t, []string{"alice"}, comparer.got)
	assert.Equal(t, []string{"❌ Provide at least two usernames"}, sender.Texts())
}

func TestHandleUpdate_UserErrorAndNoExportOnEmpty(t *testing.T) {
	sender := &fakeSender{}
	exporter := &fakeExporter{}
	comparer := &fakeComparer{events: []progress.Event{
		progress.UserError(models.NewScrapeError(models.ErrorNotFound, "ghost<404>", nil)),
		progress.Result(nil),
	}}
	b := NewBot(sender, comparer, nil, nil).WithExporter(exporter)

	b.HandleUpdate(context.Background(), command(1, "/compare ghost<404> bob carol"))

	texts := sender.Texts()
	require.Len(t, texts, 2)
	assert.Equal(t, "⚠️ user ghost&lt;404&gt; was not found", texts[0])
	assert.Contains(t, texts[1], "No films")
	assert.Nil(t, exporter.films)
}

func TestHandleUpdate_ExportFailure(t *testing.T) {
	sender := &fakeSender{}
	comparer := &fakeComparer{events: []progress.Event{progress.Result([]models.Film{dune})}}
	b := NewBot(sender, comparer, nil, nil).WithExporter(&fakeExporter{err: errors.New("quota")})

	b.HandleUpdate(context.Background(), command(1, "/compare a b"))
	texts := sender.Texts()
	assert.Contains(t, texts[len(texts)-1], "Could not write")
}

func TestHandleUpdate_Interrupted(t *testing.T) {
	sender := &fakeSender{}
	b := NewBot(sender, &fakeComparer{err: context.Canceled}, nil, nil)
	b.HandleUpdate(context.Background(), command(1, "/compare a b"))
	assert.Empty(t, sender.Texts())
}

func TestHandleUpdate_Authorization(t *testing.T) {
	sender := &fakeSender{}
	comparer := &fakeComparer{events: []progress.Event{progress.Result(nil)}}
	b := NewBot(sender, comparer, []int64{42}, nil)

	b.HandleUpdate(context.Background(), command(7, "/compare a b"))
	assert.Nil(t, comparer.got)
	assert.Equal(t, []string{"Sorry, you are not authorized to use this bot."}, sender.Texts())

	b.HandleUpdate(context.Background(), command(42, "/help"))
	assert.Contains(t, sender.Texts()[1], "/compare")
}

func TestHandleUpdate_History(t *testing.T) {
	sender := &fakeSender{}
	b := NewBot(sender, &fakeComparer{}, nil, nil)

	b.HandleUpdate(context.Background(), command(1, "/history"))
	assert.Equal(t, "History is not enabled.", sender.Texts()[0])

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	b.WithHistory(fakeHistory{records: []models.ComparisonRecord{
		{Usernames: []string{"alice", "bob"}, Status: models.ComparisonDone, ResultCount: 4, FinishedAt: at},
		{Usernames: []string{"x"}, Status: models.ComparisonFailed, Message: "Provide at least two usernames", FinishedAt: at},
	}})
	b.HandleUpdate(context.Background(), command(1, "/history"))
	text := sender.Texts()[1]
	assert.Contains(t, text, "2024-05-01 12:00: alice, bob (4 in common)")
	assert.Contains(t, text, "x (failed: Provide at least two usernames)")
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	sender := &fakeSender{}
	b := NewBot(sender, &fakeComparer{}, nil, nil)

	updates := make(chan tgbotapi.Update, 2)
	updates <- command(1, "/start")
	updates <- tgbotapi.Update{}
	close(updates)

	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	require.Len(t, sender.Texts(), 1)
	assert.Contains(t, sender.Texts()[0], "Welcome")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	long := strings.Repeat("é", 8) // 16 bytes
	parts = splitMessage("x\n"+long, 5)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 5)
		assert.True(t, strings.ToValidUTF8(p, "?") == p, "part %q is not valid UTF-8", p)
	}
	assert.Equal(t, "x"+long, strings.Join(parts, ""))
}
