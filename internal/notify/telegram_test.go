package notify

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/harvest"
)

type fakeBot struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestFormatComplete(t *testing.T) {
	text := FormatComplete(harvest.Result{
		Dataset:       make(fixture.Dataset, 120),
		Leagues:       5,
		LeaguesFailed: 1,
		Seasons:       5,
		Weeks:         14,
		Records:       40,
		Rescans:       1,
		Failures:      []harvest.LeagueFailure{{League: "Serie A", Error: "timeout after 1m0s"}},
	})

	assert.Contains(t, text, "Leagues: 5 ok, 1 failed")
	assert.Contains(t, text, "New rows: 40, dataset rows: 120")
	assert.Contains(t, text, "Seasons rescanned: 1")
	assert.Contains(t, text, "• Serie A: timeout after 1m0s")
}

func TestFormatAborted(t *testing.T) {
	text := FormatAborted(harvest.Result{Interrupted: true, Records: 7, Checkpoint: "out_temp.xlsx"}, errors.New("interrupted"))
	assert.Contains(t, text, "Harvest interrupted")
	assert.Contains(t, text, "Checkpoint: out_temp.xlsx")

	text = FormatAborted(harvest.Result{}, errors.New("load failed"))
	assert.Contains(t, text, "Harvest failed")
	assert.Contains(t, text, "No checkpoint was written")
}

func TestReporterSendsOnRunEnd(t *testing.T) {
	bot := &fakeBot{}
	r := newTelegramReporter(bot, 42, log.New(io.Discard, "", 0), 0)

	var rep harvest.Reporter = r
	rep.OnLeagueStart(harvest.League{Name: "Premier"}, 0, 1)
	rep.OnRunComplete(harvest.Result{Leagues: 1})
	rep.OnRunAborted(harvest.Result{Interrupted: true}, errors.New("stop"))
	r.Stop()

	bot.mu.Lock()
	defer bot.mu.Unlock()
	require.Len(t, bot.sent, 2)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Contains(t, bot.sent[0].Text, "Harvest complete")
	assert.Contains(t, bot.sent[1].Text, "Harvest interrupted")
}

func TestReporterSurvivesSendErrorsAndStop(t *testing.T) {
	bot := &fakeBot{err: errors.New("429")}
	r := newTelegramReporter(bot, 1, log.New(io.Discard, "", 0), 0)

	r.OnRunComplete(harvest.Result{})
	r.Stop()
	r.Stop()
	r.OnRunComplete(harvest.Result{})

	bot.mu.Lock()
	defer bot.mu.Unlock()
	assert.Len(t, bot.sent, 1)
}
