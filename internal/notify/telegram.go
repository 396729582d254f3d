package notify

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fortuna/almanac/internal/harvest"
)

// sendInterval keeps the bot under Telegram's per-chat rate limit.
const sendInterval = 2 * time.Second

// Sender delivers a message. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramReporter tells an operator chat how each run ended. Messages are
// queued and sent from a background goroutine so a slow API never stalls a
// harvest.
type TelegramReporter struct {
	harvest.NopReporter

	bot    Sender
	chatID int64
	logger *log.Logger

	queue    chan string
	wg       sync.WaitGroup
	stopOnce sync.Once
	interval time.Duration
}

// NewTelegramReporter connects the bot and starts the sender.
func NewTelegramReporter(token string, chatID int64, logger *log.Logger) (*TelegramReporter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false

	r := NewTelegramReporterWithSender(bot, chatID, logger)
	r.logger.Printf("✓ Telegram notifier ready as @%s", bot.Self.UserName)
	return r, nil
}

// NewTelegramReporterWithSender starts a reporter over any Sender.
func NewTelegramReporterWithSender(bot Sender, chatID int64, logger *log.Logger) *TelegramReporter {
	return newTelegramReporter(bot, chatID, logger, sendInterval)
}

func newTelegramReporter(bot Sender, chatID int64, logger *log.Logger, interval time.Duration) *TelegramReporter {
	if logger == nil {
		logger = log.New(log.Writer(), "[notify] ", log.LstdFlags)
	}
	r := &TelegramReporter{
		bot:      bot,
		chatID:   chatID,
		logger:   logger,
		queue:    make(chan string, 32),
		interval: interval,
	}
	r.wg.Add(1)
	go r.sender()
	return r
}

// OnRunComplete reports a committed run.
func (r *TelegramReporter) OnRunComplete(res harvest.Result) {
	r.enqueue(FormatComplete(res))
}

// OnRunAborted reports a run that stopped early and where its data went.
func (r *TelegramReporter) OnRunAborted(res harvest.Result, cause error) {
	r.enqueue(FormatAborted(res, cause))
}

// Stop sends whatever is queued and ends the sender.
func (r *TelegramReporter) Stop() {
	r.stopOnce.Do(func() { close(r.queue) })
	r.wg.Wait()
}

func (r *TelegramReporter) enqueue(text string) {
	defer func() {
		// queue closed by Stop
		if recover() != nil {
			r.logger.Printf("⚠️  notifier stopped, dropping message")
		}
	}()

	select {
	case r.queue <- text:
	default:
		r.logger.Printf("⚠️  notification queue full, dropping message")
	}
}

func (r *TelegramReporter) sender() {
	defer r.wg.Done()

	var last time.Time
	for text := range r.queue {
		if wait := r.interval - time.Since(last); !last.IsZero() && wait > 0 {
			time.Sleep(wait)
		}

		msg := tgbotapi.NewMessage(r.chatID, text)
		msg.DisableWebPagePreview = true
		if _, err := r.bot.Send(msg); err != nil {
			r.logger.Printf("❌ telegram send failed: %v", err)
		}
		last = time.Now()
	}
}

// FormatComplete renders the summary of a finished run.
func FormatComplete(res harvest.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Harvest complete\n")
	fmt.Fprintf(&b, "Leagues: %d ok, %d failed\n", res.Leagues, res.LeaguesFailed)
	fmt.Fprintf(&b, "Seasons: %d, weeks fetched: %d\n", res.Seasons, res.Weeks)
	fmt.Fprintf(&b, "New rows: %d, dataset rows: %d\n", res.Records, len(res.Dataset))
	if res.Rescans > 0 {
		fmt.Fprintf(&b, "Seasons rescanned: %d\n", res.Rescans)
	}
	writeFailures(&b, res.Failures)
	return strings.TrimRight(b.String(), "\n")
}

// FormatAborted renders the summary of a run that did not commit.
func FormatAborted(res harvest.Result, cause error) string {
	var b strings.Builder
	if res.Interrupted {
		fmt.Fprintf(&b, "⚠️ Harvest interrupted\n")
	} else {
		fmt.Fprintf(&b, "❌ Harvest failed\n")
	}
	if cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", cause)
	}
	fmt.Fprintf(&b, "Leagues done: %d, new rows: %d\n", res.Leagues+res.LeaguesFailed, res.Records)
	if res.Checkpoint != "" {
		fmt.Fprintf(&b, "Checkpoint: %s\n", res.Checkpoint)
	} else {
		fmt.Fprintf(&b, "No checkpoint was written\n")
	}
	writeFailures(&b, res.Failures)
	return strings.TrimRight(b.String(), "\n")
}

func writeFailures(b *strings.Builder, failures []harvest.LeagueFailure) {
	for _, f := range failures {
		fmt.Fprintf(b, "• %s: %s\n", f.League, f.Error)
	}
}
