package mackolik

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/fortuna/almanac/internal/fixture"
	"github.com/fortuna/almanac/internal/harvest"
)

const (
	// UserAgent for the browser session
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// MinRequestInterval between page interactions
	MinRequestInterval = 1500 * time.Millisecond

	// DefaultSettle is how long the page is given to redraw after a selection
	DefaultSettle = 1200 * time.Millisecond
)

// Page selectors.
const (
	seasonSelect = "#cboSeason"
	tabList      = "#tab-list"
	fixtureTab   = "#tab-list li.ui-state-default:nth-child(3) a"
	weekSelect   = "#cboWeek"
	fixtureTable = "#dvFixtureInner > table:nth-child(1)"
)

// Config controls the browser session.
type Config struct {
	Headless  bool
	UserAgent string
	Interval  time.Duration
	Settle    time.Duration
}

// DefaultConfig returns a headless session with the standard pacing.
func DefaultConfig() Config {
	return Config{
		Headless:  true,
		UserAgent: UserAgent,
		Interval:  MinRequestInterval,
		Settle:    DefaultSettle,
	}
}

// Client drives a single browser tab through the fixture archive. It
// implements harvest.Navigator and remembers which league and season the tab
// currently shows, so consecutive week fetches only change the week.
type Client struct {
	cfg    Config
	logger *log.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	mu          sync.Mutex
	lastRequest time.Time
	league      string
	season      string
}

var _ harvest.Navigator = (*Client)(nil)

// NewClient creates a browser allocator. The tab itself is opened on first
// use.
func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[mackolik] ", log.LstdFlags)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = UserAgent
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Client{
		cfg:         cfg,
		logger:      logger,
		allocCtx:    allocCtx,
		allocCancel: cancel,
	}, nil
}

// Close shuts the tab and the browser.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tabCancel != nil {
		c.tabCancel()
		c.tabCancel = nil
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
}

// Seasons opens the league page and lists its seasons, most recent first.
func (c *Client) Seasons(ctx context.Context, league harvest.League) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var seasons []string
	err := c.run(ctx,
		chromedp.Navigate(league.URL),
		chromedp.WaitReady(seasonSelect, chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
		chromedp.Evaluate(optionTexts(seasonSelect), &seasons),
	)
	if err != nil {
		return nil, fmt.Errorf("list seasons of %s: %w", league.Name, err)
	}

	c.league, c.season = league.URL, ""
	return seasons, nil
}

// Weeks selects the season, opens its fixture tab and lists the weeks.
func (c *Client) Weeks(ctx context.Context, league harvest.League, season string) ([]fixture.WeekLocator, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openSeason(ctx, league, season); err != nil {
		return nil, err
	}

	var weeks []fixture.WeekLocator
	if err := c.run(ctx, chromedp.Evaluate(weekOptions, &weeks)); err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	return weeks, nil
}

// FetchWeek selects the week and returns the cells of every fixture row.
func (c *Client) FetchWeek(ctx context.Context, league harvest.League, season string, week fixture.WeekLocator) ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.league != league.URL || c.season != season {
		if err := c.openSeason(ctx, league, season); err != nil {
			return nil, err
		}
	}

	var (
		selected bool
		html     string
	)
	err := c.run(ctx,
		chromedp.WaitReady(weekSelect, chromedp.ByQuery),
		chromedp.Evaluate(selectIndex(weekSelect, week.Position), &selected),
	)
	if err != nil {
		return nil, fmt.Errorf("select week %s: %w", week.Label, err)
	}
	if !selected {
		return nil, fmt.Errorf("week %s not offered at position %d", week.Label, week.Position)
	}

	err = c.run(ctx,
		chromedp.WaitReady(fixtureTable, chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
		chromedp.OuterHTML(fixtureTable, &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("read fixtures of week %s: %w", week.Label, err)
	}

	return ParseFixtureTable(html)
}

// openSeason brings the tab to the fixture view of league and season.
func (c *Client) openSeason(ctx context.Context, league harvest.League, season string) error {
	var selected bool
	err := c.run(ctx,
		chromedp.Navigate(league.URL),
		chromedp.WaitReady(seasonSelect, chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
		chromedp.Evaluate(selectText(seasonSelect, season), &selected),
	)
	if err != nil {
		return fmt.Errorf("select season %s: %w", season, err)
	}
	if !selected {
		return fmt.Errorf("season %s not offered for %s", season, league.Name)
	}

	err = c.run(ctx,
		chromedp.Sleep(c.cfg.Settle),
		chromedp.WaitReady(tabList, chromedp.ByQuery),
		chromedp.Click(fixtureTab, chromedp.ByQuery),
		chromedp.WaitReady(weekSelect, chromedp.ByQuery),
		chromedp.Sleep(c.cfg.Settle),
	)
	if err != nil {
		return fmt.Errorf("open fixture tab of %s: %w", season, err)
	}

	c.league, c.season = league.URL, season
	return nil
}

// run paces the session and executes actions on the tab under ctx.
func (c *Client) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := c.throttle(ctx); err != nil {
		return err
	}

	if c.tabCtx == nil {
		c.tabCtx, c.tabCancel = chromedp.NewContext(c.allocCtx)
	}

	runCtx, cancel := context.WithCancel(c.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		var dcancel context.CancelFunc
		runCtx, dcancel = context.WithDeadline(runCtx, deadline)
		defer dcancel()
	}

	err := chromedp.Run(runCtx, actions...)
	c.lastRequest = time.Now()
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return fmt.Errorf("chromedp error: %w", err)
	}
	return nil
}

// throttle waits out the minimum interval since the last interaction.
func (c *Client) throttle(ctx context.Context) error {
	if c.lastRequest.IsZero() || c.cfg.Interval <= 0 {
		return nil
	}
	wait := c.cfg.Interval - time.Since(c.lastRequest)
	if wait <= 0 {
		return nil
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func optionTexts(sel string) string {
	return `Array.from(document.querySelectorAll(` + strconv.Quote(sel+" option") + `))
		.map(o => o.textContent.trim())
		.filter(t => t.length > 0)`
}

const weekOptions = `Array.from(document.querySelectorAll("#cboWeek option"))
	.map((o, i) => ({position: i, label: o.textContent.trim()}))
	.filter(w => w.label.length > 0)`

// selectText picks the option whose text equals label and fires change.
func selectText(sel, label string) string {
	return `(() => {
		const s = document.querySelector(` + strconv.Quote(sel) + `);
		if (!s) return false;
		const o = Array.from(s.options).find(o => o.textContent.trim() === ` + strconv.Quote(label) + `);
		if (!o) return false;
		s.value = o.value;
		s.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`
}

// selectIndex picks the option at position and fires change.
func selectIndex(sel string, position int) string {
	return `(() => {
		const s = document.querySelector(` + strconv.Quote(sel) + `);
		if (!s || ` + strconv.Itoa(position) + ` >= s.options.length) return false;
		s.selectedIndex = ` + strconv.Itoa(position) + `;
		s.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	})()`
}
