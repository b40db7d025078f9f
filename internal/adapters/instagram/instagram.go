// Package instagram implements the Instagram platform adapter on top of a
// rod-driven Chrome instance. Session cookies persist to disk so a login
// survives across invocations of the tool.
package instagram

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"sengage/internal/platform"
)

const defaultBaseURL = "https://www.instagram.com"

// Config holds adapter settings parsed from the platform config section.
type Config struct {
	BaseURL           string
	SessionFile       string
	Headless          bool
	NavigationTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:           defaultBaseURL,
		SessionFile:       "data/instagram_session.json",
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
	}
}

func configFromSettings(settings map[string]string) Config {
	cfg := DefaultConfig()
	if v := settings["base_url"]; v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := settings["session_file"]; v != "" {
		cfg.SessionFile = v
	}
	if v := settings["headless"]; v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = b
		}
	}
	if v := settings["navigation_timeout"]; v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.NavigationTimeout = d
		}
	}
	return cfg
}

func init() {
	platform.Register(platform.Instagram, func(settings map[string]string, logger *zap.Logger) (platform.Adapter, error) {
		return New(configFromSettings(settings), logger), nil
	})
}

// Adapter drives Instagram through a headless browser.
type Adapter struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	loggedIn bool
}

// New creates an Instagram adapter. The browser launches lazily on first use.
func New(cfg Config, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Platform implements platform.Adapter.
func (a *Adapter) Platform() platform.Platform { return platform.Instagram }

// ensureBrowser launches Chrome and restores any persisted session cookies.
func (a *Adapter) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.browser != nil {
		if _, err := a.browser.Version(); err == nil {
			return a.browser, nil
		}
		_ = a.browser.Close()
		a.browser = nil
	}

	controlURL, err := launcher.New().Headless(a.cfg.Headless).Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to chrome: %w", err)
	}

	if cookies, err := loadCookies(a.cfg.SessionFile); err != nil {
		a.logger.Debug("no persisted instagram session", zap.Error(err))
	} else if len(cookies) > 0 {
		if err := browser.SetCookies(cookies); err != nil {
			a.logger.Warn("failed to restore instagram session cookies", zap.Error(err))
		} else {
			a.loggedIn = true
			a.logger.Info("restored instagram session", zap.Int("cookies", len(cookies)))
		}
	}

	a.browser = browser
	return browser, nil
}

func (a *Adapter) newPage(ctx context.Context, target string) (*rod.Page, error) {
	browser, err := a.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: target})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page = page.Timeout(a.cfg.NavigationTimeout)
	if err := page.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("failed to load %s: %w", target, err)
	}
	return page, nil
}

// Login signs in with the given credentials and persists session cookies.
func (a *Adapter) Login(ctx context.Context, creds platform.Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("instagram login requires username and password")
	}

	page, err := a.newPage(ctx, a.cfg.BaseURL+"/accounts/login/")
	if err != nil {
		return err
	}
	defer page.Close()

	userField, err := page.Element(`input[name="username"]`)
	if err != nil {
		return fmt.Errorf("login form not found: %w", err)
	}
	if err := userField.Input(creds.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}

	passField, err := page.Element(`input[name="password"]`)
	if err != nil {
		return fmt.Errorf("password field not found: %w", err)
	}
	if err := passField.Input(creds.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	submit, err := page.Element(`button[type="submit"]`)
	if err != nil {
		return fmt.Errorf("login button not found: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to submit login: %w", err)
	}

	if err := page.WaitStable(2 * time.Second); err != nil {
		return fmt.Errorf("login did not settle: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return fmt.Errorf("failed to read page state after login: %w", err)
	}
	if strings.Contains(info.URL, "accounts/login") {
		return fmt.Errorf("instagram rejected the credentials")
	}

	a.mu.Lock()
	a.loggedIn = true
	browser := a.browser
	a.mu.Unlock()

	cookies, err := browser.GetCookies()
	if err != nil {
		a.logger.Warn("failed to read session cookies", zap.Error(err))
		return nil
	}
	if err := saveCookies(a.cfg.SessionFile, cookies); err != nil {
		a.logger.Warn("failed to persist session cookies", zap.Error(err))
	}
	return nil
}

// Discover searches hashtag pages and returns candidate posts. Captions and
// author details are only as complete as the tag page exposes them.
func (a *Adapter) Discover(ctx context.Context, criteria platform.Criteria) ([]platform.Candidate, error) {
	tags := criteria.Hashtags
	if len(tags) == 0 && len(criteria.Keywords) > 0 {
		tags = criteria.Keywords
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("instagram discovery requires hashtags or keywords")
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = 20
	}

	seen := map[string]bool{}
	var out []platform.Candidate

	for _, tag := range tags {
		if len(out) >= limit {
			break
		}
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag == "" {
			continue
		}

		cands, err := a.discoverTag(ctx, tag, limit-len(out))
		if err != nil {
			// One bad tag should not sink the whole discovery pass.
			a.logger.Warn("hashtag discovery failed",
				zap.String("tag", tag), zap.Error(err))
			continue
		}
		for _, c := range cands {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
	}

	return out, nil
}

func (a *Adapter) discoverTag(ctx context.Context, tag string, limit int) ([]platform.Candidate, error) {
	page, err := a.newPage(ctx, a.cfg.BaseURL+"/explore/tags/"+url.PathEscape(tag)+"/")
	if err != nil {
		return nil, err
	}
	defer page.Close()

	// Scroll a few screens so the grid fills in.
	for i := 0; i < 3; i++ {
		if _, err := page.Eval(`() => window.scrollBy(0, 1000)`); err != nil {
			break
		}
		time.Sleep(time.Second)
	}

	links, err := page.Elements(`article a`)
	if err != nil {
		return nil, fmt.Errorf("failed to read post grid: %w", err)
	}

	now := time.Now()
	var out []platform.Candidate
	for _, link := range links {
		if len(out) >= limit {
			break
		}
		href, err := link.Attribute("href")
		if err != nil || href == nil {
			continue
		}
		shortcode, ok := parseShortcode(*href)
		if !ok {
			continue
		}
		out = append(out, platform.Candidate{
			ID:           shortcode,
			Platform:     platform.Instagram,
			URL:          a.cfg.BaseURL + "/p/" + shortcode + "/",
			Hashtags:     []string{tag},
			DiscoveredAt: now,
		})
	}
	return out, nil
}

// parseShortcode extracts the post shortcode from a /p/<code>/ link.
func parseShortcode(href string) (string, bool) {
	_, rest, found := strings.Cut(href, "/p/")
	if !found {
		return "", false
	}
	code, _, _ := strings.Cut(rest, "/")
	if code == "" {
		return "", false
	}
	return code, true
}

// PostComment opens the post and submits the comment. It always resolves to
// a terminal ActionResult; browser errors are classified as transient or
// permanent, never surfaced as Go errors.
func (a *Adapter) PostComment(ctx context.Context, cand platform.Candidate, text string) (result platform.ActionResult) {
	defer func() {
		// rod panics on some driver failures; keep the contract terminal.
		if r := recover(); r != nil {
			result = platform.Transient(fmt.Sprintf("browser failure: %v", r))
		}
	}()

	if text == "" {
		return platform.Permanent("empty comment text")
	}

	a.mu.Lock()
	loggedIn := a.loggedIn
	a.mu.Unlock()
	if !loggedIn {
		return platform.Permanent("not logged in")
	}

	target := cand.URL
	if target == "" {
		target = a.cfg.BaseURL + "/p/" + cand.ID + "/"
	}

	page, err := a.newPage(ctx, target)
	if err != nil {
		return classify(err)
	}
	defer page.Close()

	box, err := page.Element(`textarea`)
	if err != nil {
		return platform.Permanent(fmt.Sprintf("comment box not found: %v", err))
	}
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return classify(err)
	}
	if err := box.Input(text); err != nil {
		return classify(err)
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return classify(err)
	}
	if err := page.WaitStable(2 * time.Second); err != nil {
		return classify(err)
	}

	a.logger.Debug("comment submitted",
		zap.String("candidate", cand.ID))
	return platform.Success()
}

// classify maps a browser error to a terminal action status. Timeouts and
// connection problems are worth retrying; anything structural is not.
func classify(err error) platform.ActionResult {
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline") ||
		strings.Contains(lower, "connection") ||
		strings.Contains(lower, "network") {
		return platform.Transient(msg)
	}
	return platform.Permanent(msg)
}

// Close shuts the browser down.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser == nil {
		return nil
	}
	err := a.browser.Close()
	a.browser = nil
	a.loggedIn = false
	return err
}
