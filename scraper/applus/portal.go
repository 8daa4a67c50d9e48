package applus

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"zeitprognose/config"
	"zeitprognose/models"
	"zeitprognose/utils"
)

const pageTimeout = 45 * time.Second

// Portal reads orders from the ap+ web portal with a headless browser.
// The portal renders order data client-side, so plain HTTP is not enough.
type Portal struct {
	baseURL   string
	chromeBin string
	logger    *utils.Logger
	pool      *utils.WorkerPool
	retry     *utils.RetryConfig
}

// NewPortal creates a Portal for cfg.APPlusURL.
func NewPortal(cfg *config.Config, logger *utils.Logger) *Portal {
	return &Portal{
		baseURL:   strings.TrimRight(cfg.APPlusURL, "/"),
		chromeBin: cfg.ChromeBin,
		logger:    logger,
		pool:      utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			MaxDelay:    15 * time.Second,
			Logger:      logger,
		},
	}
}

// Order fetches a single order page.
func (p *Portal) Order(ctx context.Context, number string) (models.Order, error) {
	browser, cancel := p.newBrowser(ctx)
	defer cancel()
	return p.fetchOrder(browser, strings.TrimSpace(number))
}

// Orders lists all open orders and fetches each one through the worker pool.
// Orders that fail to load are logged and left out.
func (p *Portal) Orders(ctx context.Context) ([]models.Order, error) {
	browser, cancel := p.newBrowser(ctx)
	defer cancel()

	numbers, err := p.listOrderNumbers(browser)
	if err != nil {
		return nil, err
	}
	p.logger.Info("[applus] Found %d orders", len(numbers))

	var (
		mu     sync.Mutex
		orders []models.Order
		seen   = utils.NewKeySet()
	)
	for _, n := range numbers {
		number := n
		if !seen.Add(number) {
			p.logger.Debug("[applus] Skipping duplicate order %s", number)
			continue
		}
		p.pool.Submit(func() {
			o, err := p.fetchOrder(browser, number)
			if err != nil {
				p.logger.Warn("[applus] Order %s failed: %v", number, err)
				return
			}
			mu.Lock()
			orders = append(orders, o)
			mu.Unlock()
		})
	}
	p.pool.Wait()

	sort.Slice(orders, func(i, j int) bool { return orders[i].Number < orders[j].Number })
	p.logger.Info("[applus] Loaded %d/%d orders", len(orders), seen.Size())
	return orders, nil
}

func (p *Portal) newBrowser(ctx context.Context) (context.Context, context.CancelFunc) {
	chromeBin := p.chromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	p.logger.Debug("[applus] Using browser binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	return browserCtx, func() {
		cancelBrowser()
		cancelAlloc()
	}
}

func (p *Portal) listOrderNumbers(browser context.Context) ([]string, error) {
	var numbers []string
	err := p.retry.Do(browser, "list-orders", func(ctx context.Context) error {
		tab, cancel := chromedp.NewContext(ctx)
		defer cancel()
		tab, cancelTimeout := context.WithTimeout(tab, pageTimeout)
		defer cancelTimeout()

		return chromedp.Run(tab,
			chromedp.Navigate(p.baseURL+"/auftraege"),
			chromedp.WaitReady("body"),
			chromedp.Evaluate(`
				Array.from(document.querySelectorAll('[data-order-number]'))
					.map(function(el) { return el.getAttribute('data-order-number').trim(); })
					.filter(function(n) { return n.length > 0; })
			`, &numbers),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("applus: list orders: %w", err)
	}
	return numbers, nil
}

func (p *Portal) fetchOrder(browser context.Context, number string) (models.Order, error) {
	if number == "" {
		return models.Order{}, fmt.Errorf("order number is empty: %w", models.ErrOrderNotFound)
	}

	var raw rawOrder
	err := p.retry.Do(browser, "order "+number, func(ctx context.Context) error {
		tab, cancel := chromedp.NewContext(ctx)
		defer cancel()
		tab, cancelTimeout := context.WithTimeout(tab, pageTimeout)
		defer cancelTimeout()

		return chromedp.Run(tab,
			chromedp.Navigate(p.baseURL+"/auftraege/"+url.PathEscape(number)),
			chromedp.WaitReady("body"),
			chromedp.Evaluate(`
				(function() {
					var text = function(root, sel) {
						var el = root.querySelector(sel);
						return el ? el.innerText.trim() : '';
					};
					var head = document.querySelector('[data-order-number]');
					var result = {
						number: head ? head.getAttribute('data-order-number') : '',
						employee: text(document, '[data-field="assigned_employee"]'),
						systems: []
					};
					document.querySelectorAll('tr[data-system]').forEach(function(row) {
						result.systems.push({
							product_type: text(row, '[data-field="product_type"]'),
							area: text(row, '[data-field="area_m2"]'),
							side_cladding: text(row, '[data-field="side_cladding"]'),
							roof_type: text(row, '[data-field="roof_type"]'),
							trades: text(row, '[data-field="trade_count"]')
						});
					});
					return result;
				})()
			`, &raw),
		)
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("applus: fetch order %s: %w", number, err)
	}
	if strings.TrimSpace(raw.Number) == "" {
		return models.Order{}, fmt.Errorf("order %q: %w", number, models.ErrOrderNotFound)
	}
	return raw.toOrder()
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// NewSource picks the portal when a URL is configured, the simulated orders
// otherwise.
func NewSource(cfg *config.Config, logger *utils.Logger) OrderSource {
	if strings.TrimSpace(cfg.APPlusURL) == "" {
		logger.Info("[applus] APPLUS_URL not set, serving simulated orders")
		return NewSimulated()
	}
	return NewPortal(cfg, logger)
}
