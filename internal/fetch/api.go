package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/gamepulse/catalog-ingest/internal/catalog"
	"github.com/gamepulse/catalog-ingest/internal/metrics"
)

// listFields is the projection requested from the list endpoint.
const listFields = "name,firstReleaseDate,earlyAccessExitDate,earlyAccess," +
	"copiesSold,price,revenue,avgPlaytime,reviewScore,publisherClass," +
	"publishers,developers,id,steamId"

// Page is one batch of primary records from the list endpoint.
type Page struct {
	Number int
	Total  int
	Games  []catalog.Game
}

// DetailFetcher yields the four reference-name lists for one record.
// The API client and the browser session both satisfy it, so the
// reconciliation path does not depend on which one supplied the data.
type DetailFetcher interface {
	Details(ctx context.Context, id int64) (catalog.Details, error)
}

// APIConfig controls the structured-data client.
type APIConfig struct {
	BaseURL   string
	PageSize  int
	UserAgent string
	Timeout   time.Duration
}

// APIClient fetches list pages and record details from the catalog API.
type APIClient struct {
	cfg    APIConfig
	base   *colly.Collector
	policy Policy
	pause  Pauser
	logger *zap.Logger
}

// NewAPIClient builds an APIClient around a colly collector.
func NewAPIClient(cfg APIConfig, policy Policy, pause Pauser, logger *zap.Logger) (*APIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &APIClient{
		cfg:    cfg,
		base:   c,
		policy: policy,
		pause:  pause,
		logger: logger,
	}, nil
}

// PageSize returns the configured records-per-page.
func (c *APIClient) PageSize() int { return c.cfg.PageSize }

// ListPage fetches one page of primary records, retrying per the policy.
// Exhaustion is returned as *ExhaustedError with the page number.
func (c *APIClient) ListPage(ctx context.Context, page int) (Page, error) {
	params := url.Values{}
	params.Set("fields", listFields)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	target := fmt.Sprintf("%s/steam-games/list?%s", c.cfg.BaseURL, params.Encode())

	var resp listResponse
	err := Retry(ctx, c.policy, c.pause, c.logger, UnitPage, int64(page), func(ctx context.Context) error {
		body, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &resp)
	})
	if err != nil {
		return Page{}, err
	}

	games := make([]catalog.Game, 0, len(resp.Result))
	for _, rec := range resp.Result {
		games = append(games, rec.toGame())
	}
	metrics.ObservePageFetched()
	return Page{Number: page, Total: resp.Total, Games: games}, nil
}

// Details fetches the reference-name lists for one record, retrying per the
// policy. Exhaustion is returned as *ExhaustedError with the record id.
func (c *APIClient) Details(ctx context.Context, id int64) (catalog.Details, error) {
	params := url.Values{}
	params.Set("include_pre_release_history", "true")
	target := fmt.Sprintf("%s/game/%d?%s", c.cfg.BaseURL, id, params.Encode())

	var resp detailResponse
	err := Retry(ctx, c.policy, c.pause, c.logger, UnitGame, id, func(ctx context.Context) error {
		body, err := c.get(ctx, target)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &resp)
	})
	if err != nil {
		return catalog.Details{}, err
	}
	return catalog.Details{
		Genres:    resp.Genres,
		Tags:      resp.Tags,
		Features:  resp.Features,
		Languages: resp.Languages,
	}, nil
}

// contextTransport binds outgoing requests to the caller's context so a
// canceled fetch aborts the in-flight request instead of letting it run to
// the request timeout.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// get executes a single GET through a cloned collector. A non-success
// status surfaces through colly's error callback.
func (c *APIClient) get(ctx context.Context, target string) ([]byte, error) {
	collector := c.base.Clone()
	collector.WithTransport(&contextTransport{ctx: ctx, base: http.DefaultTransport})

	var (
		body     []byte
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", target, err)
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return body, nil
	}
}

type listResponse struct {
	Total  int          `json:"total"`
	Result []gameRecord `json:"result"`
}

// gameRecord mirrors the list endpoint's JSON. Timestamps arrive as
// millisecond epochs.
type gameRecord struct {
	SteamID             int64    `json:"steamId"`
	Name                string   `json:"name"`
	FirstReleaseDate    float64  `json:"firstReleaseDate"`
	EarlyAccessExitDate *float64 `json:"earlyAccessExitDate"`
	EarlyAccess         bool     `json:"earlyAccess"`
	CopiesSold          float64  `json:"copiesSold"`
	Price               float64  `json:"price"`
	Revenue             float64  `json:"revenue"`
	AvgPlaytime         float64  `json:"avgPlaytime"`
	ReviewScore         float64  `json:"reviewScore"`
	PublisherClass      string   `json:"publisherClass"`
	Publishers          []string `json:"publishers"`
	Developers          []string `json:"developers"`
}

func (g gameRecord) toGame() catalog.Game {
	game := catalog.Game{
		ID:               g.SteamID,
		Name:             g.Name,
		FirstReleaseDate: millisToTime(g.FirstReleaseDate),
		EarlyAccess:      g.EarlyAccess,
		CopiesSold:       int64(g.CopiesSold),
		Price:            g.Price,
		Revenue:          g.Revenue,
		AvgPlaytime:      g.AvgPlaytime,
		ReviewScore:      int(g.ReviewScore),
		PublisherClass:   g.PublisherClass,
		Publishers:       g.Publishers,
		Developers:       g.Developers,
	}
	if g.EarlyAccessExitDate != nil {
		exit := millisToTime(*g.EarlyAccessExitDate)
		game.EarlyAccessExitDate = &exit
	}
	return game
}

func millisToTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

type detailResponse struct {
	Genres    []string `json:"genres"`
	Tags      []string `json:"tags"`
	Features  []string `json:"features"`
	Languages []string `json:"languages"`
}
