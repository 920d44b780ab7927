package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	eventsPath     = "/events"
	categoriesPath = "/categories"

	minPageSize = 1
	maxPageSize = 75
)

// AnnouncementsOptions parameterise the announcements client.
type AnnouncementsOptions struct {
	BaseURL  string
	APIKey   string
	PageSize int
	SortBy   string
	// Exchange is the venue whose listings the strategy trades; the event
	// title must mention it.
	Exchange string
	// ExchangeCategoryID is the category id the API assigns to exchange
	// events, matched when the category name alone is inconclusive.
	ExchangeCategoryID int
	Timeout            time.Duration
}

// Announcements pages through the announcements API and keeps only
// exchange-listing events.
type Announcements struct {
	opts    AnnouncementsOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewAnnouncements constructs an announcements client.
func NewAnnouncements(opts AnnouncementsOptions, logger zerolog.Logger) *Announcements {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Announcements{
		opts:    opts,
		logger:  logger.With().Str("component", "announcements_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchEvents pages through all events in [from, to] and returns the ones
// that look like listings on the configured exchange. Any HTTP failure on a
// page aborts the whole fetch; there is no partial result on error.
func (a *Announcements) FetchEvents(ctx context.Context, from, to time.Time) ([]ListingEvent, error) {
	if a.opts.APIKey == "" {
		return nil, errors.New("announcements api key not configured")
	}

	perPage := clampPageSize(a.opts.PageSize)

	common := url.Values{}
	common.Set("dateRangeStart", from.UTC().Format("2006-01-02"))
	common.Set("dateRangeEnd", to.UTC().Format("2006-01-02"))
	common.Set("max", strconv.Itoa(perPage))
	if a.opts.SortBy != "" {
		common.Set("sortBy", a.opts.SortBy)
	}

	// Restrict to listing-like categories when the API can tell us which
	// ones those are. Discovery failure is never fatal to the event fetch;
	// we simply fall back to an unfiltered query.
	if ids, err := a.listingCategoryIDs(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("category discovery failed; fetching unfiltered")
	} else if ids != "" {
		common.Set("categories", ids)
	}

	var raw []rawEvent
	for page := 1; ; page++ {
		params := url.Values{}
		for k, v := range common {
			params[k] = v
		}
		params.Set("page", strconv.Itoa(page))

		var res eventsResponse
		if err := a.getJSON(ctx, a.baseURL+eventsPath, params, &res); err != nil {
			return nil, fmt.Errorf("fetch events page %d: %w", page, err)
		}

		if len(res.Body) == 0 {
			break
		}
		raw = append(raw, res.Body...)

		if res.Metadata.PageCount > 0 && page >= res.Metadata.PageCount {
			break
		}
		// A short page means the server ran out of events.
		if len(res.Body) < perPage {
			break
		}
	}

	events := make([]ListingEvent, 0, len(raw))
	for _, ev := range raw {
		if !a.isListingEvent(ev) {
			continue
		}

		converted, err := convertEvent(ev)
		if err != nil {
			a.logger.Debug().Err(err).Str("title", ev.title()).Msg("skipping malformed event")
			continue
		}
		events = append(events, converted)
	}

	a.logger.Info().
		Int("fetched", len(raw)).
		Int("matched", len(events)).
		Str("exchange", a.opts.Exchange).
		Msg("listing events fetched")
	return events, nil
}

// listingCategoryIDs asks the API for its category directory and picks the
// ones whose names suggest exchange listings, so the ids never need to be
// hardcoded.
func (a *Announcements) listingCategoryIDs(ctx context.Context) (string, error) {
	var cats []rawCategory
	if err := a.getJSON(ctx, a.baseURL+categoriesPath, nil, &cats); err != nil {
		return "", err
	}

	var ids []string
	for _, c := range cats {
		name := strings.ToLower(c.Name)
		if strings.Contains(name, "list") || strings.Contains(name, "exchang") {
			ids = append(ids, strconv.Itoa(c.ID))
		}
	}
	return strings.Join(ids, ","), nil
}

// isListingEvent applies the relevance filter: the categories must look
// exchange-related (an event with no categories at all passes, so listings
// with incomplete tagging are not dropped) AND the title must mention the
// configured exchange. Both halves must hold.
func (a *Announcements) isListingEvent(ev rawEvent) bool {
	categoryOK := len(ev.Categories) == 0
	for _, c := range ev.Categories {
		if strings.Contains(strings.ToLower(c.Name), "exchange") || c.ID == a.opts.ExchangeCategoryID {
			categoryOK = true
			break
		}
	}
	if !categoryOK {
		return false
	}

	return strings.Contains(strings.ToLower(ev.title()), strings.ToLower(a.opts.Exchange))
}

func (a *Announcements) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", a.opts.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp.StatusCode, payload)
	}

	return json.Unmarshal(payload, out)
}

func convertEvent(ev rawEvent) (ListingEvent, error) {
	if len(ev.Coins) == 0 {
		return ListingEvent{}, errors.New("event has no coins")
	}
	coin := ev.Coins[0]

	dateStr := ev.DateEvent
	if dateStr == "" {
		dateStr = ev.CreatedDate
	}
	if dateStr == "" {
		return ListingEvent{}, errors.New("event has no date")
	}

	date, err := time.Parse(time.RFC3339, dateStr)
	if err != nil {
		return ListingEvent{}, fmt.Errorf("parse event date: %w", err)
	}

	return ListingEvent{
		CoinID:       coin.ID,
		CoinName:     coin.Name,
		CoinSymbol:   coin.Symbol,
		CoinFullname: coin.Fullname,
		EventName:    ev.Title.EN,
		EventDate:    date.UTC(),
	}, nil
}

func clampPageSize(size int) int {
	if size < minPageSize {
		return minPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

type eventsResponse struct {
	Body     []rawEvent `json:"body"`
	Metadata struct {
		PageCount int `json:"page_count"`
	} `json:"_metadata"`
}

type rawEvent struct {
	Coins []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Fullname string `json:"fullname"`
	} `json:"coins"`
	Title struct {
		EN string `json:"en"`
	} `json:"title"`
	// The API serves the raw title under a literal "-" key.
	RawTitle    string        `json:"-,"`
	DateEvent   string        `json:"date_event"`
	CreatedDate string        `json:"created_date"`
	Categories  []rawCategory `json:"categories"`
}

func (e rawEvent) title() string {
	if e.RawTitle != "" {
		return e.RawTitle
	}
	return e.Title.EN
}

type rawCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type apiErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

func parseAPIError(status int, payload []byte) error {
	var apiErr apiErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("announcements api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Description != "" {
			return fmt.Errorf("announcements api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("announcements api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("announcements api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("announcements api error (%d)", status)
}

var _ EventFetcher = (*Announcements)(nil)
