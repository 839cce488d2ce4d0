package kraken

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	minOrderURL  = "https://support.kraken.com/hc/en-us/articles/205893708-Minimum-order-size-volume-for-trading"
	statusURL    = "https://status.kraken.com/api/v2/status.json"
	stateUnknown = "UNKNOWN"
)

// Scraper fetches supplementary data that the REST API does not expose
// cleanly: the published minimum order size table and the operational status
// page. Both lookups are best effort.
type Scraper struct {
	client *resty.Client
	log    *logrus.Entry
}

func NewScraper(log *logrus.Logger) *Scraper {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", "krakenbot/1.0")
	return &Scraper{
		client: client,
		log:    log.WithField("component", "scraper"),
	}
}

// Table rows pair an asset alt name with its minimum volume, e.g.
// <td>XBT</td><td>0.0001</td>.
var minOrderRow = regexp.MustCompile(`<td[^>]*>\s*([A-Z0-9]{2,10})\s*</td>\s*<td[^>]*>\s*([0-9]+(?:\.[0-9]+)?)\s*</td>`)

// MinOrderSizes scrapes the published minimum order size table, keyed by
// asset alt name. A non-200 answer yields an empty map, not an error.
func (s *Scraper) MinOrderSizes(ctx context.Context) (map[string]decimal.Decimal, error) {
	resp, err := s.client.R().SetContext(ctx).Get(minOrderURL)
	if err != nil {
		return nil, fmt.Errorf("minimum order sizes: %w", err)
	}
	minimums := make(map[string]decimal.Decimal)
	if resp.StatusCode() != 200 {
		s.log.WithField("status", resp.StatusCode()).Warn("minimum order size page unavailable")
		return minimums, nil
	}
	for _, row := range minOrderRow.FindAllStringSubmatch(resp.String(), -1) {
		value, err := decimal.NewFromString(row[2])
		if err != nil {
			continue
		}
		minimums[row[1]] = value
	}
	return minimums, nil
}

type statusPage struct {
	Status struct {
		Description string `json:"description"`
	} `json:"status"`
}

// APIState returns the venue status page description, or UNKNOWN when the
// page cannot be reached.
func (s *Scraper) APIState(ctx context.Context) string {
	var page statusPage
	resp, err := s.client.R().SetContext(ctx).SetResult(&page).Get(statusURL)
	if err != nil || resp.StatusCode() != 200 {
		return stateUnknown
	}
	if page.Status.Description == "" {
		return stateUnknown
	}
	return page.Status.Description
}
