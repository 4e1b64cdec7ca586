package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
	"github.com/uhyunpark/hyperpredict/pkg/app/core/oracle"
)

var ErrNoObservation = errors.New("no observation")

// HTTPFeed reads reference values from a price service exposing
//
//	GET {base}/feeds/{feedID}?at={RFC3339}
//
// which answers with the first observation at or after the given time as
// {"value": "<decimal>", "at": "<RFC3339>"}.
type HTTPFeed struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

// requestsPerSec caps calls to the price service.
const requestsPerSec = 10

func NewHTTPFeed(base string, timeout time.Duration) *HTTPFeed {
	return &HTTPFeed{
		base:    strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(requestsPerSec, requestsPerSec),
	}
}

type observationResponse struct {
	Value fixed.Point `json:"value"`
	At    time.Time   `json:"at"`
}

func (f *HTTPFeed) FetchReferenceValue(ctx context.Context, feedID string, atOrAfter time.Time) (oracle.Observation, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return oracle.Observation{}, err
	}
	u := fmt.Sprintf("%s/feeds/%s?at=%s", f.base, url.PathEscape(feedID), url.QueryEscape(atOrAfter.UTC().Format(time.RFC3339)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return oracle.Observation{}, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return oracle.Observation{}, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return oracle.Observation{}, fmt.Errorf("%w: %s at %s", ErrNoObservation, feedID, atOrAfter.UTC().Format(time.RFC3339))
	default:
		return oracle.Observation{}, fmt.Errorf("feed %s: unexpected status %d", feedID, resp.StatusCode)
	}

	var body observationResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return oracle.Observation{}, fmt.Errorf("decode observation: %w", err)
	}
	return oracle.Observation{Value: body.Value, At: body.At}, nil
}

var _ oracle.Feed = (*HTTPFeed)(nil)
