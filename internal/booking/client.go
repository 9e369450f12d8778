package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"classwatch/pkg/logx"
)

// DefaultEndpoint is the bookable class query API of the remote source.
const DefaultEndpoint = "https://hal.virginactive.com.sg/api/classes/bookableclassquery"

type ClientConfig struct {
	Endpoint string
	Timeout  time.Duration
	// RatePerSec bounds outbound queries so a reconciliation pass with
	// many watched classes does not hammer the remote API.
	RatePerSec int
}

// Client issues bookable-class queries against the remote source.
// It performs no retries; an error always means "state unknown".
type Client struct {
	endpoint string
	http     *http.Client
	log      logx.Logger

	mu      sync.Mutex
	limiter *rate.Limiter
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
	c.SetRate(cfg.RatePerSec)
	return c
}

// SetRate updates the outbound query limit. Zero or negative disables
// limiting. Safe for concurrent use (config hot reload).
func (c *Client) SetRate(perSec int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if perSec <= 0 {
		c.limiter = nil
		return
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSec), perSec)
}

// wire format of the remote API

type queryRequest struct {
	Category int    `json:"Category"`
	AMPM     string `json:"AMPM"`
	ISODate  string `json:"ISODate"`
	SiteID   string `json:"SiteID"`
}

type sessionRecord struct {
	BookingID       int64   `json:"BookingID"`
	TimeString      string  `json:"TimeString"`
	ClassName       string  `json:"ClassName"`
	Instructor      *string `json:"Instructor"`
	SpacesRemaining int     `json:"SpacesRemaining"`
}

// Query fetches all sessions for one site and date. An empty result is
// a valid success (no classes that day) and is distinct from any error.
func (c *Client) Query(ctx context.Context, loc Location, isoDate string) ([]ClassSession, error) {
	if !loc.Valid() {
		return nil, fmt.Errorf("unknown location code %q", loc)
	}
	if !ValidISODate(isoDate) {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", isoDate)
	}

	c.mu.Lock()
	lim := c.limiter
	c.mu.Unlock()
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(queryRequest{
		Category: 0,
		AMPM:     "ALL",
		ISODate:  isoDate,
		SiteID:   string(loc),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	var records []sessionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	sessions := make([]ClassSession, 0, len(records))
	for _, r := range records {
		s := ClassSession{
			BookingID: r.BookingID,
			Time:      r.TimeString,
			Name:      r.ClassName,
			Spaces:    r.SpacesRemaining,
		}
		if r.Instructor != nil {
			s.Instructor = *r.Instructor
		}
		if s.Spaces < 0 {
			s.Spaces = 0
		}
		sessions = append(sessions, s)
	}

	c.log.Debug("query completed",
		logx.String("site", string(loc)),
		logx.String("date", isoDate),
		logx.Int("sessions", len(sessions)),
		logx.Duration("dur", time.Since(start)),
	)
	return sessions, nil
}
