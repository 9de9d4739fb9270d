package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"occupancy-classifier/internal/model"
)

// Client fetches the relations from an HTTP service exposing
// GET /households and GET /motion as JSON arrays.
type Client struct {
	base string
	rest *resty.Client
}

func NewClient(base string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(10 * time.Second)
	}
	r.SetHeader("Accept", "application/json")
	return &Client{base: strings.TrimRight(base, "/"), rest: r}
}

// Fetch retrieves both relations.
func (c *Client) Fetch(ctx context.Context) (*Relations, error) {
	var households []model.Household
	if err := c.get(ctx, "/households", &households); err != nil {
		return nil, err
	}
	var records []motionRecord
	if err := c.get(ctx, "/motion", &records); err != nil {
		return nil, err
	}

	motion := make([]model.MotionEvent, len(records))
	for i, r := range records {
		ts, err := timestampValue(r.Datetime)
		if err != nil {
			return nil, fmt.Errorf("motion event %d: %w", r.ID, err)
		}
		motion[i] = model.MotionEvent{ID: r.ID, HomeID: r.HomeID, Timestamp: ts, Location: r.Location}
	}
	return &Relations{Households: households, Motion: motion}, nil
}

// motionRecord is the wire form of a motion event. datetime may be any
// layout the SQL and CSV loaders accept, or Unix seconds.
type motionRecord struct {
	ID       int64  `json:"id"`
	HomeID   int64  `json:"home_id"`
	Datetime any    `json:"datetime"`
	Location string `json:"location"`
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(result).
		Get(c.base + path)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("API error on %s: status %d, body: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}
