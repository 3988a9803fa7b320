package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const timeDescription = `Reports the current date and time.

Usage notes:
  - Returns RFC 3339 time, unix seconds, and the weekday
  - Pass an IANA timezone name (for example "Europe/Berlin") to convert; the default is UTC`

// TimeTool reports the current time, optionally in a given timezone.
type TimeTool struct{}

type timeArgs struct {
	Timezone string `json:"timezone,omitempty"`
}

// TimeResult is the JSON value handed back to the model.
type TimeResult struct {
	Time     string `json:"time"`
	Unix     int64  `json:"unix"`
	Weekday  string `json:"weekday"`
	Timezone string `json:"timezone"`
}

// NewTimeTool creates the time tool.
func NewTimeTool() *TimeTool {
	return &TimeTool{}
}

func (t *TimeTool) Name() string        { return "time" }
func (t *TimeTool) Description() string { return timeDescription }

func (t *TimeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "IANA timezone name, e.g. America/New_York (defaults to UTC)"
			}
		}
	}`)
}

func (t *TimeTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var params timeArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	loc := time.UTC
	if params.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(params.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", params.Timezone, err)
		}
	}

	now := time.Now().In(loc)
	return &TimeResult{
		Time:     now.Format(time.RFC3339),
		Unix:     now.Unix(),
		Weekday:  now.Weekday().String(),
		Timezone: loc.String(),
	}, nil
}
