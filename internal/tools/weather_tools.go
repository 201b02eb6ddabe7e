package tools

import (
	"context"
	"errors"
	"time"

	"github.com/agentfriend/agentfriend/internal/weather"
)

func (r *Registry) registerWeatherTools() {
	r.Register(&Tool{
		Name:        "weather_lookup",
		Description: "Get the current weather for a given city or location.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City or place name (e.g., London, New York, Tokyo)",
				},
			},
			"required": []string{"location"},
		},
		Handler: r.handleWeatherLookup,
	})

	r.Register(&Tool{
		Name:        "current_time",
		Description: "Get the current time, optionally in a specific IANA timezone.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{
					"type":        "string",
					"description": "IANA timezone name (e.g., Europe/London). Defaults to local time.",
				},
			},
		},
		Handler: r.handleCurrentTime,
	})
}

func (r *Registry) handleWeatherLookup(ctx context.Context, args map[string]any) Outcome {
	if r.weather == nil {
		return Failure(ReasonUpstreamUnavailable, "weather backend not configured")
	}

	location := stringArg(args, "location")
	if location == "" {
		return Failure(ReasonInvalidArguments, "location must not be empty")
	}

	report, err := r.weather.Lookup(ctx, location)
	if err != nil {
		switch {
		case errors.Is(err, weather.ErrLocationNotFound):
			return Failure(ReasonLocationNotFound, "no weather data for %q", location)
		default:
			return Failure(ReasonUpstreamUnavailable, "weather lookup failed: %v", err)
		}
	}

	return Success(map[string]any{
		"location":    report.Location,
		"temperature": report.TempC,
		"unit":        report.Unit,
		"conditions":  report.Conditions,
	})
}

func (r *Registry) handleCurrentTime(_ context.Context, args map[string]any) Outcome {
	now := time.Now()
	tz := stringArg(args, "timezone")

	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Failure(ReasonInvalidArguments, "unknown timezone %q", tz)
		}
		now = now.In(loc)
	} else {
		tz = now.Location().String()
	}

	return Success(map[string]any{
		"time":     now.Format("2006-01-02 15:04:05"),
		"timezone": tz,
	})
}
