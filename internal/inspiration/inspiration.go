// Package inspiration supplies the "mission of the day" line shown above the
// mural.
//
// Providers are best effort. The mural never waits on them: callers wrap the
// real providers in Fallback, which always answers, and in Daily, which asks
// the upstream at most once per calendar day.
package inspiration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vibeteen/vibe-teen/internal/repository"
)

// DefaultMission is shown when no provider can answer.
const DefaultMission = "Deus quer usar sua vida para abençoar alguém hoje!"

// MaxMissionLength trims runaway model output, in characters.
const MaxMissionLength = 140

// ErrEmpty means the provider answered but had nothing usable.
var ErrEmpty = errors.New("inspiration: empty response")

// Provider returns one short mission.
type Provider interface {
	Fetch(ctx context.Context) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (string, error)

// Fetch calls f.
func (f ProviderFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

// Chain tries each provider in order and returns the first usable answer.
type Chain []Provider

// Fetch returns the first non-empty mission, or all errors joined.
func (c Chain) Fetch(ctx context.Context) (string, error) {
	var errs []error
	for _, p := range c {
		text, err := p.Fetch(ctx)
		if err == nil {
			if text = Clean(text); text != "" {
				return text, nil
			}
			err = ErrEmpty
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", ErrEmpty
	}
	return "", errors.Join(errs...)
}

// Fallback never fails: any error, timeout or empty answer from the wrapped
// provider turns into the default mission. Failures are logged at debug level
// only; a missing mission is not an incident.
type Fallback struct {
	provider Provider
	text     string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewFallback wraps p. A nil p always yields the default. text == "" means
// DefaultMission; timeout <= 0 means no extra deadline.
func NewFallback(p Provider, text string, timeout time.Duration, logger *slog.Logger) *Fallback {
	if text == "" {
		text = DefaultMission
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{provider: p, text: text, timeout: timeout, logger: logger}
}

// Fetch implements Provider. The error is always nil.
func (f *Fallback) Fetch(ctx context.Context) (string, error) {
	if f.provider == nil {
		return f.text, nil
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	text, err := f.provider.Fetch(ctx)
	if err == nil {
		text = Clean(text)
		if text == "" {
			err = ErrEmpty
		}
	}
	if err != nil {
		f.logger.Debug("inspiration unavailable, using default", slog.String("error", err.Error()))
		return f.text, nil
	}
	return text, nil
}

// Daily caches one mission per calendar day in the settings table, so every
// visitor sees the same line and the upstream is asked once a day.
type Daily struct {
	provider Provider
	settings repository.SettingsRepository
	now      func() time.Time
	loc      *time.Location
}

// NewDaily wraps p with a per-day cache. loc decides when the day changes;
// nil means time.Local.
func NewDaily(p Provider, settings repository.SettingsRepository, loc *time.Location) *Daily {
	if loc == nil {
		loc = time.Local
	}
	return &Daily{provider: p, settings: settings, now: time.Now, loc: loc}
}

// Key is the settings key for the given day, e.g. "mission:2026-10-17".
func (d *Daily) Key(t time.Time) string {
	return "mission:" + t.In(d.loc).Format(time.DateOnly)
}

// Fetch implements Provider. Errors from the upstream are returned as-is and
// nothing is cached, so the next call tries again.
func (d *Daily) Fetch(ctx context.Context) (string, error) {
	key := d.Key(d.now())

	if v, ok, err := d.settings.GetSetting(ctx, key); err == nil && ok && v != "" {
		return v, nil
	}

	text, err := d.provider.Fetch(ctx)
	if err != nil {
		return "", err
	}
	text = Clean(text)
	if text == "" {
		return "", ErrEmpty
	}
	if err := d.settings.SetSetting(ctx, key, text); err != nil {
		return text, fmt.Errorf("inspiration: caching mission: %w", err)
	}
	return text, nil
}

// Clean keeps the first non-empty line, strips surrounding quotes and
// markdown emphasis, and caps the length.
func Clean(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "\"'“”*_ ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > MaxMissionLength {
			r := []rune(line)
			line = strings.TrimSpace(string(r[:MaxMissionLength-1])) + "…"
		}
		return line
	}
	return ""
}
