package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// Validate checks struct tags and the settings tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, _, err := ParseRate(c.Bot.RateLimit); err != nil {
		return fmt.Errorf("invalid bot.rate_limit: %w", err)
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && strings.TrimSpace(task.Schedule) == "" {
			return fmt.Errorf("scheduler task %q is enabled without a schedule", name)
		}
	}

	if strings.Count(c.Messages.Settings, "%s") != 5 {
		return fmt.Errorf("messages.settings must contain five %%s placeholders")
	}

	return nil
}

// IsUserAuthorized reports whether userID may talk to the bot.
// An empty allow-list admits everyone.
func (c *Config) IsUserAuthorized(userID int64) bool {
	if len(c.Bot.AllowedUserIDs) == 0 {
		return true
	}
	return slices.Contains(c.Bot.AllowedUserIDs, userID)
}

// ParseRate parses "N/unit" where unit is second, minute or hour
// (s, m, h and plurals accepted). It returns the limit and the event count,
// which serves as the default burst.
func ParseRate(s string) (rate.Limit, int, error) {
	count, unit, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q must look like 30/minute", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil || n <= 0 {
		return 0, 0, fmt.Errorf("rate %q must start with a positive count", s)
	}

	var per time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "s", "sec", "second", "seconds":
		per = time.Second
	case "m", "min", "minute", "minutes":
		per = time.Minute
	case "h", "hour", "hours":
		per = time.Hour
	default:
		return 0, 0, fmt.Errorf("rate %q has unknown unit %q", s, unit)
	}

	return rate.Every(per / time.Duration(n)), n, nil
}
