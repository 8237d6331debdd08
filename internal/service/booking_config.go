package service

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Defaults used when the feature file leaves a key out.
const (
	DefaultTimeZone               = "America/Sao_Paulo"
	DefaultBufferMinutes          = 15
	DefaultDurationMinutes        = 60
	DefaultOpenHour               = 8
	DefaultCloseHour              = 18
	DefaultConflictMaxResults     = 10
	DefaultLockTTLSeconds         = 30
	DefaultConfirmationMode       = "tty"
	defaultCalendarSendUpdatesKey = "send_updates"
)

var (
	DefaultWorkingDays = []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	DefaultAffirmative = []string{"s", "sim", "y", "yes"}
	DefaultCreateGates = []string{"business_hours", "conflict", "confirmation"}
	DefaultUpdateGates = []string{"confirmation"}
	DefaultDeleteGates = []string{}
)

// CalendarConfig holds configuration for Google Calendar integration
type CalendarConfig struct {
	CalendarID         string `toml:"calendar_id"`
	ServiceAccountPath string `toml:"service_account_path"`
	OAuthClientPath    string `toml:"oauth_client_path"`
	TokenPath          string `toml:"token_path"`
	// SendUpdates is passed to the API on writes: "all", "externalOnly" or "none".
	SendUpdates string `toml:"send_updates"`
}

// BookingConfig holds the scheduling policy.
type BookingConfig struct {
	TimeZone               string   `toml:"timezone"`
	BufferMinutes          int      `toml:"buffer_minutes"`
	// LeadBufferMinutes is the gap kept before a new visit. It follows
	// BufferMinutes when unset.
	LeadBufferMinutes      int      `toml:"lead_buffer_minutes"`
	DefaultDurationMinutes int      `toml:"default_duration_minutes"`
	OpenHour               int      `toml:"open_hour"`
	CloseHour              int      `toml:"close_hour"`
	WorkingDays            []string `toml:"working_days"`
	ConflictMaxResults     int      `toml:"conflict_max_results"`
	LockTTLSeconds         int      `toml:"lock_ttl_seconds"`
}

// ConfirmationConfig controls the human confirmation channel.
type ConfirmationConfig struct {
	// Mode is one of "tty", "stdin", "auto_deny", "auto_approve".
	Mode        string   `toml:"mode"`
	Affirmative []string `toml:"affirmative"`
	// TimeoutSeconds of 0 waits for the operator indefinitely.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// GatesConfig lists the gates each write operation must pass.
type GatesConfig struct {
	Create []string `toml:"create"`
	Update []string `toml:"update"`
	Delete []string `toml:"delete"`
}

// FeatureConfig holds user-facing feature configurations.
// These are non-sensitive settings that customize application behavior
// and integrations. Users can modify these without redeployment.
// Source: TOML configuration file
type FeatureConfig struct {
	Calendar     CalendarConfig     `toml:"calendar"`
	Booking      BookingConfig      `toml:"booking"`
	Confirmation ConfirmationConfig `toml:"confirmation"`
	Gates        GatesConfig        `toml:"gates"`
}

// LoadFeatureConfig loads feature configuration from a TOML file
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	var cfg FeatureConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("failed to load feature config: unknown key %q", undecoded[0].String())
	}

	cfg.applyDefaults(md.IsDefined)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultFeatureConfig returns the configuration used when no file exists.
func DefaultFeatureConfig() *FeatureConfig {
	var cfg FeatureConfig
	cfg.applyDefaults(func(...string) bool { return false })
	return &cfg
}

// applyDefaults fills keys the file did not define. Zero is a legitimate
// explicit value for buffer_minutes and open_hour, and an empty list is a
// legitimate explicit gate list, hence the IsDefined checks.
func (c *FeatureConfig) applyDefaults(defined func(key ...string) bool) {
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = defaultCalendarID
	}

	b := &c.Booking
	if b.TimeZone == "" {
		b.TimeZone = DefaultTimeZone
	}
	if !defined("booking", "buffer_minutes") {
		b.BufferMinutes = DefaultBufferMinutes
	}
	if !defined("booking", "lead_buffer_minutes") {
		b.LeadBufferMinutes = b.BufferMinutes
	}
	if b.DefaultDurationMinutes == 0 {
		b.DefaultDurationMinutes = DefaultDurationMinutes
	}
	if !defined("booking", "open_hour") {
		b.OpenHour = DefaultOpenHour
	}
	if b.CloseHour == 0 {
		b.CloseHour = DefaultCloseHour
	}
	if !defined("booking", "working_days") {
		b.WorkingDays = append([]string(nil), DefaultWorkingDays...)
	}
	if b.ConflictMaxResults == 0 {
		b.ConflictMaxResults = DefaultConflictMaxResults
	}
	if b.LockTTLSeconds == 0 {
		b.LockTTLSeconds = DefaultLockTTLSeconds
	}

	if c.Confirmation.Mode == "" {
		c.Confirmation.Mode = DefaultConfirmationMode
	}
	if len(c.Confirmation.Affirmative) == 0 {
		c.Confirmation.Affirmative = append([]string(nil), DefaultAffirmative...)
	}

	if !defined("gates", "create") {
		c.Gates.Create = append([]string(nil), DefaultCreateGates...)
	}
	if !defined("gates", "update") {
		c.Gates.Update = append([]string(nil), DefaultUpdateGates...)
	}
	if !defined("gates", "delete") {
		c.Gates.Delete = append([]string(nil), DefaultDeleteGates...)
	}
}

// Validate checks value ranges that TOML typing cannot express.
func (c *FeatureConfig) Validate() error {
	b := c.Booking
	if b.OpenHour < 0 || b.OpenHour > 23 {
		return fmt.Errorf("booking.open_hour must be between 0 and 23")
	}
	if b.CloseHour <= b.OpenHour || b.CloseHour > 24 {
		return fmt.Errorf("booking.close_hour must be after open_hour and at most 24")
	}
	if b.BufferMinutes < 0 {
		return fmt.Errorf("booking.buffer_minutes must not be negative")
	}
	if b.LeadBufferMinutes < 0 {
		return fmt.Errorf("booking.lead_buffer_minutes must not be negative")
	}
	if b.DefaultDurationMinutes < 0 {
		return fmt.Errorf("booking.default_duration_minutes must be positive")
	}
	if b.ConflictMaxResults < 0 {
		return fmt.Errorf("booking.conflict_max_results must not be negative")
	}
	if c.Confirmation.TimeoutSeconds < 0 {
		return fmt.Errorf("confirmation.timeout_seconds must not be negative")
	}
	switch c.Confirmation.Mode {
	case "tty", "stdin", "auto_deny", "auto_approve":
	default:
		return fmt.Errorf("confirmation.mode %q is not one of tty, stdin, auto_deny, auto_approve", c.Confirmation.Mode)
	}
	switch c.Calendar.SendUpdates {
	case "", "all", "externalOnly", "none":
	default:
		return fmt.Errorf("calendar.%s %q is not one of all, externalOnly, none", defaultCalendarSendUpdatesKey, c.Calendar.SendUpdates)
	}
	return nil
}
