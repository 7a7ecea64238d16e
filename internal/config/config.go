package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"eventline/internal/schedule"
)

// Permissions granted to organizer roles.
const (
	PermEventWrite     = "event.write"
	PermTimelineWrite  = "timeline.write"
	PermContactsWrite  = "contacts.write"
	PermDocumentsWrite = "documents.write"
	PermShareManage    = "share.manage"
	PermOrganizers     = "organizers.manage"
)

// Config models eventline.yml, the planning settings of one event.
type Config struct {
	Event struct {
		ID string `yaml:"id" json:"id"`
	} `yaml:"event" json:"event"`
	Timeline struct {
		// Anchor is the start of day while the timeline is empty.
		Anchor          string   `yaml:"anchor" json:"anchor"`
		DefaultDuration int      `yaml:"default_duration" json:"default_duration"`
		Categories      []string `yaml:"categories" json:"categories"`
	} `yaml:"timeline" json:"timeline"`
	Sharing struct {
		LinkTTL string `yaml:"link_ttl" json:"link_ttl"`
	} `yaml:"sharing" json:"sharing"`
	RBAC struct {
		Roles map[string]RBACRole `yaml:"roles" json:"roles"`
	} `yaml:"rbac" json:"rbac"`
}

type RBACRole struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Event.ID == "" {
		return fmt.Errorf("config.event.id is required")
	}
	if c.Timeline.Anchor != "" && !schedule.ValidTime(c.Timeline.Anchor) {
		return fmt.Errorf("config.timeline.anchor %q must be HH:MM", c.Timeline.Anchor)
	}
	if c.Timeline.DefaultDuration < 0 {
		return fmt.Errorf("config.timeline.default_duration must be positive")
	}
	seen := map[string]bool{}
	for _, cat := range c.Timeline.Categories {
		if strings.TrimSpace(cat) == "" {
			return fmt.Errorf("config.timeline.categories contains an empty category")
		}
		if seen[cat] {
			return fmt.Errorf("config.timeline.categories lists %s twice", cat)
		}
		seen[cat] = true
	}
	if c.Sharing.LinkTTL != "" {
		ttl, err := time.ParseDuration(c.Sharing.LinkTTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("config.sharing.link_ttl %q is not a positive duration", c.Sharing.LinkTTL)
		}
	}
	if len(c.RBAC.Roles) > 0 {
		if _, ok := c.RBAC.Roles["owner"]; !ok {
			return fmt.Errorf("config.rbac.roles must include owner")
		}
		for roleID, role := range c.RBAC.Roles {
			if roleID == "" {
				return fmt.Errorf("config.rbac.roles contains empty role id")
			}
			for _, perm := range role.Permissions {
				if perm == "" {
					return fmt.Errorf("role %s has empty permission id", roleID)
				}
			}
		}
	}
	return nil
}

// Anchor returns the configured start of day or the default one.
func (c *Config) Anchor() string {
	if c == nil || c.Timeline.Anchor == "" {
		return schedule.DefaultAnchor
	}
	return c.Timeline.Anchor
}

// DefaultDuration is used for items created without a duration.
func (c *Config) DefaultDuration() int {
	if c == nil || c.Timeline.DefaultDuration <= 0 {
		return 30
	}
	return c.Timeline.DefaultDuration
}

// LinkTTL is the lifetime of new share links.
func (c *Config) LinkTTL() time.Duration {
	if c != nil && c.Sharing.LinkTTL != "" {
		if ttl, err := time.ParseDuration(c.Sharing.LinkTTL); err == nil && ttl > 0 {
			return ttl
		}
	}
	return 30 * 24 * time.Hour
}

// KnownCategory reports whether cat is listed. An empty list accepts anything.
func (c *Config) KnownCategory(cat string) bool {
	if c == nil || len(c.Timeline.Categories) == 0 || cat == "" {
		return true
	}
	for _, known := range c.Timeline.Categories {
		if strings.EqualFold(known, cat) {
			return true
		}
	}
	return false
}

// Allows reports whether role carries perm. Owners always do.
func (c *Config) Allows(role, perm string) bool {
	if role == "owner" {
		return true
	}
	if c == nil {
		return false
	}
	r, ok := c.RBAC.Roles[role]
	if !ok {
		return false
	}
	for _, p := range r.Permissions {
		if p == perm || p == "*" {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "eventline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(eventID string) string {
	return fmt.Sprintf(defaultTemplate, eventID)
}

// Default returns the default Config struct for an event.
func Default(eventID string) *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(GenerateDefault(eventID)), &cfg); err != nil {
		panic(fmt.Sprintf("default config: %v", err))
	}
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ToYAML renders the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `event:
  id: %s

timeline:
  anchor: "08:00"
  default_duration: 30
  categories: [Preparation, Logistics, Ceremony, Photos, Reception]

sharing:
  link_ttl: 720h

rbac:
  roles:
    owner:
      description: "Created the event; can do everything"
      permissions: ["*"]
    planner:
      description: "Runs the day-of schedule and contacts"
      permissions: [timeline.write, contacts.write, documents.write, share.manage]
    viewer:
      description: "Read-only organizer"
      permissions: []
`
