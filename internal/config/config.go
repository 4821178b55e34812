package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"printline/internal/authz"
	"printline/internal/deadline"
)

// Config models printline.yml.
type Config struct {
	Shop struct {
		ID   string `yaml:"id"`
		Kind string `yaml:"kind"`
	} `yaml:"shop"`
	Roles       map[string]Grant `yaml:"roles"`
	Departments map[string]Grant `yaml:"departments"`
	Deadlines   struct {
		Production deadline.Thresholds `yaml:"production"`
		Design     deadline.Thresholds `yaml:"design"`
	} `yaml:"deadlines"`
	Webhooks []Webhook `yaml:"webhooks"`
}

// Grant is one role or department definition with its capability tokens.
type Grant struct {
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
	Active      *bool    `yaml:"active"`
}

// IsActive treats an absent active flag as true.
func (g Grant) IsActive() bool {
	return g.Active == nil || *g.Active
}

type Webhook struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pln shop config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Shop.ID == "" {
		return fmt.Errorf("config.shop.id is required")
	}
	if c.Shop.Kind != "print-shop" {
		return fmt.Errorf("config.shop.kind must be 'print-shop'")
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("config.roles is required")
	}
	if _, ok := c.Roles["owner"]; !ok {
		return fmt.Errorf("config.roles must include owner")
	}
	for roleID, role := range c.Roles {
		if roleID == "" {
			return fmt.Errorf("config.roles contains empty role id")
		}
		for _, perm := range role.Permissions {
			if perm == "" {
				return fmt.Errorf("role %s has empty permission id", roleID)
			}
		}
	}
	for deptID, dept := range c.Departments {
		if deptID == "" {
			return fmt.Errorf("config.departments contains empty department id")
		}
		for _, perm := range dept.Permissions {
			if perm == "" {
				return fmt.Errorf("department %s has empty permission id", deptID)
			}
		}
	}
	for _, th := range []deadline.Thresholds{c.Deadlines.Production, c.Deadlines.Design} {
		if th.CriticalDays < 0 || th.WarningDays < 0 {
			return fmt.Errorf("deadline thresholds must not be negative")
		}
		if th.CriticalDays > 0 && th.WarningDays > 0 && th.WarningDays < th.CriticalDays {
			return fmt.Errorf("deadline warning threshold %d is inside the critical window %d", th.WarningDays, th.CriticalDays)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %d has no url", i)
		}
	}
	return nil
}

// Registry builds the capability registry from the configured roles and
// departments.
func (c *Config) Registry() *authz.Registry {
	roles := make(map[string]authz.Definition, len(c.Roles))
	for id, g := range c.Roles {
		roles[id] = authz.Definition{Name: g.Description, Permissions: g.Permissions, Active: g.IsActive()}
	}
	depts := make(map[string]authz.Definition, len(c.Departments))
	for id, g := range c.Departments {
		depts[id] = authz.Definition{Name: g.Description, Permissions: g.Permissions, Active: g.IsActive()}
	}
	return authz.NewRegistry(roles, depts)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "printline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(shopID string) string {
	return fmt.Sprintf(defaultTemplate, shopID)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a shop.
func Default(shopID string) *Config {
	var cfg Config
	cfg.Shop.ID = shopID
	cfg.Shop.Kind = "print-shop"
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, shopID))).Decode(&cfg)
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

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `shop:
  id: %s
  kind: print-shop

roles:
  owner:
    description: "Shop owner"
    permissions:
      - clients.create
      - clients.read
      - clients.update
      - clients.delete
      - orders.create
      - orders.read
      - jobs.create
      - jobs.read
      - jobs.execute
      - designs.create
      - designs.read
      - design.submit
      - design.approve
      - payments.create
      - payments.read
      - payments.approve
      - alerts.read
      - staff.manage
      - events.read
      - keys.manage
      - shop.config.read
      - shop.config.write

  manager:
    description: "Floor manager"
    permissions:
      - clients.create
      - clients.read
      - clients.update
      - orders.create
      - orders.read
      - jobs.create
      - jobs.read
      - jobs.execute
      - designs.create
      - designs.read
      - design.approve
      - payments.create
      - payments.read
      - payments.approve
      - alerts.read
      - events.read

  designer:
    description: "Artwork designer"
    permissions:
      - orders.read
      - designs.create
      - designs.read
      - design.submit
      - alerts.read

  operator:
    description: "Machine operator"
    permissions:
      - orders.read
      - jobs.read
      - jobs.execute
      - alerts.read

  accountant:
    description: "Bookkeeper"
    permissions:
      - orders.read
      - payments.create
      - payments.read
      - payments.approve

departments:
  production:
    description: "Production floor"
    permissions:
      - jobs.read
      - jobs.execute

  studio:
    description: "Design studio"
    permissions:
      - designs.read
      - design.submit

deadlines:
  production:
    critical_days: 2
    warning_days: 5
  design:
    critical_days: 2
    warning_days: 5
`
