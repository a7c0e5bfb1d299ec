// internal/config/profiles.go
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GetProfile retrieves a profile by name
func (c *Config) GetProfile(name string) (*Profile, error) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile not found: %s", name)
}

// AddProfile adds a new profile to the config
func (c *Config) AddProfile(p Profile) error {
	for _, existing := range c.Profiles {
		if existing.Name == p.Name {
			return fmt.Errorf("profile already exists: %s", p.Name)
		}
	}
	c.Profiles = append(c.Profiles, p)
	return c.Save()
}

// DeleteProfile removes a profile from the config
func (c *Config) DeleteProfile(name string) error {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			return c.Save()
		}
	}
	return fmt.Errorf("profile not found: %s", name)
}

// ListProfiles returns all profile names
func (c *Config) ListProfiles() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

// ParseDSN parses a connection string into a Profile
func ParseDSN(name, dsn string) (Profile, error) {
	p := Profile{Name: name}

	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return p, err
		}
		p.Type = "postgres"
		p.Host = u.Hostname()
		if port := u.Port(); port == "" {
			p.Port = 5432
		} else {
			p.Port, _ = strconv.Atoi(port)
		}
		p.User = u.User.Username()
		p.Password, _ = u.User.Password()
		p.Database = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(dsn, "mysql://"):
		u, err := url.Parse(dsn)
		if err != nil {
			return p, err
		}
		p.Type = "mysql"
		p.Host = u.Hostname()
		if port := u.Port(); port == "" {
			p.Port = 3306
		} else {
			p.Port, _ = strconv.Atoi(port)
		}
		p.User = u.User.Username()
		p.Password, _ = u.User.Password()
		p.Database = strings.TrimPrefix(u.Path, "/")
	case strings.HasPrefix(dsn, "sqlite://") || strings.HasPrefix(dsn, "file:"):
		p.Type = "sqlite"
		path := strings.TrimPrefix(dsn, "sqlite://")
		path = strings.TrimPrefix(path, "file:")
		p.Database = path
	default:
		// Assume a SQLite file path if no scheme matches
		p.Type = "sqlite"
		p.Database = dsn
	}

	return p, nil
}
