// Package installer creates, upgrades and removes the configuration rows each
// storefront plugin owns. Every plugin carries a list of versioned steps and
// records the last applied version in its own configuration key.
package installer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"storefront-payments/internal/model"
	"storefront-payments/internal/repository"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/mod/semver"
	"gorm.io/gorm"
)

var (
	ErrUnknownPlugin  = errors.New("unknown plugin")
	ErrInvalidVersion = errors.New("invalid version")
)

// Step moves a plugin to Version. Insert never overwrites a value the
// merchant already changed; Update does.
type Step struct {
	Version string
	Insert  []*model.Configuration
	Update  map[string]string
	Delete  []string
}

type Plugin struct {
	Name       string
	VersionKey string
	// Prefixes select every key Remove deletes.
	Prefixes []string
	Steps    []Step
}

// Latest is the version of the newest step.
func (p *Plugin) Latest() string {
	if len(p.Steps) == 0 {
		return ""
	}
	return p.Steps[len(p.Steps)-1].Version
}

type PluginStatus struct {
	Name      string
	Installed string
	Latest    string
	Pending   int
}

func (s PluginStatus) UpToDate() bool {
	return s.Installed != "" && s.Pending == 0
}

type Installer interface {
	Plugins() []string
	// Upgrade applies every step newer than the installed version and
	// returns the versions it applied.
	Upgrade(ctx context.Context, name string) ([]string, error)
	Status(ctx context.Context) ([]PluginStatus, error)
	Remove(ctx context.Context, name string) (int64, error)
}

type installerImpl struct {
	db         *gorm.DB
	configRepo repository.ConfigurationRepository
	plugins    []*Plugin
}

func NewInstaller(db *gorm.DB, configRepo repository.ConfigurationRepository, plugins ...*Plugin) (Installer, error) {
	for _, p := range plugins {
		if err := prepare(p); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
		}
	}
	return &installerImpl{
		db:         db,
		configRepo: configRepo,
		plugins:    plugins,
	}, nil
}

// canonical turns "1.2.0" into "v1.2.0" for semver comparisons.
func canonical(version string) (string, error) {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	return v, nil
}

// prepare validates step versions and sorts the steps oldest first.
func prepare(p *Plugin) error {
	if p.VersionKey == "" {
		return errors.New("missing version key")
	}
	seen := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		v, err := canonical(p.Steps[i].Version)
		if err != nil {
			return err
		}
		if seen[v] {
			return fmt.Errorf("duplicate step %s", p.Steps[i].Version)
		}
		seen[v] = true
		p.Steps[i].Version = strings.TrimPrefix(v, "v")
	}
	sort.SliceStable(p.Steps, func(i, j int) bool {
		return semver.Compare("v"+p.Steps[i].Version, "v"+p.Steps[j].Version) < 0
	})
	return nil
}

func (s *installerImpl) Plugins() []string {
	names := make([]string, 0, len(s.plugins))
	for _, p := range s.plugins {
		names = append(names, p.Name)
	}
	return names
}

func (s *installerImpl) plugin(name string) (*Plugin, error) {
	for _, p := range s.plugins {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
}

// installed returns the stored version, "" when the plugin was never installed.
func (s *installerImpl) installed(ctx context.Context, p *Plugin) (string, error) {
	value, ok, err := s.configRepo.Get(ctx, p.VersionKey)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", p.VersionKey, err)
	}
	if !ok || strings.TrimSpace(value) == "" {
		return "", nil
	}
	v, err := canonical(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.VersionKey, err)
	}
	return strings.TrimPrefix(v, "v"), nil
}

func pending(p *Plugin, installed string) []Step {
	if installed == "" {
		return p.Steps
	}
	var steps []Step
	for _, step := range p.Steps {
		if semver.Compare("v"+step.Version, "v"+installed) > 0 {
			steps = append(steps, step)
		}
	}
	return steps
}

func (s *installerImpl) Upgrade(ctx context.Context, name string) ([]string, error) {
	p, err := s.plugin(name)
	if err != nil {
		return nil, err
	}

	installed, err := s.installed(ctx, p)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, step := range pending(p, installed) {
		if err := s.apply(ctx, p, step); err != nil {
			return applied, fmt.Errorf("%s %s: %w", p.Name, step.Version, err)
		}
		applied = append(applied, step.Version)
		log.Info().
			Str("plugin", p.Name).
			Str("from", installed).
			Str("version", step.Version).
			Msg("configuration step applied")
		installed = step.Version
	}
	return applied, nil
}

func (s *installerImpl) apply(ctx context.Context, p *Plugin, step Step) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// copies, so the ids gorm assigns do not leak into the plugin definition
		rows := make([]*model.Configuration, 0, len(step.Insert))
		for _, row := range step.Insert {
			c := *row
			c.ID = 0
			rows = append(rows, &c)
		}
		if err := s.configRepo.InsertMissing(ctx, tx, rows); err != nil {
			return fmt.Errorf("insert: %w", err)
		}

		keys := make([]string, 0, len(step.Update))
		for k := range step.Update {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := s.configRepo.Set(ctx, tx, k, step.Update[k]); err != nil {
				return fmt.Errorf("update %s: %w", k, err)
			}
		}

		if err := s.configRepo.Delete(ctx, tx, step.Delete...); err != nil {
			return fmt.Errorf("delete: %w", err)
		}

		return s.configRepo.Set(ctx, tx, p.VersionKey, step.Version)
	})
}

func (s *installerImpl) Status(ctx context.Context) ([]PluginStatus, error) {
	out := make([]PluginStatus, 0, len(s.plugins))
	for _, p := range s.plugins {
		installed, err := s.installed(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, PluginStatus{
			Name:      p.Name,
			Installed: installed,
			Latest:    p.Latest(),
			Pending:   len(pending(p, installed)),
		})
	}
	return out, nil
}

func (s *installerImpl) Remove(ctx context.Context, name string) (int64, error) {
	p, err := s.plugin(name)
	if err != nil {
		return 0, err
	}

	var removed int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, prefix := range p.Prefixes {
			n, err := s.configRepo.DeleteByPrefix(ctx, tx, prefix)
			if err != nil {
				return fmt.Errorf("delete %s*: %w", prefix, err)
			}
			removed += n
		}
		return s.configRepo.Delete(ctx, tx, p.VersionKey)
	})
	if err != nil {
		return 0, err
	}

	log.Info().Str("plugin", p.Name).Int64("rows", removed).Msg("configuration removed")
	return removed, nil
}
