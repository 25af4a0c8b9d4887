package config

import (
	"fmt"
	"time"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/retry"
)

// RunConfig converts the file settings into the engine's run configuration.
// Structural checks are left to correlate.RunConfig.Validate.
func (c *Config) RunConfig() (correlate.RunConfig, error) {
	rc := correlate.DefaultRunConfig()
	rc.PageSize = c.Run.PageSize
	rc.MaxConcurrency = c.Run.MaxConcurrency
	if c.Run.MaxChunkTotal > 0 {
		rc.MaxChunkTotal = c.Run.MaxChunkTotal
	}
	rc.CurrentVersion = c.Run.CurrentVersion
	rc.Models = c.Models

	policy, err := c.Retry.Policy()
	if err != nil {
		return correlate.RunConfig{}, err
	}
	rc.Retry = policy

	rc.EntityTypes = make([]correlate.EntitySpec, 0, len(c.EntityTypes))
	for _, et := range c.EntityTypes {
		rc.EntityTypes = append(rc.EntityTypes, correlate.EntitySpec{
			Name:       embedding.EntityType(et.Name),
			Collection: et.Collection,
			Dimension:  et.Dimension,
			IDField:    et.IDField,
		})
	}

	return rc, nil
}

// Policy parses the retry section.
func (r RetryConfig) Policy() (retry.Policy, error) {
	p := retry.Policy{MaxAttempts: r.MaxAttempts}

	var err error
	if p.InitialBackoff, err = parseDuration("retry.initial_backoff", r.InitialBackoff); err != nil {
		return retry.Policy{}, err
	}
	if p.MaxBackoff, err = parseDuration("retry.max_backoff", r.MaxBackoff); err != nil {
		return retry.Policy{}, err
	}

	return p, nil
}

// SourceFor returns the source settings of an entity type.
func (c *Config) SourceFor(et EntityTypeConfig) (SourceConfig, error) {
	name := et.Source
	if name == "" {
		name = et.Name
	}

	src, ok := c.Sources[name]
	if !ok {
		return SourceConfig{}, fmt.Errorf("entity type %q: no [sources.%s] section", et.Name, name)
	}
	return src, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return d, nil
}
