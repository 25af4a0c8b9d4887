package correlate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/retry"
	"github.com/papercomputeco/splice/pkg/source"
)

// EntitySpec registers one entity type for a run.
type EntitySpec struct {
	// Name is the entity type recorded in embedding metadata.
	Name embedding.EntityType `json:"name" validate:"required"`

	// Collection is the vector store collection holding its embeddings.
	Collection string `json:"collection" validate:"required"`

	// Dimension is the expected vector length. Zero skips the check unless
	// the record's model has an entry in RunConfig.Models.
	Dimension int `json:"dimension" validate:"gte=0"`

	// IDField is the metadata key holding the primary identifier.
	IDField string `json:"id_field,omitempty"`
}

// RunConfig is consumed once at the start of a run.
type RunConfig struct {
	PageSize       int          `json:"page_size" validate:"gte=1,lte=10000"`
	Retry          retry.Policy `json:"retry"`
	CurrentVersion string       `json:"current_version"`
	MaxConcurrency int          `json:"max_concurrency" validate:"gte=1"`

	// MaxChunkTotal rejects records claiming more chunks than this.
	MaxChunkTotal int `json:"max_chunk_total" validate:"gte=1"`

	// EntityTypes is the entity type registry for the run.
	EntityTypes []EntitySpec `json:"entity_types" validate:"required,min=1,dive"`

	// Models maps an embedding model to its vector dimension.
	Models map[string]int `json:"models,omitempty" validate:"dive,keys,required,endkeys,gte=1"`
}

// DefaultMaxChunkTotal is the default cap on chunk_total.
const DefaultMaxChunkTotal = 10000

// DefaultRunConfig returns the defaults for everything but the registry.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		PageSize:       500,
		Retry:          retry.DefaultPolicy(),
		MaxConcurrency: 4,
		MaxChunkTotal:  DefaultMaxChunkTotal,
	}
}

// ConfigError is returned by Engine.Run before any I/O when the run
// configuration cannot be used.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid run configuration: " + strings.Join(e.Problems, "; ")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against the adapters in registry.
// Errors are *ConfigError.
func (c RunConfig) Validate(registry *source.Registry) error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ConfigError{Problems: []string{err.Error()}}
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	names := make(map[embedding.EntityType]bool, len(c.EntityTypes))
	collections := make(map[string]embedding.EntityType, len(c.EntityTypes))
	for _, spec := range c.EntityTypes {
		if spec.Name == "" {
			continue
		}
		if names[spec.Name] {
			problems = append(problems, fmt.Sprintf("entity type %q registered twice", spec.Name))
			continue
		}
		names[spec.Name] = true

		// Each job exports its whole collection, so sharing one would
		// reject every other type's records as mismatches.
		if spec.Collection != "" {
			if owner, ok := collections[spec.Collection]; ok {
				problems = append(problems, fmt.Sprintf("collection %q registered for both %q and %q", spec.Collection, owner, spec.Name))
			} else {
				collections[spec.Collection] = spec.Name
			}
		}

		if registry == nil {
			continue
		}
		if _, err := registry.Adapter(spec.Name); err != nil {
			problems = append(problems, fmt.Sprintf("entity type %q has no source adapter", spec.Name))
		}
	}

	if registry == nil {
		problems = append(problems, "no source registry")
	}

	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

// Known returns the entity types recognized by this run: the built-in ones
// plus every registered one.
func (c RunConfig) Known() map[embedding.EntityType]bool {
	known := make(map[embedding.EntityType]bool)
	for _, t := range embedding.BuiltinEntityTypes() {
		known[t] = true
	}
	for _, spec := range c.EntityTypes {
		known[spec.Name] = true
	}
	return known
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "RunConfig.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
