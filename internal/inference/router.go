package inference

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"winnow/internal/logging"
	"winnow/internal/services"
)

// Models maps each tier to a configured model alias.
type Models struct {
	Fast string
	Mid  string
	High string
}

// Router resolves tiers to model aliases and delegates completions to the
// active provider. It is safe for concurrent use.
type Router struct {
	provider Provider
	models   Models
	logger   *slog.Logger
}

// NewRouter constructs a Router. Every tier must have a model alias.
func NewRouter(provider Provider, models Models, logger *slog.Logger) (*Router, error) {
	if provider == nil {
		return nil, services.Wrap(services.ErrConfiguration, "inference", "new router", "provider is required", nil)
	}
	for tier, model := range map[Tier]string{
		TierFast: models.Fast,
		TierMid:  models.Mid,
		TierHigh: models.High,
	} {
		if strings.TrimSpace(model) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "inference", "new router",
				fmt.Sprintf("no model configured for tier %q", tier), nil)
		}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Router{
		provider: provider,
		models:   models,
		logger:   logging.NewComponentLogger(logger, "inference"),
	}, nil
}

// Model returns the model alias configured for the tier.
func (r *Router) Model(tier Tier) (string, error) {
	switch tier {
	case TierFast:
		return r.models.Fast, nil
	case TierMid:
		return r.models.Mid, nil
	case TierHigh:
		return r.models.High, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "inference", "resolve model",
			fmt.Sprintf("unknown tier %q", tier), nil)
	}
}

// Complete runs a single completion on the tier's configured model.
func (r *Router) Complete(ctx context.Context, tier Tier, systemPrompt, userPrompt string) (string, error) {
	model, err := r.Model(tier)
	if err != nil {
		return "", err
	}
	start := time.Now()
	content, err := r.provider.Chat(ctx, model, systemPrompt, userPrompt)
	if err != nil {
		return "", services.Wrap(services.ErrInference, "inference", "complete",
			fmt.Sprintf("%s tier (model %s) via %s", tier, model, r.provider.Name()), err)
	}
	r.logger.Debug("completion finished",
		logging.String("tier", string(tier)),
		logging.String("model", model),
		logging.Int("prompt_bytes", len(systemPrompt)+len(userPrompt)),
		logging.Int("response_bytes", len(content)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

// Health probes the underlying provider.
func (r *Router) Health(ctx context.Context) Health {
	if err := r.provider.HealthCheck(ctx); err != nil {
		return Unhealthy(r.provider.Name(), err.Error())
	}
	return Healthy(r.provider.Name())
}
