package inference

import "context"

// Tier names a capability class, not a concrete model. The pipeline maps
// work to tiers: scanning uses fast, selection uses mid, extraction and
// synthesis use high.
type Tier string

const (
	TierFast Tier = "fast"
	TierMid  Tier = "mid"
	TierHigh Tier = "high"
)

// Known reports whether the tier is one of the defined capability classes.
func (t Tier) Known() bool {
	switch t {
	case TierFast, TierMid, TierHigh:
		return true
	}
	return false
}

// Invoker is the single surface pipeline stages use to run a completion.
type Invoker interface {
	Complete(ctx context.Context, tier Tier, systemPrompt, userPrompt string) (string, error)
}

// Provider is implemented by backend clients (Ollama, OpenAI-compatible).
// Chat returns the assistant message content for a single system+user
// exchange against a concrete model.
type Provider interface {
	Name() string
	Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Health summarizes the readiness of an inference dependency.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
