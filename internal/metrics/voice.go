package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// VoiceTokensIssued counts successfully persisted voice tokens.
	VoiceTokensIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expense_voice_tokens_issued_total",
			Help: "Total number of voice tokens issued",
		},
	)

	// VoiceTokenValidations counts validation attempts by result
	// (valid, not_found, expired, error).
	VoiceTokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expense_voice_token_validations_total",
			Help: "Total number of voice token validations by result",
		},
		[]string{"result"},
	)

	// VoiceTokensReaped counts records deleted by readers, by reason
	// (expired, corrupt).
	VoiceTokensReaped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expense_voice_tokens_reaped_total",
			Help: "Total number of voice token records deleted on read",
		},
		[]string{"reason"},
	)

	// VoiceTokenWordCollisions counts issues that fell back to reusing an
	// in-use word because no free word was sampled.
	VoiceTokenWordCollisions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expense_voice_token_word_collisions_total",
			Help: "Total number of voice tokens issued over a live word",
		},
	)

	// VoiceTokenCleanupDuration measures full expired-token sweeps.
	VoiceTokenCleanupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "expense_voice_token_cleanup_duration_seconds",
			Help:    "Duration of voice token cleanup sweeps in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
)

func registerVoiceTokenMetrics() error {
	return register(
		VoiceTokensIssued,
		VoiceTokenValidations,
		VoiceTokensReaped,
		VoiceTokenWordCollisions,
		VoiceTokenCleanupDuration,
	)
}
