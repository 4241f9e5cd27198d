package config

const (
	// MaxRequestBodyBytes caps every JSON request body.
	MaxRequestBodyBytes = 1 << 20

	// MaxPromptLength is the maximum length of a comparison prompt.
	MaxPromptLength = 32_000

	// MaxTopicLength is the maximum length of a debate topic.
	MaxTopicLength = 500

	// MaxOpponentMessageLength bounds the opponent message quoted into a debate turn.
	MaxOpponentMessageLength = 20_000

	// MaxCompareModels is the maximum number of models in one compare fan-out.
	MaxCompareModels = 10

	// MaxTokensCeiling bounds the client-supplied maxTokens option.
	MaxTokensCeiling = 128_000

	// MaxModelIDLength bounds model id path and body fields.
	MaxModelIDLength = 128
)
