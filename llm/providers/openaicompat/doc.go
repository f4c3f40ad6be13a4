// Package openaicompat provides a chat-completion client for any
// OpenAI-compatible API.
//
// The service uses it for two short calls: a YES/NO relevance classification
// and a passage summary. Both go through Completion; HealthCheck hits the
// models endpoint and backs the readiness probe.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName:  "openai",
//	    APIKey:        cfg.LLM.APIKey,
//	    BaseURL:       cfg.LLM.BaseURL,
//	    FallbackModel: "gpt-3.5-turbo",
//	    Timeout:       cfg.LLM.Timeout,
//	}, logger)
package openaicompat
