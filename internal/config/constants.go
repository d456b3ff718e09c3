package config

import "time"

const (
	ProviderTogether = "together"
	ProviderGemini   = "gemini"

	SearchGoogle     = "google"
	SearchDuckDuckGo = "duckduckgo"

	// Search calls may be configured upward but never below this.
	MinSearchTimeout = 15 * time.Second

	// Completion request shaping for the OpenAI-compatible provider
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7

	// How long the last response time stays visible
	ResponseTimeDisplay = 3 * time.Second

	// Anonymous session token lifetime
	TokenLifetime = 24 * time.Hour

	// Store writes (uploads, session saves) are attempted this many times.
	StoreWriteAttempts = 3

	// Time left to write a response once a chat turn has used its whole budget
	ResponseWriteSlack = 15 * time.Second
)
