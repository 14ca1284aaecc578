// Package config holds the immutable configuration value injected at
// startup, replacing the teacher's singleton-mutable config pattern.
// Recognized keys are those enumerated in spec.md §6.
package config

import "time"

// Config holds every configurable parameter recognized by the core.
type Config struct {
	// Websocket / server
	Host           string
	Port           int
	UpdateInterval time.Duration

	// Spawn points
	SpawnMaxCount    int
	SpawnClearRadius int
	WaitMessage      string

	// Disconnect grace window (open question in spec.md §9, resolved
	// as a configurable duration defaulting to immediate removal).
	GraceMs time.Duration

	// Reconnection (client)
	ReconnectEnabled   bool
	MaxAttempts        int
	RetryDelay         time.Duration
	ExponentialBackoff bool
	MaxRetryDelay      time.Duration

	// Prediction (client)
	PredictionEnabled      bool
	ReconciliationInterval time.Duration

	// Interpolation (client)
	InterpolationDelay time.Duration
	InterpolationTick  time.Duration
	RemoteBufferMax    int
	ExtrapolationMaxMs time.Duration

	// Liveness
	PingInterval time.Duration
	PongTimeout  time.Duration
}

// Default returns the Config the core uses absent any overrides.
func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		UpdateInterval: 250 * time.Millisecond,

		SpawnMaxCount:    25,
		SpawnClearRadius: 3,
		WaitMessage:      "Waiting for a spawn point to free up...",

		GraceMs: 0,

		ReconnectEnabled:   true,
		MaxAttempts:        8,
		RetryDelay:         250 * time.Millisecond,
		ExponentialBackoff: true,
		MaxRetryDelay:      10 * time.Second,

		PredictionEnabled:      true,
		ReconciliationInterval: 5 * time.Second,

		InterpolationDelay: 100 * time.Millisecond,
		InterpolationTick:  50 * time.Millisecond,
		RemoteBufferMax:    20,
		ExtrapolationMaxMs: 300 * time.Millisecond,

		PingInterval: 20 * time.Second,
		PongTimeout:  10 * time.Second,
	}
}
