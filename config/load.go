package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load layers an optional config file (and GRIDWARS_-prefixed
// environment variables) over Default(). An empty configPath is not
// an error — boards, the boards manifest, and this config are all
// loaded once at startup from external sources per spec.md §6, and
// no file just means defaults apply. A non-empty configPath that
// cannot be read is an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("GRIDWARS")
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	cfg.Host = v.GetString("websocket.host")
	cfg.Port = v.GetInt("websocket.port")
	cfg.UpdateInterval = v.GetDuration("websocket.updateInterval")
	cfg.PingInterval = v.GetDuration("websocket.pingInterval")
	cfg.PongTimeout = v.GetDuration("websocket.pongTimeout")

	cfg.SpawnMaxCount = v.GetInt("spawnPoints.maxCount")
	cfg.SpawnClearRadius = v.GetInt("spawnPoints.clearRadius")
	cfg.WaitMessage = v.GetString("spawnPoints.waitMessage")

	cfg.GraceMs = v.GetDuration("connection.graceMs")

	cfg.ReconnectEnabled = v.GetBool("reconnection.enabled")
	cfg.MaxAttempts = v.GetInt("reconnection.maxAttempts")
	cfg.RetryDelay = v.GetDuration("reconnection.retryDelay")
	cfg.ExponentialBackoff = v.GetBool("reconnection.exponentialBackoff")
	cfg.MaxRetryDelay = v.GetDuration("reconnection.maxRetryDelay")

	cfg.PredictionEnabled = v.GetBool("prediction.enabled")
	cfg.ReconciliationInterval = v.GetDuration("prediction.reconciliationInterval")

	cfg.InterpolationDelay = v.GetDuration("interpolation.delayMs")
	cfg.InterpolationTick = v.GetDuration("interpolation.tickMs")
	cfg.RemoteBufferMax = v.GetInt("interpolation.bufferMax")
	cfg.ExtrapolationMaxMs = v.GetDuration("interpolation.extrapolationMaxMs")

	return cfg, nil
}

// setDefaults seeds viper with Default()'s values so unset keys (no
// config file, no env var) still resolve instead of zeroing out.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("websocket.host", cfg.Host)
	v.SetDefault("websocket.port", cfg.Port)
	v.SetDefault("websocket.updateInterval", cfg.UpdateInterval)
	v.SetDefault("websocket.pingInterval", cfg.PingInterval)
	v.SetDefault("websocket.pongTimeout", cfg.PongTimeout)

	v.SetDefault("spawnPoints.maxCount", cfg.SpawnMaxCount)
	v.SetDefault("spawnPoints.clearRadius", cfg.SpawnClearRadius)
	v.SetDefault("spawnPoints.waitMessage", cfg.WaitMessage)

	v.SetDefault("connection.graceMs", cfg.GraceMs)

	v.SetDefault("reconnection.enabled", cfg.ReconnectEnabled)
	v.SetDefault("reconnection.maxAttempts", cfg.MaxAttempts)
	v.SetDefault("reconnection.retryDelay", cfg.RetryDelay)
	v.SetDefault("reconnection.exponentialBackoff", cfg.ExponentialBackoff)
	v.SetDefault("reconnection.maxRetryDelay", cfg.MaxRetryDelay)

	v.SetDefault("prediction.enabled", cfg.PredictionEnabled)
	v.SetDefault("prediction.reconciliationInterval", cfg.ReconciliationInterval)

	v.SetDefault("interpolation.delayMs", cfg.InterpolationDelay)
	v.SetDefault("interpolation.tickMs", cfg.InterpolationTick)
	v.SetDefault("interpolation.bufferMax", cfg.RemoteBufferMax)
	v.SetDefault("interpolation.extrapolationMaxMs", cfg.ExtrapolationMaxMs)
}
