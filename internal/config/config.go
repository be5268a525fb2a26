package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
	MaxBodyBytes   int64  `yaml:"max_body_bytes"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type Limits struct {
	Rate         int `yaml:"rate"`        // requests per window
	PerMS        int `yaml:"per_ms"`      // window length
	IdleTTLMS    int `yaml:"idle_ttl_ms"` // 0 disables bucket eviction
	SweepEveryMS int `yaml:"sweep_every_ms"`
}

type APIKey struct {
	ID       string            `yaml:"id"`
	Secret   string            `yaml:"secret"`
	Metadata map[string]string `yaml:"metadata"`
}

type Auth struct {
	Header string   `yaml:"header"`
	Keys   []APIKey `yaml:"keys"`
}

type Scope struct {
	KeyHeader          string `yaml:"key_header"`
	TrustXForwardedFor bool   `yaml:"trust_x_forwarded_for"`
}

type Stats struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	RedisPass string `yaml:"redis_password"`
	RedisDB   int    `yaml:"redis_db"`
	Prefix    string `yaml:"prefix"`
	TTLHours  int    `yaml:"ttl_hours"`
	Bucket    string `yaml:"bucket"` // "minute" or "none"
	TrackKeys bool   `yaml:"track_keys"`
}

type Upstream struct {
	URL       string `yaml:"url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type Root struct {
	Server        Server        `yaml:"server"`
	Observability Observability `yaml:"observability"`
	Auth          Auth          `yaml:"auth"`
	Scope         Scope         `yaml:"scope"`
	Limits        Limits        `yaml:"limits"`
	Stats         Stats         `yaml:"stats"`
	Upstream      Upstream      `yaml:"upstream"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

func (s Server) WriteTimeout() time.Duration {
	if s.WriteTimeoutMS == 0 {
		return 10 * time.Second
	}
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

func (s Server) MaxBody() int64 {
	if s.MaxBodyBytes == 0 {
		return 10 << 20
	}
	return s.MaxBodyBytes
} // default 10MB

func (l Limits) Per() time.Duration {
	return time.Duration(l.PerMS) * time.Millisecond
}

func (l Limits) IdleTTL() time.Duration {
	return time.Duration(l.IdleTTLMS) * time.Millisecond
}

func (l Limits) SweepEvery() time.Duration {
	return time.Duration(l.SweepEveryMS) * time.Millisecond
}

func (st Stats) TTL() time.Duration {
	return time.Duration(st.TTLHours) * time.Hour
}

func (u Upstream) Timeout() time.Duration {
	return time.Duration(u.TimeoutMS) * time.Millisecond
}

func Load(path string) (*Root, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Root
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Limits.Rate <= 0 {
		cfg.Limits.Rate = 60
	}
	if cfg.Limits.PerMS <= 0 {
		cfg.Limits.PerMS = 60_000
	}
	if cfg.Limits.SweepEveryMS <= 0 {
		cfg.Limits.SweepEveryMS = 120_000
	}
	if cfg.Stats.Prefix == "" {
		cfg.Stats.Prefix = "quotagate:stats"
	}
	if cfg.Stats.TTLHours <= 0 {
		cfg.Stats.TTLHours = 24
	}
	if cfg.Stats.Bucket == "" {
		cfg.Stats.Bucket = "minute"
	}
	if cfg.Upstream.TimeoutMS <= 0 {
		cfg.Upstream.TimeoutMS = 3000
	}

	return &cfg, nil
}
