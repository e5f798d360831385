package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Review.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}

	// Validate address format and port
	if _, err := net.ResolveTCPAddr("tcp", c.Review.Server.Addr); err != nil {
		return fmt.Errorf("invalid server address: %v", err)
	}
	if c.Review.Server.Timeout != "" {
		if _, err := time.ParseDuration(c.Review.Server.Timeout); err != nil {
			return fmt.Errorf("invalid server timeout: %v", err)
		}
	}
	if c.Review.Server.MaxUploadMB <= 0 {
		return errors.New("server max_upload_mb must be positive")
	}

	// Validate LLM configuration only when the AI path is enabled
	if c.Review.LLM.Endpoint != "" {
		u, err := url.Parse(c.Review.LLM.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid llm endpoint: %s", c.Review.LLM.Endpoint)
		}
		if c.Review.LLM.Model == "" {
			return errors.New("llm model cannot be empty when llm endpoint is set")
		}
		if _, err := time.ParseDuration(c.Review.LLM.Timeout); err != nil {
			return fmt.Errorf("invalid llm timeout: %v", err)
		}
		if c.Review.LLM.MaxRetries < 0 {
			return errors.New("llm max_retries cannot be negative")
		}
		if c.Review.LLM.RatePerSecond <= 0 {
			return errors.New("llm rate_per_second must be positive")
		}
		if c.Review.LLM.Burst <= 0 {
			return errors.New("llm burst must be positive")
		}
	}

	// Validate pipeline configuration
	if c.Review.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline concurrency must be positive")
	}
	if c.Review.Pipeline.MaxInputChars <= 0 {
		return errors.New("pipeline max_input_chars must be positive")
	}

	if c.Review.Storage.Path == "" {
		return errors.New("storage path cannot be empty")
	}

	return nil
}

// LLMTimeout returns the parsed per-call timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.Review.LLM.Timeout)
	if err != nil || d <= 0 {
		return 45 * time.Second
	}
	return d
}

// ServerTimeout returns the parsed HTTP read/write timeout.
func (c *Config) ServerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Review.Server.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}
