package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const configJSONEnvVar = "LLM_ROUTER_CONFIG_JSON"

// Load reads configuration from the YAML file at path, or, if path is
// empty, from the LLM_ROUTER_CONFIG_JSON environment variable blob. It
// normalizes, applies environment overrides, and validates the result.
func Load(path string) (*RuntimeConfig, error) {
	var raw RuntimeConfig

	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("config: parsing YAML %s: %w", path, err)
		}
	case os.Getenv(configJSONEnvVar) != "":
		if err := json.Unmarshal([]byte(os.Getenv(configJSONEnvVar)), &raw); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configJSONEnvVar, err)
		}
	default:
		return nil, fmt.Errorf("config: no configuration source (pass -config or set %s)", configJSONEnvVar)
	}

	applyEnvOverrides(&raw)
	resolveAPIKeysFromEnv(&raw)

	normErrs := Normalize(&raw)
	validationErr := Validate(&raw)

	if len(normErrs) > 0 || validationErr != nil {
		ve := &ValidationErrors{Errors: normErrs}
		if verrs, ok := validationErr.(*ValidationErrors); ok {
			ve.Errors = append(ve.Errors, verrs.Errors...)
		} else if validationErr != nil {
			ve.Errors = append(ve.Errors, validationErr)
		}
		return nil, ve
	}

	return &raw, nil
}

func applyEnvOverrides(c *RuntimeConfig) {
	if v := os.Getenv("LLM_ROUTER_MASTER_KEY"); v != "" {
		c.MasterKey = v
	}
	if v := os.Getenv("LLM_ROUTER_STATE_BACKEND"); v != "" {
		c.State.Backend = v
	}
	if v := os.Getenv("LLM_ROUTER_STATE_FILE_PATH"); v != "" {
		c.State.FilePath = v
	}
	if v := os.Getenv("LLM_ROUTER_CANDIDATE_STATE_TTL_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.State.CandidateStateTTL = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("LLM_ROUTER_DEBUG_ROUTING"); v == "1" || v == "true" {
		c.Server.DebugRouting = true
	}
	if v := os.Getenv("LLM_ROUTER_ORIGIN_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.OriginRetryAttempts = n
		}
	}
	if v := os.Getenv("LLM_ROUTER_MAX_REQUEST_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.MaxRequestBodyBytes = n
		}
	}
	if v := os.Getenv("LLM_ROUTER_REQUEST_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Server.RequestTimeout = time.Duration(ms) * time.Millisecond
		}
	}
}

func resolveAPIKeysFromEnv(c *RuntimeConfig) {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.APIKey == "" && p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
	}
}

// SaveToFile writes c back out as YAML, for operators editing a
// generated config.
func SaveToFile(c *RuntimeConfig, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
