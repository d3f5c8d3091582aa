package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// SecretKeys are the environment variables a Vault secret may populate.
// Other keys in the secret are ignored.
var SecretKeys = []string{
	"CLOUDFLARE_API_KEY",
	"CLOUDFLARE_ACCOUNT",
	"CLOUDFLARE_ZONE",
	"TYPESENSE_API_KEY",
	"REDIS_PASSWORD",
	"DB_PASSWORD",
	"ARCHIVE_ACCESS_KEY",
	"ARCHIVE_SECRET_KEY",
}

// VaultConfig describes where the pipeline's credentials live in Vault
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
}

// VaultResult reports what ApplyVaultSecrets did
type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  int
	Skipped int
	Ignored int
}

// LoadVaultConfigFromEnv reads VAULT_* variables. pathOverride wins over
// VAULT_PATH when set.
func LoadVaultConfigFromEnv(pathOverride string) VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if mount := os.Getenv("VAULT_MOUNT"); mount != "" {
		cfg.Mount = mount
	}
	if pathOverride != "" {
		cfg.Path = pathOverride
	}
	if val := os.Getenv("VAULT_KV_VERSION"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.KVVersion = parsed
		}
	}
	if val := os.Getenv("VAULT_TIMEOUT_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Timeout = time.Duration(parsed) * time.Millisecond
		}
	}
	return cfg
}

// ApplyVaultSecrets reads one KV secret and exports the SecretKeys it holds
// as environment variables, so config.Load picks them up. Variables that
// are already set are kept unless Overwrite is set.
func ApplyVaultSecrets(ctx context.Context, cfg VaultConfig) (VaultResult, error) {
	result := VaultResult{Enabled: cfg.Enabled, Path: cfg.Path}
	if !cfg.Enabled {
		return result, nil
	}
	if cfg.Addr == "" || cfg.Token == "" || cfg.Path == "" {
		return result, apperrors.NewValidationError("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)", nil)
	}

	endpoint, err := buildVaultURL(cfg.Addr, cfg.Mount, cfg.Path, cfg.KVVersion)
	if err != nil {
		return result, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return result, apperrors.NewValidationError("invalid vault address", err)
	}
	req.Header.Set("X-Vault-Token", cfg.Token)
	if cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", cfg.Namespace)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return result, apperrors.NewUnavailableError("vault request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, apperrors.NewUnavailableError("failed to read vault response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, apperrors.NewExternalError(
			fmt.Sprintf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body))),
			resp.StatusCode,
			nil,
		)
	}

	data, err := extractVaultData(body, cfg.KVVersion)
	if err != nil {
		return result, err
	}

	allowed := make(map[string]bool, len(SecretKeys))
	for _, key := range SecretKeys {
		allowed[key] = true
	}

	for key, value := range data {
		if !allowed[key] {
			result.Ignored++
			continue
		}
		if !cfg.Overwrite && os.Getenv(key) != "" {
			result.Skipped++
			continue
		}
		if err := os.Setenv(key, stringifyVaultValue(value)); err != nil {
			return result, apperrors.NewInternalError("failed to export "+key, err)
		}
		result.Loaded++
	}
	return result, nil
}

func buildVaultURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", apperrors.NewValidationError("vault address, mount and path must be set", nil)
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

// extractVaultData unwraps data (KV v1) or data.data (KV v2).
func extractVaultData(body []byte, kvVersion int) (map[string]any, error) {
	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewPayloadError("decode vault response", err)
	}
	if payload.Data == nil {
		return nil, apperrors.NewPayloadError("vault response has no data", nil)
	}
	if kvVersion == 1 {
		return payload.Data, nil
	}
	inner, ok := payload.Data["data"].(map[string]any)
	if !ok {
		return nil, apperrors.NewPayloadError("vault response has no data.data for KV v2", nil)
	}
	return inner, nil
}

func stringifyVaultValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
