// ABOUTME: LLM provider status detection from environment variables.
// ABOUTME: Checks for Anthropic, OpenAI, and Gemini API keys without exposing secrets.

package modelclient

import "os"

// ProviderInfo describes the status of a single LLM provider.
type ProviderInfo struct {
	Name      string  `json:"name"`
	HasAPIKey bool    `json:"has_api_key"`
	Model     string  `json:"model"`
	BaseURL   *string `json:"base_url,omitempty"`
}

// ProviderStatus is the aggregated provider availability for operational
// visibility (surfaced via /healthz, not a spec endpoint).
type ProviderStatus struct {
	DefaultProvider string         `json:"default_provider"`
	DefaultModel    *string        `json:"default_model,omitempty"`
	Providers       []ProviderInfo `json:"providers"`
	AnyAvailable    bool           `json:"any_available"`
}

// DetectProviders checks environment variables to determine which LLM
// providers are configured, without ever returning the key values themselves.
func DetectProviders() ProviderStatus {
	defaultProvider := nonEmptyEnvOr("DIALOGUE_DEFAULT_PROVIDER", "anthropic")
	defaultModel := nonEmptyEnv("DIALOGUE_DEFAULT_MODEL")

	providers := []ProviderInfo{
		checkProvider("anthropic", "ANTHROPIC_API_KEY", "ANTHROPIC_MODEL", "ANTHROPIC_BASE_URL", "claude-sonnet-4-5-20250929"),
		checkProvider("openai", "OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "gpt-5.2"),
		checkProvider("gemini", "GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "gemini-2.5-flash"),
	}

	anyAvailable := false
	for _, p := range providers {
		if p.HasAPIKey {
			anyAvailable = true
			break
		}
	}

	var modelPtr *string
	if defaultModel != "" {
		modelPtr = &defaultModel
	}

	return ProviderStatus{
		DefaultProvider: defaultProvider,
		DefaultModel:    modelPtr,
		Providers:       providers,
		AnyAvailable:    anyAvailable,
	}
}

func checkProvider(name, keyVar, modelVar, baseURLVar, defaultModel string) ProviderInfo {
	hasKey := nonEmptyEnv(keyVar) != ""
	model := nonEmptyEnvOr(modelVar, defaultModel)
	baseURL := nonEmptyEnv(baseURLVar)

	var baseURLPtr *string
	if baseURL != "" {
		baseURLPtr = &baseURL
	}

	return ProviderInfo{Name: name, HasAPIKey: hasKey, Model: model, BaseURL: baseURLPtr}
}

func nonEmptyEnv(key string) string {
	return os.Getenv(key)
}

func nonEmptyEnvOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
