package crm

import (
	"voicehub-platform/internal/config"
	"voicehub-platform/internal/tokenvault"
)

// ProviderConfigs binds each provider's fixed OAuth endpoints to the
// deployment's client registrations. Only providers with a configured
// client id are returned; the connect flows 404 on the rest.
func ProviderConfigs(cfg config.OAuthConfig) map[string]tokenvault.ProviderConfig {
	out := map[string]tokenvault.ProviderConfig{}

	if cfg.Salesforce.ClientID != "" {
		out[ProviderSalesforce] = tokenvault.ProviderConfig{
			Name:         ProviderSalesforce,
			AuthURL:      "https://login.salesforce.com/services/oauth2/authorize",
			TokenURL:     "https://login.salesforce.com/services/oauth2/token",
			ClientID:     cfg.Salesforce.ClientID,
			ClientSecret: cfg.Salesforce.ClientSecret,
			RedirectURL:  cfg.Salesforce.RedirectURL,
			Scopes:       []string{"api", "refresh_token"},
		}
	}
	if cfg.HubSpot.ClientID != "" {
		out[ProviderHubSpot] = tokenvault.ProviderConfig{
			Name:         ProviderHubSpot,
			AuthURL:      "https://app.hubspot.com/oauth/authorize",
			TokenURL:     "https://api.hubapi.com/oauth/v1/token",
			ClientID:     cfg.HubSpot.ClientID,
			ClientSecret: cfg.HubSpot.ClientSecret,
			RedirectURL:  cfg.HubSpot.RedirectURL,
			Scopes:       []string{"crm.objects.contacts.read", "crm.objects.contacts.write"},
		}
	}
	if cfg.Pipedrive.ClientID != "" {
		out[ProviderPipedrive] = tokenvault.ProviderConfig{
			Name:         ProviderPipedrive,
			AuthURL:      "https://oauth.pipedrive.com/oauth/authorize",
			TokenURL:     "https://oauth.pipedrive.com/oauth/token",
			ClientID:     cfg.Pipedrive.ClientID,
			ClientSecret: cfg.Pipedrive.ClientSecret,
			RedirectURL:  cfg.Pipedrive.RedirectURL,
		}
	}
	return out
}

// Connectors builds the connector set matching the configured
// providers, in a stable sync order.
func Connectors(providers map[string]tokenvault.ProviderConfig) []Connector {
	var out []Connector
	if cfg, ok := providers[ProviderSalesforce]; ok {
		out = append(out, NewSalesforce(cfg))
	}
	if cfg, ok := providers[ProviderHubSpot]; ok {
		out = append(out, NewHubSpot(cfg))
	}
	if cfg, ok := providers[ProviderPipedrive]; ok {
		out = append(out, NewPipedrive(cfg))
	}
	return out
}
