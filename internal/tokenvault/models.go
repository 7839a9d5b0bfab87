package tokenvault

import "time"

// Token is one (tenant, provider) OAuth credential row.
// Mutated on every refresh; removed only by explicit disconnect.
type Token struct {
	TenantID string `json:"tenant_id" db:"tenant_id"`
	Provider string `json:"provider" db:"provider"`

	AccessToken  string    `json:"-" db:"access_token"`
	RefreshToken string    `json:"-" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`

	// InstanceURL is the provider-specific API base (Salesforce instances).
	InstanceURL string `json:"instance_url,omitempty" db:"instance_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ProviderConfig parameterizes the shared token-endpoint helper.
// Authorization-code exchange and refresh are structurally identical across
// providers: a form-encoded POST differing only in these values.
type ProviderConfig struct {
	Name         string
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}
