package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
)

const staticTokenLifetime = time.Hour

// StaticCredential hands out a preconfigured management-plane bearer token.
type StaticCredential struct {
	token string
}

func NewStaticCredential(token string) *StaticCredential {
	token = strings.TrimSpace(token)
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	return &StaticCredential{token: token}
}

func (c *StaticCredential) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	if c.token == "" {
		return azcore.AccessToken{}, errors.New("gateway token is not configured")
	}
	return azcore.AccessToken{Token: c.token, ExpiresOn: time.Now().Add(staticTokenLifetime)}, nil
}

// NewCredential prefers an Azure AD service principal when one is configured
// and falls back to the static GATEWAY_TOKEN otherwise.
func NewCredential(cfg config.GatewayConfig) (azcore.TokenCredential, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return NewStaticCredential(cfg.Token), nil
	}

	credential, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure credential: %w", err)
	}
	return credential, nil
}
