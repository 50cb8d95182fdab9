package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"Parley/internal/api/config"
	"Parley/internal/pkg/security"
)

// ErrFederatedDisabled 未配置第三方登录
var ErrFederatedDisabled = errors.New("federated sign-in is not configured")

type tokenResponse struct {
	IDToken     string `json:"id_token"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// FederatedClient 在令牌端点换取 ID Token 并校验签名
type FederatedClient struct {
	client *resty.Client
	cfg    config.FederatedConfig
}

func NewFederatedClient(cfg config.FederatedConfig) *FederatedClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &FederatedClient{client: client, cfg: cfg}
}

// Exchange 以客户端凭据换取 ID Token，返回校验后的 Claims
func (s *FederatedClient) Exchange(ctx context.Context) (*security.UserClaims, error) {
	if s == nil || !s.cfg.Enabled || s.cfg.TokenURL == "" {
		return nil, ErrFederatedDisabled
	}

	var ok tokenResponse
	var fail tokenError
	resp, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     s.cfg.ClientID,
			"client_secret": s.cfg.ClientSecret,
			"scope":         "openid email profile",
		}).
		SetResult(&ok).
		SetError(&fail).
		Post(s.cfg.TokenURL)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	if resp.IsError() {
		if fail.Error != "" {
			return nil, fmt.Errorf("token endpoint rejected sign-in: %s %s", fail.Error, fail.Description)
		}
		return nil, fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}
	if ok.IDToken == "" {
		return nil, errors.New("token endpoint returned no id_token")
	}

	return security.ParseHMAC(ok.IDToken, []byte(s.cfg.SigningKey), s.cfg.Issuer)
}
