package db

import (
	"context"
	"fmt"
	"time"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

// tokenExpiryWarning is how close to expiry a fresh token may be before a
// warning is logged. A token only has to be valid when the connection is made.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector authenticates with a short-lived cloud token
// (AWS IAM, Azure Entra ID) used as the PostgreSQL password.
type TokenBasedConnector struct {
	config        *pgbulk.ConnectionConfig
	tokenProvider TokenProvider
	providerName  string
	logger        pgbulk.Logger
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error and warning messages (e.g. "AWS IAM", "Azure").
func NewTokenBasedConnector(config *pgbulk.ConnectionConfig, tokenProvider TokenProvider, providerName string, logger pgbulk.Logger) *TokenBasedConnector {
	if tokenProvider == nil {
		panic("tokenProvider cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		providerName:  providerName,
		logger:        logger,
	}
}

// Connect acquires a token and opens the run's connection with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (pgbulk.DBConnection, error) {
	token, expiresOn, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s token: %w: %w", c.providerName, pgbulk.ErrConnectionFailed, err)
	}
	if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
		c.logger.Info("%s token expires in %v", c.providerName, remaining.Round(time.Second))
	}
	c.logger.Verbose("Acquired %s token from %s", c.providerName, c.tokenProvider)

	withToken := *c.config
	withToken.Password = token

	connConfig, err := parseConnConfig(&withToken)
	if err != nil {
		return nil, err
	}
	return dial(ctx, connConfig, c.config, nil)
}
