// Package testutil holds shared test doubles.
package testutil

import (
	"context"

	"github.com/dottapps/api-front/internal/idp"
	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"
)

// MockProvider is a testify mock of idp.Provider
type MockProvider struct {
	mock.Mock
}

// NewMockProvider creates a mock identity provider
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) PasswordGrant(ctx context.Context, email, password, connection string) (*oauth2.Token, error) {
	args := m.Called(ctx, email, password, connection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

func (m *MockProvider) UserInfo(ctx context.Context, token *oauth2.Token) (*idp.Identity, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*idp.Identity), args.Error(1)
}

var _ idp.Provider = (*MockProvider)(nil)
