package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"tradehook/internal/exchange"
	"tradehook/internal/models"
	"tradehook/pkg/crypto"
)

func newTestVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v, err := crypto.NewVault([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}
	return v
}

func testAccounts() []exchange.Account {
	return []exchange.Account{
		{Currency: "BTC", Available: decimal.RequireFromString("1.5")},
		{Currency: "usd", Available: decimal.RequireFromString("250")},
		{Currency: "ETH", Available: decimal.Zero},
	}
}

func TestExchangeService_Connect(t *testing.T) {
	creds := NewMockCredentialRepository()
	balances := NewMockBalanceRepository()
	ex := &MockExchange{accounts: testAccounts()}
	vault := newTestVault(t)
	svc := NewExchangeService(creds, balances, ex, vault)

	cred, err := svc.Connect(context.Background(), 7, ConnectRequest{
		Name:       "Main",
		APIKey:     "key",
		APISecret:  "c2VjcmV0",
		Passphrase: "pass",
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if cred.Exchange != models.ExchangeCoinbase {
		t.Errorf("Exchange = %q", cred.Exchange)
	}
	if cred.APIKey == "key" || cred.APISecret == "c2VjcmV0" {
		t.Error("keys must be stored encrypted")
	}
	if plain, _ := vault.Open(cred.APISecret); plain != "c2VjcmV0" {
		t.Errorf("decrypted secret = %q", plain)
	}

	stored := balances.main[cred.ID]
	if len(stored) != 2 {
		t.Fatalf("stored balances = %v, want BTC and USD", stored)
	}
	if !stored["USD"].Equal(decimal.NewFromInt(250)) {
		t.Errorf("USD = %s", stored["USD"])
	}
}

func TestExchangeService_ConnectErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     ConnectRequest
		exErr   error
		wantErr error
	}{
		{"unsupported", ConnectRequest{Exchange: "binance", Name: "x", APIKey: "k", APISecret: "s"}, nil, ErrExchangeNotSupported},
		{"bad keys", ConnectRequest{Name: "x", APIKey: "k", APISecret: "s"}, exchange.ErrUnauthorized, ErrInvalidCredentials},
		{"exchange down", ConnectRequest{Name: "x", APIKey: "k", APISecret: "s"}, errors.New("timeout"), ErrConnectionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := &MockExchange{accountsErr: tt.exErr}
			creds := NewMockCredentialRepository()
			svc := NewExchangeService(creds, NewMockBalanceRepository(), ex, newTestVault(t))

			_, err := svc.Connect(context.Background(), 7, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(creds.credentials) != 0 {
				t.Error("credential must not be stored on failure")
			}
		})
	}
}

func TestExchangeService_ConnectDuplicateName(t *testing.T) {
	creds := NewMockCredentialRepository(&models.ExchangeCredential{ID: 1, UserID: 7, Name: "Main"})
	svc := NewExchangeService(creds, NewMockBalanceRepository(), &MockExchange{}, newTestVault(t))

	_, err := svc.Connect(context.Background(), 7, ConnectRequest{Name: "Main", APIKey: "k", APISecret: "s"})
	if !errors.Is(err, ErrCredentialExists) {
		t.Errorf("err = %v, want ErrCredentialExists", err)
	}
}

func TestExchangeService_SyncBalances(t *testing.T) {
	vault := newTestVault(t)
	key, _ := vault.Seal("key")
	secret, _ := vault.Seal("c2VjcmV0")

	creds := NewMockCredentialRepository(&models.ExchangeCredential{
		ID: 3, UserID: 7, Name: "Main", APIKey: key, APISecret: secret, LastError: "old failure",
	})
	balances := NewMockBalanceRepository()
	ex := &MockExchange{accounts: testAccounts()}
	svc := NewExchangeService(creds, balances, ex, vault)

	assets, err := svc.SyncBalances(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("SyncBalances failed: %v", err)
	}
	if len(assets) != 2 || assets[0].AssetSymbol != "BTC" {
		t.Errorf("assets = %+v", assets)
	}
	if ex.lastCreds.APIKey != "key" || ex.lastCreds.APISecret != "c2VjcmV0" {
		t.Errorf("exchange got creds %+v", ex.lastCreds)
	}
	if creds.lastErrors[3] != "" {
		t.Errorf("last error not cleared: %q", creds.lastErrors[3])
	}

	// ошибка биржи сохраняется
	ex.accountsErr = exchange.ErrUnauthorized
	if _, err := svc.SyncBalances(context.Background(), 7, 3); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
	if creds.lastErrors[3] == "" {
		t.Error("exchange error must be stored in last_error")
	}

	// чужой аккаунт
	if _, err := svc.SyncBalances(context.Background(), 8, 3); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("err = %v, want ErrCredentialNotFound", err)
	}
}

func TestExchangeService_Disconnect(t *testing.T) {
	creds := NewMockCredentialRepository(&models.ExchangeCredential{ID: 3, UserID: 7})
	balances := NewMockBalanceRepository()
	svc := NewExchangeService(creds, balances, &MockExchange{}, newTestVault(t))
	ctx := context.Background()

	balances.allocated = 1
	if err := svc.Disconnect(ctx, 7, 3); !errors.Is(err, ErrCredentialHasStrategies) {
		t.Errorf("err = %v, want ErrCredentialHasStrategies", err)
	}

	balances.allocated = 0
	if err := svc.Disconnect(ctx, 8, 3); !errors.Is(err, ErrCredentialNotFound) {
		t.Errorf("foreign: err = %v, want ErrCredentialNotFound", err)
	}
	if err := svc.Disconnect(ctx, 7, 3); err != nil {
		t.Errorf("Disconnect failed: %v", err)
	}
}

func TestExchangeService_TransferContext(t *testing.T) {
	creds := NewMockCredentialRepository(&models.ExchangeCredential{ID: 3, UserID: 7})
	balances := NewMockBalanceRepository()
	svc := NewExchangeService(creds, balances, &MockExchange{}, newTestVault(t))

	tc, err := svc.TransferContext(context.Background(), 7, 3)
	if err != nil {
		t.Fatalf("TransferContext failed: %v", err)
	}
	if tc.MainAssets == nil || tc.Strategies == nil {
		t.Error("empty context must contain empty slices")
	}
	if tc.ExchangeCredentialID != 3 {
		t.Errorf("ExchangeCredentialID = %d", tc.ExchangeCredentialID)
	}
}
