package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/api/middleware"
	"tradehook/internal/models"
	"tradehook/internal/service"
	"tradehook/internal/stream"
)

// ErrMockDatabase - ошибка хранилища в моках
var ErrMockDatabase = errors.New("mock database error")

// withUser - запрос от аутентифицированного пользователя
func withUser(r *http.Request, userID int) *http.Request {
	return r.WithContext(middleware.WithUserID(r.Context(), userID))
}

// ============ Mock Automation Service ============

// MockAutomationService мок для AutomationServiceInterface
type MockAutomationService struct {
	automations map[string]*models.Automation
	err         error
	lastUser    int
	mu          sync.Mutex
}

// NewMockAutomationService создает новый мок сервиса автоматизаций
func NewMockAutomationService() *MockAutomationService {
	return &MockAutomationService{automations: make(map[string]*models.Automation)}
}

// AddAutomation добавляет автоматизацию в мок
func (m *MockAutomationService) AddAutomation(a *models.Automation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automations[a.AutomationID] = a
}

// SetError - все методы возвращают err
func (m *MockAutomationService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockAutomationService) owned(userID int, id string) (*models.Automation, error) {
	a, ok := m.automations[id]
	if !ok || (userID != 0 && a.UserID != userID) {
		return nil, service.ErrAutomationNotFound
	}
	return a, nil
}

func (m *MockAutomationService) Create(ctx context.Context, userID int, params models.AutomationParams) (*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUser = userID
	if m.err != nil {
		return nil, m.err
	}
	a := &models.Automation{AutomationID: "new-id", UserID: userID, Name: params.Name, TradingPair: params.TradingPair}
	m.automations[a.AutomationID] = a
	return a, nil
}

func (m *MockAutomationService) Get(ctx context.Context, userID int, id string) (*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.owned(userID, id)
}

func (m *MockAutomationService) List(ctx context.Context, userID int) ([]*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.Automation
	for _, a := range m.automations {
		if a.UserID == userID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *MockAutomationService) Update(ctx context.Context, userID int, id string, params models.AutomationParams) (*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	a.Name = params.Name
	a.TradingPair = params.TradingPair
	return a, nil
}

func (m *MockAutomationService) Delete(ctx context.Context, userID int, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, err := m.owned(userID, id); err != nil {
		return err
	}
	delete(m.automations, id)
	return nil
}

func (m *MockAutomationService) setActive(userID int, id string, active bool) (*models.Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	a, err := m.owned(userID, id)
	if err != nil {
		return nil, err
	}
	if a.IsActive == active {
		if active {
			return nil, service.ErrAutomationAlreadyActive
		}
		return nil, service.ErrAutomationAlreadyInactive
	}
	a.IsActive = active
	return a, nil
}

func (m *MockAutomationService) Activate(ctx context.Context, userID int, id string) (*models.Automation, error) {
	return m.setActive(userID, id, true)
}

func (m *MockAutomationService) Deactivate(ctx context.Context, userID int, id string) (*models.Automation, error) {
	return m.setActive(userID, id, false)
}

func (m *MockAutomationService) AdminSetActive(ctx context.Context, id string, active bool) (*models.Automation, error) {
	return m.setActive(0, id, active)
}

// ============ Mock Webhook Service ============

// MockWebhookService мок для WebhookServiceInterface
type MockWebhookService struct {
	entry    *models.WebhookLog
	err      error
	lastID   string
	lastBody []byte
}

func (m *MockWebhookService) Handle(ctx context.Context, automationID string, body []byte) (*models.WebhookLog, error) {
	m.lastID = automationID
	m.lastBody = body
	return m.entry, m.err
}

// ============ Mock Log Service ============

// MockLogService мок для LogServiceInterface
type MockLogService struct {
	entries   []models.WebhookLog
	err       error
	lastScope models.LogScope
	lastLimit int
}

func (m *MockLogService) Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error) {
	m.lastScope = scope
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *MockLogService) Snapshot(scope models.LogScope) func(ctx context.Context) ([]models.WebhookLog, error) {
	return func(ctx context.Context) ([]models.WebhookLog, error) {
		return m.Recent(ctx, scope, 0)
	}
}

// ============ Mock Streamer ============

// MockStreamer мок для LogStreamer: пишет один снимок и выходит
type MockStreamer struct {
	err       error
	lastScope models.LogScope
}

func (m *MockStreamer) Serve(ctx context.Context, w http.ResponseWriter, scope models.LogScope, snapshot stream.SnapshotFunc, opts stream.Options) error {
	m.lastScope = scope
	if m.err != nil {
		return m.err
	}
	if _, err := snapshot(ctx); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Write([]byte("data:[]\n\n"))
	return nil
}

// ============ Mock Trading Pair Service ============

// MockPairService мок для TradingPairServiceInterface
type MockPairService struct {
	pairs []models.TradingPair
	err   error
}

func (m *MockPairService) List(ctx context.Context) ([]models.TradingPair, error) {
	return m.pairs, m.err
}

// ============ Mock Exchange Service ============

// MockExchangeService мок для ExchangeServiceInterface
type MockExchangeService struct {
	credentials map[int]*models.ExchangeCredential
	context     *models.TransferContext
	err         error
	lastConnect service.ConnectRequest
}

// NewMockExchangeService создает мок с одним аккаунтом id=3 пользователя 1
func NewMockExchangeService() *MockExchangeService {
	return &MockExchangeService{
		credentials: map[int]*models.ExchangeCredential{
			3: {ID: 3, UserID: 1, Exchange: models.ExchangeCoinbase, Name: "main", CreatedAt: time.Unix(0, 0).UTC()},
		},
		context: &models.TransferContext{
			ExchangeCredentialID: 3,
			MainAssets: []models.MainAccountAsset{
				{ExchangeCredentialID: 3, AssetSymbol: "BTC", AvailableBalance: decimal.RequireFromString("1.5")},
			},
			Strategies: []models.Strategy{},
		},
	}
}

func (m *MockExchangeService) owned(userID, id int) (*models.ExchangeCredential, error) {
	c, ok := m.credentials[id]
	if !ok || c.UserID != userID {
		return nil, service.ErrCredentialNotFound
	}
	return c, nil
}

func (m *MockExchangeService) Connect(ctx context.Context, userID int, req service.ConnectRequest) (*models.ExchangeCredential, error) {
	m.lastConnect = req
	if m.err != nil {
		return nil, m.err
	}
	c := &models.ExchangeCredential{ID: 10, UserID: userID, Exchange: models.ExchangeCoinbase, Name: req.Name, APIKey: "sealed"}
	m.credentials[c.ID] = c
	return c, nil
}

func (m *MockExchangeService) List(ctx context.Context, userID int) ([]*models.ExchangeCredential, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*models.ExchangeCredential
	for _, c := range m.credentials {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockExchangeService) Disconnect(ctx context.Context, userID, id int) error {
	if m.err != nil {
		return m.err
	}
	if _, err := m.owned(userID, id); err != nil {
		return err
	}
	delete(m.credentials, id)
	return nil
}

func (m *MockExchangeService) SyncBalances(ctx context.Context, userID, id int) ([]models.MainAccountAsset, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, err := m.owned(userID, id); err != nil {
		return nil, err
	}
	return m.context.MainAssets, nil
}

func (m *MockExchangeService) TransferContext(ctx context.Context, userID, id int) (*models.TransferContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, err := m.owned(userID, id); err != nil {
		return nil, err
	}
	return m.context, nil
}

// ============ Mock Transfer Service ============

// MockTransferService мок для TransferServiceInterface
type MockTransferService struct {
	err     error
	lastReq service.TransferRequest
	calls   int
}

func (m *MockTransferService) Execute(ctx context.Context, userID int, req service.TransferRequest) (*models.Transfer, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	amount, _ := decimal.NewFromString(req.Amount)
	return &models.Transfer{
		ID:                   1,
		ExchangeCredentialID: req.CredentialID,
		Source:               req.Source,
		Destination:          req.Destination,
		AssetSymbol:          "BTC",
		Amount:               amount,
	}, nil
}
