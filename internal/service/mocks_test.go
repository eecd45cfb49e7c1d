package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradehook/internal/exchange"
	"tradehook/internal/models"
	"tradehook/internal/repository"
	"tradehook/internal/transfer"
)

// ============ Mock AutomationRepository ============

type MockAutomationRepository struct {
	automations map[string]*models.Automation
	createErr   error
	getErr      error
	nextID      int
}

func NewMockAutomationRepository(items ...*models.Automation) *MockAutomationRepository {
	m := &MockAutomationRepository{
		automations: make(map[string]*models.Automation),
		nextID:      1,
	}
	for _, a := range items {
		m.automations[a.AutomationID] = a
	}
	return m
}

func (m *MockAutomationRepository) Create(ctx context.Context, a *models.Automation) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.automations[a.AutomationID]; exists {
		return repository.ErrAutomationExists
	}
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	copied := *a
	m.automations[a.AutomationID] = &copied
	return nil
}

func (m *MockAutomationRepository) GetByAutomationID(ctx context.Context, automationID string) (*models.Automation, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.automations[automationID]
	if !ok {
		return nil, repository.ErrAutomationNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *MockAutomationRepository) ListByUser(ctx context.Context, userID int) ([]*models.Automation, error) {
	result := []*models.Automation{}
	for _, a := range m.automations {
		if a.UserID == userID {
			copied := *a
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (m *MockAutomationRepository) Update(ctx context.Context, a *models.Automation) error {
	existing, ok := m.automations[a.AutomationID]
	if !ok || existing.UserID != a.UserID {
		return repository.ErrAutomationNotFound
	}
	copied := *a
	m.automations[a.AutomationID] = &copied
	return nil
}

func (m *MockAutomationRepository) Delete(ctx context.Context, userID int, automationID string) error {
	existing, ok := m.automations[automationID]
	if !ok || existing.UserID != userID {
		return repository.ErrAutomationNotFound
	}
	delete(m.automations, automationID)
	return nil
}

func (m *MockAutomationRepository) SetActive(ctx context.Context, automationID string, active bool) error {
	a, ok := m.automations[automationID]
	if !ok || a.IsActive == active {
		return repository.ErrAutomationUnchanged
	}
	a.IsActive = active
	return nil
}

// ============ Mock WebhookLogRepository ============

type MockWebhookLogRepository struct {
	mu        sync.Mutex
	entries   []models.WebhookLog
	createErr error
	recentErr error
	lastLimit int
	deleted   int64
	nextID    int64
}

func NewMockWebhookLogRepository() *MockWebhookLogRepository {
	return &MockWebhookLogRepository{nextID: 1}
}

func (m *MockWebhookLogRepository) Create(ctx context.Context, entry *models.WebhookLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	entry.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MockWebhookLogRepository) Recent(ctx context.Context, scope models.LogScope, limit int) ([]models.WebhookLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.recentErr != nil {
		return nil, m.recentErr
	}

	var result []models.WebhookLog
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if scope.IsAdmin() || m.entries[i].UserID == scope.UserID {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *MockWebhookLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return m.deleted, nil
}

// ============ Mock CredentialRepository ============

type MockCredentialRepository struct {
	credentials map[int]*models.ExchangeCredential
	createErr   error
	lastErrors  map[int]string
	nextID      int
}

func NewMockCredentialRepository(items ...*models.ExchangeCredential) *MockCredentialRepository {
	m := &MockCredentialRepository{
		credentials: make(map[int]*models.ExchangeCredential),
		lastErrors:  make(map[int]string),
		nextID:      100,
	}
	for _, c := range items {
		m.credentials[c.ID] = c
	}
	return m
}

func (m *MockCredentialRepository) Create(ctx context.Context, c *models.ExchangeCredential) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.credentials {
		if existing.UserID == c.UserID && existing.Name == c.Name {
			return repository.ErrCredentialExists
		}
	}
	c.ID = m.nextID
	m.nextID++
	copied := *c
	m.credentials[c.ID] = &copied
	return nil
}

func (m *MockCredentialRepository) GetByID(ctx context.Context, userID, id int) (*models.ExchangeCredential, error) {
	c, ok := m.credentials[id]
	if !ok || c.UserID != userID {
		return nil, repository.ErrCredentialNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *MockCredentialRepository) ListByUser(ctx context.Context, userID int) ([]*models.ExchangeCredential, error) {
	result := []*models.ExchangeCredential{}
	for _, c := range m.credentials {
		if c.UserID == userID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *MockCredentialRepository) Delete(ctx context.Context, userID, id int) error {
	c, ok := m.credentials[id]
	if !ok || c.UserID != userID {
		return repository.ErrCredentialNotFound
	}
	delete(m.credentials, id)
	return nil
}

func (m *MockCredentialRepository) UpdateLastError(ctx context.Context, id int, lastError string) error {
	m.lastErrors[id] = lastError
	if c, ok := m.credentials[id]; ok {
		c.LastError = lastError
	}
	return nil
}

// ============ Mock BalanceRepository ============

type MockBalanceRepository struct {
	main       map[int]map[string]decimal.Decimal
	strategies []models.Strategy
	allocated  int
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{main: make(map[int]map[string]decimal.Decimal)}
}

func (m *MockBalanceRepository) MainAssets(ctx context.Context, credentialID int) ([]models.MainAccountAsset, error) {
	balances := m.main[credentialID]
	keys := make([]string, 0, len(balances))
	for k := range balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []models.MainAccountAsset{}
	for _, k := range keys {
		result = append(result, models.MainAccountAsset{
			ExchangeCredentialID: credentialID,
			AssetSymbol:          k,
			AvailableBalance:     balances[k],
		})
	}
	return result, nil
}

func (m *MockBalanceRepository) Strategies(ctx context.Context, credentialID int) ([]models.Strategy, error) {
	result := []models.Strategy{}
	for _, s := range m.strategies {
		if s.ExchangeCredentialID == credentialID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (m *MockBalanceRepository) ReplaceMainAssets(ctx context.Context, credentialID int, balances map[string]decimal.Decimal) error {
	m.main[credentialID] = balances
	return nil
}

func (m *MockBalanceRepository) CountAllocatedStrategies(ctx context.Context, credentialID int) (int, error) {
	return m.allocated, nil
}

// ============ Mock TransferRepository ============

type MockTransferRepository struct {
	applied  []models.Transfer
	applyErr error
}

func (m *MockTransferRepository) Apply(ctx context.Context, credentialID int, src, dst transfer.Account, amount decimal.Decimal) (*models.Transfer, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	t := models.Transfer{
		ID:                   len(m.applied) + 1,
		ExchangeCredentialID: credentialID,
		Source:               src.Value(),
		Destination:          dst.Value(),
		AssetSymbol:          src.Asset,
		Amount:               amount,
		CreatedAt:            time.Now(),
	}
	m.applied = append(m.applied, t)
	return &t, nil
}

func (m *MockTransferRepository) ListByCredential(ctx context.Context, credentialID, limit int) ([]models.Transfer, error) {
	return m.applied, nil
}

// ============ Mock Exchange ============

type MockExchange struct {
	mu          sync.Mutex
	products    []exchange.Product
	accounts    []exchange.Account
	productsErr error
	accountsErr error
	productCall int
	lastCreds   exchange.Credentials
}

func (m *MockExchange) Name() string { return "coinbase" }

func (m *MockExchange) Products(ctx context.Context) ([]exchange.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCall++
	if m.productsErr != nil {
		return nil, m.productsErr
	}
	return m.products, nil
}

func (m *MockExchange) Accounts(ctx context.Context, creds exchange.Credentials) ([]exchange.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCreds = creds
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	return m.accounts, nil
}

func (m *MockExchange) Close() error { return nil }

func (m *MockExchange) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.productCall
}

// ============ Mock push ============

type MockNotifier struct {
	mu    sync.Mutex
	users []int
}

func (m *MockNotifier) Notify(userID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, userID)
	return 1
}

type statusEvent struct {
	UserID       int
	AutomationID string
	Active       bool
}

type MockHub struct {
	statuses []statusEvent
	logs     []*models.WebhookLog
}

func (m *MockHub) BroadcastAutomationStatus(userID int, automationID string, active bool) {
	m.statuses = append(m.statuses, statusEvent{userID, automationID, active})
}

func (m *MockHub) BroadcastWebhookLog(entry *models.WebhookLog) {
	m.logs = append(m.logs, entry)
}

// ============ Mock PairCache ============

type MockPairCache struct {
	mu      sync.Mutex
	values  map[string][]models.TradingPair
	ttls    map[string]time.Duration
	getErr  error
	expired map[string]bool
}

func NewMockPairCache() *MockPairCache {
	return &MockPairCache{
		values:  make(map[string][]models.TradingPair),
		ttls:    make(map[string]time.Duration),
		expired: make(map[string]bool),
	}
}

func (m *MockPairCache) Get(key string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	v, ok := m.values[key]
	if !ok || m.expired[key] {
		return false, nil
	}
	*(out.(*[]models.TradingPair)) = v
	return true, nil
}

func (m *MockPairCache) Set(key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.([]models.TradingPair)
	m.ttls[key] = ttl
	delete(m.expired, key)
	return nil
}

func (m *MockPairCache) expire(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expired[key] = true
}
