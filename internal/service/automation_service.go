package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"tradehook/internal/metrics"
	"tradehook/internal/models"
	"tradehook/internal/repository"
	"tradehook/pkg/utils"
)

// Ошибки сервиса
var (
	ErrAutomationNotFound        = errors.New("automation not found")
	ErrAutomationAlreadyActive   = errors.New("automation is already active")
	ErrAutomationAlreadyInactive = errors.New("automation is already inactive")
	ErrInvalidAutomationName     = errors.New("automation name must be between 1 and 100 characters")
	ErrInvalidTradingPair        = errors.New("trading pair must be in BASE-QUOTE format")
)

const maxAutomationNameLength = 100

var tradingPairPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}-[A-Z0-9]{1,12}$`)

// AutomationService - бизнес-логика автоматизаций и переключения статуса
type AutomationService struct {
	repo AutomationRepositoryInterface
	hub  StatusBroadcaster
	log  *utils.Logger
}

// NewAutomationService создает новый экземпляр сервиса
func NewAutomationService(repo AutomationRepositoryInterface) *AutomationService {
	return &AutomationService{
		repo: repo,
		log:  utils.L().WithComponent("automation"),
	}
}

// SetWebSocketHub устанавливает hub для рассылки смены статуса
func (s *AutomationService) SetWebSocketHub(hub StatusBroadcaster) {
	s.hub = hub
}

// Create создает выключенную автоматизацию с новым automation_id
func (s *AutomationService) Create(ctx context.Context, userID int, params models.AutomationParams) (*models.Automation, error) {
	params, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}

	a := &models.Automation{
		AutomationID:         uuid.NewString(),
		UserID:               userID,
		Name:                 params.Name,
		TradingPair:          params.TradingPair,
		ExchangeCredentialID: params.ExchangeCredentialID,
		StrategyID:           params.StrategyID,
		IsActive:             false,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info("automation created", utils.AutomationID(a.AutomationID), utils.UserID(userID))
	return a, nil
}

// Get возвращает автоматизацию владельца
func (s *AutomationService) Get(ctx context.Context, userID int, automationID string) (*models.Automation, error) {
	return s.owned(ctx, userID, automationID)
}

// List возвращает автоматизации пользователя
func (s *AutomationService) List(ctx context.Context, userID int) ([]*models.Automation, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Update изменяет имя, пару и привязки автоматизации
func (s *AutomationService) Update(ctx context.Context, userID int, automationID string, params models.AutomationParams) (*models.Automation, error) {
	params, err := normalizeParams(params)
	if err != nil {
		return nil, err
	}

	a, err := s.owned(ctx, userID, automationID)
	if err != nil {
		return nil, err
	}

	a.Name = params.Name
	a.TradingPair = params.TradingPair
	a.ExchangeCredentialID = params.ExchangeCredentialID
	a.StrategyID = params.StrategyID

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, mapAutomationError(err)
	}
	return a, nil
}

// Delete удаляет автоматизацию владельца
func (s *AutomationService) Delete(ctx context.Context, userID int, automationID string) error {
	if err := s.repo.Delete(ctx, userID, automationID); err != nil {
		return mapAutomationError(err)
	}
	s.log.Info("automation deleted", utils.AutomationID(automationID), utils.UserID(userID))
	return nil
}

// Activate включает автоматизацию пользователя
func (s *AutomationService) Activate(ctx context.Context, userID int, automationID string) (*models.Automation, error) {
	return s.setActive(ctx, userID, automationID, true)
}

// Deactivate выключает автоматизацию пользователя
func (s *AutomationService) Deactivate(ctx context.Context, userID int, automationID string) (*models.Automation, error) {
	return s.setActive(ctx, userID, automationID, false)
}

// AdminSetActive переключает любую автоматизацию (админка)
func (s *AutomationService) AdminSetActive(ctx context.Context, automationID string, active bool) (*models.Automation, error) {
	return s.setActive(ctx, 0, automationID, active)
}

// setActive - общий путь переключения, userID == 0 = администратор
//
// Повторное включение уже включенной автоматизации - ошибка
// (ErrAutomationAlreadyActive / ErrAutomationAlreadyInactive),
// состояние при этом не меняется.
func (s *AutomationService) setActive(ctx context.Context, userID int, automationID string, active bool) (*models.Automation, error) {
	admin := userID == 0

	var (
		a   *models.Automation
		err error
	)
	if admin {
		a, err = s.repo.GetByAutomationID(ctx, automationID)
		err = mapAutomationError(err)
	} else {
		a, err = s.owned(ctx, userID, automationID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetActive(ctx, automationID, active); err != nil {
		if errors.Is(err, repository.ErrAutomationUnchanged) {
			if active {
				return nil, ErrAutomationAlreadyActive
			}
			return nil, ErrAutomationAlreadyInactive
		}
		return nil, err
	}
	a.IsActive = active

	metrics.RecordToggle(active, admin)
	if s.hub != nil {
		s.hub.BroadcastAutomationStatus(a.UserID, a.AutomationID, active)
	}

	s.log.Info("automation status changed",
		utils.AutomationID(automationID),
		utils.UserID(a.UserID),
		utils.Bool("is_active", active),
		utils.Bool("admin", admin),
	)
	return a, nil
}

// owned загружает автоматизацию и проверяет владельца
//
// Чужая автоматизация неотличима от несуществующей.
func (s *AutomationService) owned(ctx context.Context, userID int, automationID string) (*models.Automation, error) {
	a, err := s.repo.GetByAutomationID(ctx, automationID)
	if err != nil {
		return nil, mapAutomationError(err)
	}
	if a.UserID != userID {
		return nil, ErrAutomationNotFound
	}
	return a, nil
}

// normalizeParams обрезает пробелы, приводит пару к верхнему регистру
func normalizeParams(p models.AutomationParams) (models.AutomationParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" || utf8.RuneCountInString(p.Name) > maxAutomationNameLength {
		return p, ErrInvalidAutomationName
	}

	p.TradingPair = strings.ToUpper(strings.TrimSpace(p.TradingPair))
	if p.TradingPair != "" && !tradingPairPattern.MatchString(p.TradingPair) {
		return p, ErrInvalidTradingPair
	}

	return p, nil
}

func mapAutomationError(err error) error {
	if errors.Is(err, repository.ErrAutomationNotFound) {
		return ErrAutomationNotFound
	}
	return err
}
