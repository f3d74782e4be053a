package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/goroutine"
	"github.com/olegsazonov/emergency-backend/internal/logger"
	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/pkg/apperror"
	"github.com/olegsazonov/emergency-backend/internal/repository"
	"github.com/olegsazonov/emergency-backend/internal/triage"
	"github.com/olegsazonov/emergency-backend/internal/validation"
)

// EmergencyStore описывает зависимости координатора от хранилища вызовов.
// UpdateStatusIf — атомарное условное обновление: точка линеаризации,
// на которой решаются все гонки за один вызов.
type EmergencyStore interface {
	Create(ctx context.Context, e *models.Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error)
	List(ctx context.Context, filter repository.EmergencyFilter) ([]models.Emergency, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, next models.EmergencyStatus, responderID *uuid.UUID, at time.Time) (*models.Emergency, error)
}

// Classifier — внешний классификатор приоритета (чёрный ящик).
type Classifier interface {
	Classify(ctx context.Context, description string) (models.Priority, error)
}

// TransitionNotifier получает события о совершённых переходах.
// Доставка — забота нотификатора: координатор не ждёт и не повторяет.
type TransitionNotifier interface {
	NotifyTransition(ctx context.Context, e *models.Emergency, ev models.TransitionEvent)
}

// EmergencyService — координатор триажа и назначения.
// Владеет жизненным циклом вызова: приём, классификация, очередь,
// гонко-безопасное назначение, закрытие.
type EmergencyService struct {
	store      EmergencyStore
	classifier Classifier
	queue      *triage.Queue
	notifier   TransitionNotifier
}

// IntakeInput — данные заявителя при приёме вызова.
type IntakeInput struct {
	Type        string
	Description string
	Location    string
	ReporterID  uuid.UUID
}

// ActiveFilter сужает выборку активных вызовов.
type ActiveFilter struct {
	ReporterID  *uuid.UUID
	ResponderID *uuid.UUID
}

// NewEmergencyService создаёт координатор.
func NewEmergencyService(store EmergencyStore, classifier Classifier, queue *triage.Queue) *EmergencyService {
	return &EmergencyService{
		store:      store,
		classifier: classifier,
		queue:      queue,
	}
}

// SetNotifier подключает получателя событий о переходах.
func (s *EmergencyService) SetNotifier(notifier TransitionNotifier) {
	s.notifier = notifier
}

// Intake принимает новый вызов: валидация, классификация, сохранение,
// постановка в очередь. До прохождения валидации никаких побочных
// эффектов нет — ни обращения к классификатору, ни записи в хранилище.
func (s *EmergencyService) Intake(ctx context.Context, input IntakeInput) (*models.Emergency, error) {
	if err := validateIntake(input); err != nil {
		return nil, err
	}

	emergencyType, err := models.NewEmergencyType(input.Type)
	if err != nil {
		return nil, err
	}

	priority := s.classifyWithFallback(ctx, input.Description)

	now := time.Now().UTC()
	e := &models.Emergency{
		ID:          uuid.New(),
		Type:        emergencyType,
		Description: input.Description,
		Location:    input.Location,
		Priority:    priority,
		Status:      models.EmergencyStatusPending,
		ReporterID:  input.ReporterID,
		CreatedAt:   now,
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить вызов")
	}

	s.queue.Push(e)
	s.emit(e, "", models.EmergencyStatusPending, input.ReporterID, now)

	logger.WithComponent("coordinator").WithField("emergency_id", e.ID).
		WithField("priority", e.Priority).Info("вызов принят")

	return e, nil
}

// AcceptAttempt — попытка спасателя забрать вызов.
// Исход решается одним условным обновлением pending -> assigned в хранилище:
// из N одновременных попыток пройдёт ровно одна, остальные получат
// AlreadyAssigned (или AlreadyResolved, если вызов успели закрыть).
func (s *EmergencyService) AcceptAttempt(ctx context.Context, emergencyID, responderID uuid.UUID) (*models.Emergency, error) {
	now := time.Now().UTC()

	updated, err := s.store.UpdateStatusIf(ctx, emergencyID,
		models.EmergencyStatusPending, models.EmergencyStatusAssigned, &responderID, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, s.acceptConflict(ctx, emergencyID)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось принять вызов")
	}

	s.queue.Remove(emergencyID)
	s.emit(updated, models.EmergencyStatusPending, models.EmergencyStatusAssigned, responderID, now)

	logger.WithComponent("coordinator").WithField("emergency_id", emergencyID).
		WithField("responder_id", responderID).Info("вызов назначен")

	return updated, nil
}

// acceptConflict различает исходы проигранной гонки повторным чтением.
func (s *EmergencyService) acceptConflict(ctx context.Context, emergencyID uuid.UUID) error {
	current, err := s.store.GetByID(ctx, emergencyID)
	if errors.Is(err, repository.ErrEmergencyNotFound) {
		return apperror.ErrEmergencyNotFound
	}
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать вызов")
	}

	// Запись уже не pending — убираем её из очереди, если она там застряла.
	s.queue.Remove(emergencyID)

	if current.Status == models.EmergencyStatusResolved {
		return apperror.ErrAlreadyResolved
	}
	return apperror.ErrAlreadyAssigned
}

// Resolve закрывает назначенный вызов. Разрешено спасателю, за которым
// вызов закреплён, и администратору. Переход допустим только из assigned:
// pending некому закрывать, resolved терминален.
func (s *EmergencyService) Resolve(ctx context.Context, emergencyID, actorID uuid.UUID, role string) (*models.Emergency, error) {
	if role != models.RoleResponder && role != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	current, err := s.store.GetByID(ctx, emergencyID)
	if errors.Is(err, repository.ErrEmergencyNotFound) {
		return nil, apperror.ErrEmergencyNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать вызов")
	}

	if !current.Status.CanTransitionTo(models.EmergencyStatusResolved) {
		return nil, apperror.ErrInvalidTransition
	}

	if role == models.RoleResponder && !current.IsAssignedTo(actorID) {
		return nil, apperror.ErrForbidden
	}

	now := time.Now().UTC()
	updated, err := s.store.UpdateStatusIf(ctx, emergencyID,
		models.EmergencyStatusAssigned, models.EmergencyStatusResolved, nil, now)
	if errors.Is(err, repository.ErrStatusConflict) {
		// Между чтением и обновлением вызов успели закрыть.
		return nil, apperror.ErrInvalidTransition
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось закрыть вызов")
	}

	s.emit(updated, models.EmergencyStatusAssigned, models.EmergencyStatusResolved, actorID, now)

	logger.WithComponent("coordinator").WithField("emergency_id", emergencyID).
		WithField("actor_id", actorID).Info("вызов закрыт")

	return updated, nil
}

// GetEmergency возвращает вызов по идентификатору.
func (s *EmergencyService) GetEmergency(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	e, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrEmergencyNotFound) {
		return nil, apperror.ErrEmergencyNotFound
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать вызов")
	}
	return e, nil
}

// ListActive возвращает pending и assigned вызовы по фильтру
// в порядке обслуживания очереди. Это ленивый снимок, а не живое
// представление: для актуальности надо перечитать или подписаться
// на уведомления.
func (s *EmergencyService) ListActive(ctx context.Context, filter ActiveFilter) ([]models.Emergency, error) {
	list, err := s.store.List(ctx, repository.EmergencyFilter{
		ReporterID:  filter.ReporterID,
		ResponderID: filter.ResponderID,
		Statuses:    []models.EmergencyStatus{models.EmergencyStatusPending, models.EmergencyStatusAssigned},
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выбрать вызовы")
	}

	triage.Sort(list)
	return list, nil
}

// ListAll возвращает все вызовы вне зависимости от статуса в том же
// порядке обслуживания: статус — ортогональное измерение отображения.
func (s *EmergencyService) ListAll(ctx context.Context, filter ActiveFilter) ([]models.Emergency, error) {
	list, err := s.store.List(ctx, repository.EmergencyFilter{
		ReporterID:  filter.ReporterID,
		ResponderID: filter.ResponderID,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось выбрать вызовы")
	}

	triage.Sort(list)
	return list, nil
}

// ListPending возвращает очередь ожидания в порядке обслуживания.
// Очередь — совещательный кэш: каждую запись перепроверяем по хранилищу
// и выкидываем устаревшие, чтобы никто не увидел pending у вызова,
// который хранилище уже считает назначенным.
func (s *EmergencyService) ListPending(ctx context.Context) ([]models.Emergency, error) {
	entries := s.queue.Snapshot()
	result := make([]models.Emergency, 0, len(entries))

	for _, entry := range entries {
		e, err := s.store.GetByID(ctx, entry.ID)
		if errors.Is(err, repository.ErrEmergencyNotFound) {
			s.queue.Remove(entry.ID)
			continue
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось прочитать вызов")
		}
		if e.Status != models.EmergencyStatusPending {
			s.queue.Remove(entry.ID)
			continue
		}
		result = append(result, *e)
	}

	return result, nil
}

// RebuildQueue перестраивает очередь из хранилища.
// Вызывается при старте процесса и по запросу администратора.
func (s *EmergencyService) RebuildQueue(ctx context.Context) error {
	pending, err := s.store.List(ctx, repository.EmergencyFilter{
		Statuses: []models.EmergencyStatus{models.EmergencyStatusPending},
	})
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось перестроить очередь")
	}

	s.queue.Rebuild(pending)
	return nil
}

// ClassifyPreview выдаёт приоритет для описания без создания вызова —
// чтобы клиент мог показать предварительную оценку до отправки.
func (s *EmergencyService) ClassifyPreview(ctx context.Context, description string) models.Priority {
	if err := validation.ValidateRequired("описание", description); err != nil {
		return models.PriorityFallback
	}
	return s.classifyWithFallback(ctx, description)
}

// classifyWithFallback спрашивает внешний классификатор; при любой
// ошибке или таймауте подставляет запасной приоритет — приём вызова
// важнее точности классификации, ошибка наружу не выходит.
func (s *EmergencyService) classifyWithFallback(ctx context.Context, description string) models.Priority {
	if s.classifier == nil {
		return models.PriorityFallback
	}

	priority, err := s.classifier.Classify(ctx, description)
	if err != nil {
		logger.WithComponent("coordinator").WithField("error", err.Error()).
			Warn("классификатор недоступен, используем запасной приоритет")
		return models.PriorityFallback
	}
	return priority
}

func (s *EmergencyService) emit(e *models.Emergency, old, next models.EmergencyStatus, actorID uuid.UUID, at time.Time) {
	if s.notifier == nil {
		return
	}

	ev := models.TransitionEvent{
		EmergencyID: e.ID,
		OldStatus:   old,
		NewStatus:   next,
		ActorID:     actorID,
		Timestamp:   at,
	}

	// Копия записи: получатель работает со снимком, а не с общей памятью.
	snapshot := *e
	goroutine.SafeGo(func() {
		s.notifier.NotifyTransition(context.Background(), &snapshot, ev)
	})
}

// validateIntake проверяет входные поля до каких-либо побочных эффектов.
func validateIntake(input IntakeInput) error {
	if err := validation.ValidateRequired("тип", input.Type); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateRequired("описание", input.Description); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание", input.Description, validation.MinDescriptionLength, validation.MaxDescriptionLength); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateRequired("локация", input.Location); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("локация", input.Location, validation.MinLocationLength, validation.MaxLocationLength); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if input.ReporterID == uuid.Nil {
		return apperror.New(apperror.ErrCodeValidation, "идентификатор заявителя обязателен")
	}
	return nil
}
