package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/olegsazonov/emergency-backend/internal/models"
	"github.com/olegsazonov/emergency-backend/internal/pkg/apperror"
	"github.com/olegsazonov/emergency-backend/internal/repository"
	"github.com/olegsazonov/emergency-backend/internal/triage"
)

// mockEmergencyStore — хранилище в памяти с честным условным обновлением
// под мьютексом: точка линеаризации воспроизводится так же, как в
// PostgreSQL через UPDATE ... WHERE status = expected.
type mockEmergencyStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*models.Emergency
	// history фиксирует статусы каждой записи в порядке фиксации переходов.
	history map[uuid.UUID][]models.EmergencyStatus

	createErr error
	getErr    error
}

func newMockEmergencyStore() *mockEmergencyStore {
	return &mockEmergencyStore{
		records: make(map[uuid.UUID]*models.Emergency),
		history: make(map[uuid.UUID][]models.EmergencyStatus),
	}
}

func (m *mockEmergencyStore) Create(ctx context.Context, e *models.Emergency) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *e
	m.records[e.ID] = &clone
	m.history[e.ID] = append(m.history[e.ID], e.Status)
	return nil
}

func (m *mockEmergencyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Emergency, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[id]
	if !ok {
		return nil, repository.ErrEmergencyNotFound
	}
	clone := *e
	return &clone, nil
}

func (m *mockEmergencyStore) List(ctx context.Context, filter repository.EmergencyFilter) ([]models.Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.Emergency
	for _, e := range m.records {
		if filter.ReporterID != nil && e.ReporterID != *filter.ReporterID {
			continue
		}
		if filter.ResponderID != nil && (e.ResponderID == nil || *e.ResponderID != *filter.ResponderID) {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if e.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, *e)
	}
	return result, nil
}

func (m *mockEmergencyStore) UpdateStatusIf(
	ctx context.Context,
	id uuid.UUID,
	expected, next models.EmergencyStatus,
	responderID *uuid.UUID,
	at time.Time,
) (*models.Emergency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.records[id]
	if !ok {
		return nil, repository.ErrStatusConflict
	}
	if e.Status != expected {
		return nil, repository.ErrStatusConflict
	}

	e.Status = next
	if responderID != nil {
		e.ResponderID = responderID
	}
	switch next {
	case models.EmergencyStatusAssigned:
		e.AssignedAt = &at
	case models.EmergencyStatusResolved:
		e.ResolvedAt = &at
	}
	m.history[id] = append(m.history[id], next)

	clone := *e
	return &clone, nil
}

func (m *mockEmergencyStore) statusHistory(id uuid.UUID) []models.EmergencyStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.EmergencyStatus(nil), m.history[id]...)
}

// mockClassifier считает обращения и умеет имитировать отказ.
type mockClassifier struct {
	mu       sync.Mutex
	priority models.Priority
	err      error
	calls    int
}

func (m *mockClassifier) Classify(ctx context.Context, description string) (models.Priority, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	return m.priority, nil
}

func (m *mockClassifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestService(store *mockEmergencyStore, cls Classifier) *EmergencyService {
	return NewEmergencyService(store, cls, triage.NewQueue())
}

func validIntake() IntakeInput {
	return IntakeInput{
		Type:        "fire",
		Description: "горит квартира на третьем этаже",
		Location:    "ул. Ленина, 10",
		ReporterID:  uuid.New(),
	}
}

func TestIntake_Success(t *testing.T) {
	store := newMockEmergencyStore()
	cls := &mockClassifier{priority: models.PriorityHigh}
	svc := newTestService(store, cls)

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.ID == uuid.Nil {
		t.Error("идентификатор должен быть назначен")
	}
	if e.Status != models.EmergencyStatusPending {
		t.Errorf("новый вызов должен быть pending, получен %s", e.Status)
	}
	if e.Priority != models.PriorityHigh {
		t.Errorf("ожидался high от классификатора, получен %s", e.Priority)
	}
	if e.ResponderID != nil {
		t.Error("у нового вызова не должно быть спасателя")
	}
	if e.CreatedAt.IsZero() {
		t.Error("createdAt должен быть выставлен")
	}
	if cls.callCount() != 1 {
		t.Errorf("классификатор должен быть вызван один раз, вызван %d", cls.callCount())
	}
}

func TestIntake_ValidationFailsFast(t *testing.T) {
	cases := []struct {
		name  string
		patch func(*IntakeInput)
	}{
		{"пустой тип", func(in *IntakeInput) { in.Type = "" }},
		{"неизвестный тип", func(in *IntakeInput) { in.Type = "alien_invasion" }},
		{"пустое описание", func(in *IntakeInput) { in.Description = "   " }},
		{"пустая локация", func(in *IntakeInput) { in.Location = "" }},
		{"нет заявителя", func(in *IntakeInput) { in.ReporterID = uuid.Nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMockEmergencyStore()
			cls := &mockClassifier{priority: models.PriorityHigh}
			svc := newTestService(store, cls)

			input := validIntake()
			tc.patch(&input)

			_, err := svc.Intake(context.Background(), input)
			if !apperror.IsValidation(err) {
				t.Fatalf("ожидалась ошибка валидации, получено %v", err)
			}
			// Ровно никаких побочных эффектов: ни записи, ни обращения к классификатору.
			if len(store.records) != 0 {
				t.Error("запись не должна быть создана")
			}
			if cls.callCount() != 0 {
				t.Error("классификатор не должен вызываться при невалидном вводе")
			}
		})
	}
}

func TestIntake_ClassifierFallback(t *testing.T) {
	store := newMockEmergencyStore()
	cls := &mockClassifier{err: errors.New("timeout")}
	svc := newTestService(store, cls)

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("приём должен пройти несмотря на отказ классификатора: %v", err)
	}
	if e.Priority != models.PriorityMedium {
		t.Errorf("ожидался запасной medium, получен %s", e.Priority)
	}
}

func TestIntake_NilClassifier(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, nil)

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Priority != models.PriorityMedium {
		t.Errorf("без классификатора ожидался medium, получен %s", e.Priority)
	}
}

func TestIntake_StoreError(t *testing.T) {
	store := newMockEmergencyStore()
	store.createErr = errors.New("connection refused")
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	if _, err := svc.Intake(context.Background(), validIntake()); err == nil {
		t.Fatal("ожидалась ошибка хранилища")
	}
}

func TestAcceptAttempt_Success(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responderID := uuid.New()
	updated, err := svc.AcceptAttempt(context.Background(), e.ID, responderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Status != models.EmergencyStatusAssigned {
		t.Errorf("ожидался assigned, получен %s", updated.Status)
	}
	if updated.ResponderID == nil || *updated.ResponderID != responderID {
		t.Error("спасатель должен быть закреплён за вызовом")
	}
	if updated.AssignedAt == nil {
		t.Error("assignedAt должен быть выставлен")
	}
}

func TestAcceptAttempt_NotFound(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, nil)

	_, err := svc.AcceptAttempt(context.Background(), uuid.New(), uuid.New())
	if !apperror.IsNotFound(err) {
		t.Fatalf("ожидался not found, получено %v", err)
	}
}

func TestAcceptAttempt_AlreadyAssigned(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	e, _ := svc.Intake(context.Background(), validIntake())
	first := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.AcceptAttempt(context.Background(), e.ID, uuid.New())
	if !errors.Is(err, apperror.ErrAlreadyAssigned) {
		t.Fatalf("ожидался ErrAlreadyAssigned, получено %v", err)
	}

	// Победитель не перезаписан.
	current, _ := store.GetByID(context.Background(), e.ID)
	if current.ResponderID == nil || *current.ResponderID != first {
		t.Error("привязка спасателя не должна меняться после проигранной гонки")
	}
}

func TestAcceptAttempt_AlreadyResolved(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	e, _ := svc.Intake(context.Background(), validIntake())
	responderID := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, responderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), e.ID, responderID, models.RoleResponder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.AcceptAttempt(context.Background(), e.ID, uuid.New())
	if !errors.Is(err, apperror.ErrAlreadyResolved) {
		t.Fatalf("ожидался ErrAlreadyResolved, получено %v", err)
	}
}

// TestAcceptAttempt_SingleWinner — ключевое свойство координатора:
// из N одновременных попыток принять один и тот же вызов успешна ровно
// одна, остальные получают AlreadyAssigned, и в хранилище закреплён
// именно победитель.
func TestAcceptAttempt_SingleWinner(t *testing.T) {
	const attempts = 32

	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	responders := make([]uuid.UUID, attempts)
	for i := range responders {
		responders[i] = uuid.New()
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []uuid.UUID
		assigned int
		other    []error
	)

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(responderID uuid.UUID) {
			defer wg.Done()
			<-start

			_, err := svc.AcceptAttempt(context.Background(), e.ID, responderID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, responderID)
			case errors.Is(err, apperror.ErrAlreadyAssigned):
				assigned++
			default:
				other = append(other, err)
			}
		}(responders[i])
	}

	close(start)
	wg.Wait()

	if len(other) != 0 {
		t.Fatalf("неожиданные ошибки: %v", other)
	}
	if len(winners) != 1 {
		t.Fatalf("победитель должен быть ровно один, получено %d", len(winners))
	}
	if assigned != attempts-1 {
		t.Errorf("проигравших должно быть %d, получено %d", attempts-1, assigned)
	}

	final, err := store.GetByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if final.ResponderID == nil || *final.ResponderID != winners[0] {
		t.Error("в хранилище должен быть закреплён победитель гонки")
	}
}

// TestTransitions_Monotonic проверяет, что при любом конкурентном
// переплетении accept/resolve статусы в хранилище образуют
// неубывающую последовательность pending < assigned < resolved.
func TestTransitions_Monotonic(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityMedium})

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		responderID := uuid.New()
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, _ = svc.AcceptAttempt(context.Background(), e.ID, responderID)
		}()
		go func() {
			defer wg.Done()
			<-start
			_, _ = svc.Resolve(context.Background(), e.ID, responderID, models.RoleAdmin)
		}()
	}

	close(start)
	wg.Wait()

	history := store.statusHistory(e.ID)
	if len(history) == 0 {
		t.Fatal("история статусов пуста")
	}
	for i := 1; i < len(history); i++ {
		if history[i].Rank() < history[i-1].Rank() {
			t.Fatalf("статус откатился назад: %v", history)
		}
	}
}

func TestResolve_Success(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e, _ := svc.Intake(context.Background(), validIntake())
	responderID := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, responderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), e.ID, responderID, models.RoleResponder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Status != models.EmergencyStatusResolved {
		t.Errorf("ожидался resolved, получен %s", resolved.Status)
	}
	if resolved.ResponderID == nil || *resolved.ResponderID != responderID {
		t.Error("привязка спасателя должна сохраниться после закрытия")
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolvedAt должен быть выставлен")
	}
}

// TestResolve_SecondCallRejected: повторное закрытие того же вызова —
// успех один раз и InvalidTransition на второй.
func TestResolve_SecondCallRejected(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e, _ := svc.Intake(context.Background(), validIntake())
	responderID := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, responderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Resolve(context.Background(), e.ID, responderID, models.RoleResponder); err != nil {
		t.Fatalf("первое закрытие должно пройти: %v", err)
	}

	_, err := svc.Resolve(context.Background(), e.ID, responderID, models.RoleResponder)
	if !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("ожидался ErrInvalidTransition, получено %v", err)
	}
}

func TestResolve_PendingRejected(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	e, _ := svc.Intake(context.Background(), validIntake())

	// Даже администратор не закрывает pending вызов напрямую.
	_, err := svc.Resolve(context.Background(), e.ID, uuid.New(), models.RoleAdmin)
	if !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("ожидался ErrInvalidTransition, получено %v", err)
	}
}

func TestResolve_ForeignAssignmentForbidden(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	e, _ := svc.Intake(context.Background(), validIntake())
	owner := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, owner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Чужой спасатель — нельзя.
	if _, err := svc.Resolve(context.Background(), e.ID, uuid.New(), models.RoleResponder); !apperror.IsForbidden(err) {
		t.Fatalf("ожидался forbidden, получено %v", err)
	}

	// Администратор — можно.
	if _, err := svc.Resolve(context.Background(), e.ID, uuid.New(), models.RoleAdmin); err != nil {
		t.Fatalf("администратор должен закрывать любой назначенный вызов: %v", err)
	}
}

func TestResolve_UserRoleForbidden(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	e, _ := svc.Intake(context.Background(), validIntake())

	if _, err := svc.Resolve(context.Background(), e.ID, e.ReporterID, models.RoleUser); !apperror.IsForbidden(err) {
		t.Fatalf("заявитель не может закрывать вызовы, получено %v", err)
	}
}

// TestListActive_Ordering — закон сортировки: вес приоритета по убыванию,
// затем createdAt по убыванию.
func TestListActive_Ordering(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, nil)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mk := func(priority models.Priority, offset time.Duration) uuid.UUID {
		e := &models.Emergency{
			ID:          uuid.New(),
			Type:        models.EmergencyTypeOther,
			Description: "d",
			Location:    "l",
			Priority:    priority,
			Status:      models.EmergencyStatusPending,
			ReporterID:  uuid.New(),
			CreatedAt:   base.Add(offset),
		}
		if err := store.Create(context.Background(), e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return e.ID
	}

	p1 := mk(models.PriorityLow, 10*time.Second)
	p2 := mk(models.PriorityHigh, 5*time.Second)
	p3 := mk(models.PriorityHigh, 20*time.Second)

	list, err := svc.ListActive(context.Background(), ActiveFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ожидалось 3 вызова, получено %d", len(list))
	}

	want := []uuid.UUID{p3, p2, p1}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("позиция %d: ожидался %s, получен %s", i, id, list[i].ID)
		}
	}
}

func TestListActive_ExcludesResolved(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e1, _ := svc.Intake(context.Background(), validIntake())
	e2, _ := svc.Intake(context.Background(), validIntake())

	responderID := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e1.ID, responderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), e1.ID, responderID, models.RoleResponder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := svc.ListActive(context.Background(), ActiveFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != e2.ID {
		t.Errorf("в активных должен остаться только %s", e2.ID)
	}
}

func TestListActive_FilterByReporter(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityLow})

	in1 := validIntake()
	in2 := validIntake()
	e1, _ := svc.Intake(context.Background(), in1)
	if _, err := svc.Intake(context.Background(), in2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	list, err := svc.ListActive(context.Background(), ActiveFilter{ReporterID: &in1.ReporterID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].ID != e1.ID {
		t.Errorf("фильтр по заявителю должен вернуть только его вызовы")
	}
}

// TestListPending_SkipsStaleQueueEntries: очередь может отставать от
// хранилища, но наружу никогда не отдаётся pending для вызова, который
// хранилище уже считает назначенным.
func TestListPending_SkipsStaleQueueEntries(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e1, _ := svc.Intake(context.Background(), validIntake())
	e2, _ := svc.Intake(context.Background(), validIntake())

	// Назначаем в обход координатора: очередь об этом не знает.
	now := time.Now().UTC()
	responderID := uuid.New()
	if _, err := store.UpdateStatusIf(context.Background(), e1.ID,
		models.EmergencyStatusPending, models.EmergencyStatusAssigned, &responderID, now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := svc.ListPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != e2.ID {
		t.Fatalf("устаревшая запись очереди должна быть отброшена, получено %d записей", len(pending))
	}
}

func TestRebuildQueue(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	e1, _ := svc.Intake(context.Background(), validIntake())
	e2, _ := svc.Intake(context.Background(), validIntake())
	if _, err := svc.AcceptAttempt(context.Background(), e1.ID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Свежий процесс с пустой очередью.
	svc2 := NewEmergencyService(store, nil, triage.NewQueue())
	if err := svc2.RebuildQueue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := svc2.ListPending(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != e2.ID {
		t.Errorf("после перестройки в очереди должен быть только pending вызов")
	}
}

// recordingNotifier собирает события переходов.
type recordingNotifier struct {
	mu     sync.Mutex
	events []models.TransitionEvent
	done   chan struct{}
	want   int
}

func newRecordingNotifier(want int) *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}), want: want}
}

func (n *recordingNotifier) NotifyTransition(ctx context.Context, e *models.Emergency, ev models.TransitionEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	if len(n.events) == n.want {
		close(n.done)
	}
	n.mu.Unlock()
}

func TestTransitionEventsEmitted(t *testing.T) {
	store := newMockEmergencyStore()
	svc := newTestService(store, &mockClassifier{priority: models.PriorityHigh})

	notifier := newRecordingNotifier(3)
	svc.SetNotifier(notifier)

	e, err := svc.Intake(context.Background(), validIntake())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	responderID := uuid.New()
	if _, err := svc.AcceptAttempt(context.Background(), e.ID, responderID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), e.ID, responderID, models.RoleResponder); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("события не доставлены")
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()

	seen := make(map[string]bool)
	for _, ev := range notifier.events {
		if ev.EmergencyID != e.ID {
			t.Errorf("событие для чужого вызова: %s", ev.EmergencyID)
		}
		seen[fmt.Sprintf("%s->%s", ev.OldStatus, ev.NewStatus)] = true
	}

	for _, transition := range []string{"->pending", "pending->assigned", "assigned->resolved"} {
		if !seen[transition] {
			t.Errorf("не было события %s", transition)
		}
	}
}
