package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
	"github.com/ignatzorin/escrow-backend/internal/repository"
)

// fakeDisputeThread повторяет семантику треда в памяти: мьютекс играет
// роль блокировки строки спора, seq выдаётся монотонно под ним. Всем
// пользовательским сообщениям назначается одна и та же грубая временная
// метка, чтобы порядок держался именно на seq.
type fakeDisputeThread struct {
	mu      sync.Mutex
	dispute models.Dispute
	msgs    []models.DisputeMessage
	nextSeq int64
	clock   time.Time
}

func newFakeDisputeThread(d models.Dispute) *fakeDisputeThread {
	return &fakeDisputeThread{
		dispute: d,
		nextSeq: 1,
		clock:   time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (f *fakeDisputeThread) Create(ctx context.Context, d *models.Dispute, openingMessage string) error {
	return nil
}

func (f *fakeDisputeThread) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.dispute.ID {
		return nil, repository.ErrDisputeNotFound
	}
	d := f.dispute
	return &d, nil
}

func (f *fakeDisputeThread) GetActiveByMilestoneID(ctx context.Context, milestoneID uuid.UUID) (*models.Dispute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if milestoneID != f.dispute.MilestoneID || f.dispute.Status == models.DisputeStatusResolved {
		return nil, repository.ErrDisputeNotFound
	}
	d := f.dispute
	return &d, nil
}

func (f *fakeDisputeThread) AssignMediator(ctx context.Context, id, mediatorID uuid.UUID, systemMessage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dispute.Status != models.DisputeStatusOpen {
		return false, nil
	}
	f.dispute.Status = models.DisputeStatusInMediation
	f.dispute.MediatorID = &mediatorID
	f.appendLocked(models.SenderSystem, nil, systemMessage, f.clock)
	return true, nil
}

func (f *fakeDisputeThread) Resolve(ctx context.Context, id uuid.UUID, resolution, outcome, systemMessage string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dispute.Status == models.DisputeStatusResolved {
		return false, nil
	}
	f.dispute.Status = models.DisputeStatusResolved
	f.dispute.Resolution = &resolution
	f.dispute.Outcome = &outcome
	f.appendLocked(models.SenderSystem, nil, systemMessage, f.clock.Add(time.Minute))
	return true, nil
}

func (f *fakeDisputeThread) AppendMessage(ctx context.Context, msg *models.DisputeMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dispute.Status == models.DisputeStatusResolved {
		return repository.ErrDisputeClosed
	}
	stored := f.appendLocked(msg.Sender, msg.SenderID, msg.Content, f.clock)
	msg.ID = stored.ID
	msg.Seq = stored.Seq
	msg.CreatedAt = stored.CreatedAt
	return nil
}

func (f *fakeDisputeThread) ListMessages(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DisputeMessage, len(f.msgs))
	copy(out, f.msgs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (f *fakeDisputeThread) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	return nil, nil
}

func (f *fakeDisputeThread) appendLocked(sender string, senderID *uuid.UUID, content string, at time.Time) models.DisputeMessage {
	msg := models.DisputeMessage{
		ID:        uuid.New(),
		DisputeID: f.dispute.ID,
		Sender:    sender,
		SenderID:  senderID,
		Content:   content,
		Seq:       f.nextSeq,
		CreatedAt: at,
	}
	f.nextSeq++
	f.msgs = append(f.msgs, msg)
	return msg
}

func newThreadFixture(t *testing.T) (*DisputeService, *fakeDisputeThread, *mockLedger, *models.Project, uuid.UUID) {
	t.Helper()

	clientID, freelancerID := uuid.New(), uuid.New()
	project := &models.Project{ID: uuid.New(), ClientID: clientID, FreelancerID: freelancerID}
	milestoneID := uuid.New()

	thread := newFakeDisputeThread(models.Dispute{
		ID:           uuid.New(),
		MilestoneID:  milestoneID,
		ProjectID:    project.ID,
		OpenedBy:     clientID,
		OpenedByRole: models.RoleClient,
		Status:       models.DisputeStatusOpen,
	})

	store := new(mockMilestoneStore)
	store.On("GetByID", mock.Anything, project.ID).Return(project, nil)
	ledger := new(mockLedger)

	return NewDisputeService(thread, store, ledger), thread, ledger, project, milestoneID
}

func TestDisputeService_MessageThread_ConcurrentTotalOrder(t *testing.T) {
	ctx := context.Background()
	svc, thread, _, project, _ := newThreadFixture(t)

	const perSender = 10
	var wg sync.WaitGroup
	post := func(userID uuid.UUID, role, prefix string) {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			_, err := svc.PostMessage(ctx, thread.dispute.ID, userID, role,
				fmt.Sprintf("%s: сообщение %d", prefix, i), nil)
			assert.NoError(t, err)
		}
	}
	wg.Add(2)
	go post(project.ClientID, models.RoleClient, "клиент")
	go post(project.FreelancerID, models.RoleFreelancer, "фрилансер")
	wg.Wait()

	messages, err := svc.ListMessages(ctx, thread.dispute.ID)
	assert.NoError(t, err)
	assert.Len(t, messages, 2*perSender)

	// Полный порядок (created_at, seq): при равных метках решает seq.
	for i := 1; i < len(messages); i++ {
		prev, cur := messages[i-1], messages[i]
		assert.False(t, cur.CreatedAt.Before(prev.CreatedAt))
		if cur.CreatedAt.Equal(prev.CreatedAt) {
			assert.Less(t, prev.Seq, cur.Seq)
		}
	}

	// seq внутри спора — перестановка 1..N без дыр и повторов.
	seen := make(map[int64]bool, len(messages))
	for _, m := range messages {
		seen[m.Seq] = true
	}
	for seq := int64(1); seq <= int64(len(messages)); seq++ {
		assert.True(t, seen[seq], "seq %d отсутствует в треде", seq)
	}

	// Сообщения каждого отправителя идут в порядке их отправки.
	lastIdx := map[string]int{"клиент": -1, "фрилансер": -1}
	for i := 0; i < perSender; i++ {
		for _, prefix := range []string{"клиент", "фрилансер"} {
			want := fmt.Sprintf("%s: сообщение %d", prefix, i)
			idx := indexOfContent(messages, want)
			assert.Greater(t, idx, lastIdx[prefix])
			lastIdx[prefix] = idx
		}
	}
}

func TestDisputeService_MessageThread_ResolveWinsRace(t *testing.T) {
	ctx := context.Background()
	svc, thread, ledger, project, milestoneID := newThreadFixture(t)

	entry := &models.EscrowEntry{MilestoneID: milestoneID, HeldAmount: 1000, Status: models.EscrowStatusRefunded}
	ledger.On("Refund", mock.Anything, milestoneID).Return(entry, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := svc.PostMessage(ctx, thread.dispute.ID, project.FreelancerID,
				models.RoleFreelancer, fmt.Sprintf("довод %d", i), nil); err != nil {
				assert.True(t, apperror.IsCode(err, apperror.ErrCodeDisputeClosed))
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Resolve(ctx, thread.dispute.ID, project.ClientID, models.RoleClient, ResolveInput{
			Resolution: "стороны договорились о возврате",
			Outcome:    models.OutcomeRefundToClient,
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	// После закрытия тред не принимает записи.
	_, err := svc.PostMessage(ctx, thread.dispute.ID, project.ClientID, models.RoleClient, "ещё довод", nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.ErrCodeDisputeClosed))

	// Финальное системное сообщение замыкает полный порядок треда.
	messages, err := svc.ListMessages(ctx, thread.dispute.ID)
	assert.NoError(t, err)
	assert.NotEmpty(t, messages)
	final := messages[len(messages)-1]
	assert.Equal(t, models.SenderSystem, final.Sender)
	assert.Contains(t, final.Content, "Спор закрыт")
	for _, m := range messages[:len(messages)-1] {
		assert.Less(t, m.Seq, final.Seq)
	}
}

func indexOfContent(messages []models.DisputeMessage, content string) int {
	for i := range messages {
		if messages[i].Content == content {
			return i
		}
	}
	return -1
}
