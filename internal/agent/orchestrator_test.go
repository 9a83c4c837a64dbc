package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contextRecord struct {
	category   ContextCategory
	value      any
	confidence float64
}

type interactionRecord struct {
	kind     InteractionType
	success  bool
	metadata map[string]any
}

type fakeStore struct {
	convs        map[string]*Conversation
	msgs         map[string][]Message
	contexts     map[string][]contextRecord
	interactions map[string][]interactionRecord
	seq          int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:        make(map[string]*Conversation),
		msgs:         make(map[string][]Message),
		contexts:     make(map[string][]contextRecord),
		interactions: make(map[string][]interactionRecord),
	}
}

func (s *fakeStore) seed(phone, dealershipID string, status ConversationStatus) *Conversation {
	s.seq++
	conv := &Conversation{
		ID:            fmt.Sprintf("conv-%d", s.seq),
		CustomerPhone: phone,
		DealershipID:  dealershipID,
		Status:        status,
		CreatedAt:     time.Now(),
		LastMessageAt: time.Now(),
	}
	s.convs[conv.ID] = conv
	return conv
}

func (s *fakeStore) FindActiveConversation(_ context.Context, phone, dealershipID string) (*Conversation, error) {
	for _, c := range s.convs {
		if c.CustomerPhone == phone && c.DealershipID == dealershipID &&
			(c.Status == StatusActive || c.Status == StatusHumanActive) {
			return c, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateConversation(_ context.Context, phone, dealershipID string) (*Conversation, error) {
	return s.seed(phone, dealershipID, StatusActive), nil
}

func (s *fakeStore) GetConversation(_ context.Context, conversationID string) (*Conversation, error) {
	conv, found := s.convs[conversationID]
	if !found {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, conversationID string, role MessageRole, content string, metadata map[string]any) (*Message, error) {
	s.seq++
	msg := Message{
		ID:             fmt.Sprintf("msg-%d", s.seq),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now(),
	}
	s.msgs[conversationID] = append(s.msgs[conversationID], msg)
	if conv, found := s.convs[conversationID]; found {
		conv.LastMessageAt = msg.CreatedAt
	}
	return &msg, nil
}

func (s *fakeStore) ListMessages(_ context.Context, conversationID string, limit int) ([]Message, error) {
	msgs := s.msgs[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *fakeStore) SetStatus(_ context.Context, conversationID string, status ConversationStatus) error {
	conv, found := s.convs[conversationID]
	if !found {
		return ErrConversationNotFound
	}
	conv.Status = status
	return nil
}

func (s *fakeStore) SetQualificationScore(_ context.Context, conversationID string, score int) error {
	conv, found := s.convs[conversationID]
	if !found {
		return ErrConversationNotFound
	}
	conv.QualificationScore = &score
	return nil
}

func (s *fakeStore) UpsertContext(_ context.Context, conversationID string, category ContextCategory, value any, confidence float64) error {
	s.contexts[conversationID] = append(s.contexts[conversationID], contextRecord{category: category, value: value, confidence: confidence})
	return nil
}

func (s *fakeStore) LogInteraction(_ context.Context, conversationID string, kind InteractionType, success bool, metadata map[string]any, _ string) error {
	s.interactions[conversationID] = append(s.interactions[conversationID], interactionRecord{kind: kind, success: success, metadata: metadata})
	return nil
}

func (s *fakeStore) CloseStale(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

type delivery struct {
	channel     Channel
	destination string
	text        string
}

type recordingDeliverer struct {
	deliveries []delivery
}

func (d *recordingDeliverer) Deliver(_ context.Context, channel Channel, destination, text string) {
	d.deliveries = append(d.deliveries, delivery{channel: channel, destination: destination, text: text})
}

type enqueuedJob struct {
	queue   string
	payload any
}

type recordingDispatcher struct {
	jobs []enqueuedJob
	err  error
}

func (d *recordingDispatcher) Enqueue(_ context.Context, queue string, payload any) error {
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, enqueuedJob{queue: queue, payload: payload})
	return nil
}

func (d *recordingDispatcher) forQueue(queue string) []enqueuedJob {
	var out []enqueuedJob
	for _, j := range d.jobs {
		if j.queue == queue {
			out = append(out, j)
		}
	}
	return out
}

type orchestratorFixture struct {
	store      *fakeStore
	llm        *scriptedLLM
	deliverer  *recordingDeliverer
	dispatcher *recordingDispatcher
	booking    *BookingIntentDetector
	orch       *Orchestrator
}

func newOrchestratorFixture(responses ...func() (LLMResponse, error)) *orchestratorFixture {
	if len(responses) == 0 {
		responses = []func() (LLMResponse, error){ok("Happy to help!")}
	}
	f := &orchestratorFixture{
		store:      newFakeStore(),
		llm:        &scriptedLLM{responses: responses},
		deliverer:  &recordingDeliverer{},
		dispatcher: &recordingDispatcher{},
		booking:    NewBookingIntentDetector(nil),
	}
	f.orch = NewOrchestrator(
		f.store,
		NewEscalationEvaluator(nil),
		f.booking,
		NewContextExtractor(nil),
		NewQualificationScorer(nil),
		NewReplyGenerator(f.llm, "test-model", nil, WithReplySleep(noSleep)),
		f.deliverer,
		f.dispatcher,
		nil,
	)
	return f
}

func TestOrchestrator_NewConversationResponds(t *testing.T) {
	f := newOrchestratorFixture(ok("We have several Camrys in stock!"))

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "Hi, I'm looking for a Toyota Camry",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionResponded, resp.Action)
	assert.Equal(t, "We have several Camrys in stock!", resp.Reply)
	assert.NotEmpty(t, resp.ConversationID)

	// two vehicle keywords plus one customer message
	assert.Equal(t, 20, resp.QualificationScore)
	conv := f.store.convs[resp.ConversationID]
	require.NotNil(t, conv.QualificationScore)
	assert.Equal(t, 20, *conv.QualificationScore)

	msgs := f.store.msgs[resp.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleCustomer, msgs[0].Role)
	assert.Equal(t, RoleAgent, msgs[1].Role)

	crmJobs := f.dispatcher.forQueue(QueueCRMSync)
	require.Len(t, crmJobs, 1)
	job, isCRM := crmJobs[0].payload.(CRMSyncJob)
	require.True(t, isCRM)
	assert.Equal(t, CRMSyncCreate, job.Action)
	assert.Equal(t, "+15551234567", job.CustomerPhone)

	require.Len(t, f.deliverer.deliveries, 1)
	assert.Equal(t, ChannelSMS, f.deliverer.deliveries[0].channel)
	assert.Equal(t, "+15551234567", f.deliverer.deliveries[0].destination)
	assert.Equal(t, "We have several Camrys in stock!", f.deliverer.deliveries[0].text)

	logged := f.store.interactions[resp.ConversationID]
	require.Len(t, logged, 1)
	assert.Equal(t, InteractionMessageSent, logged[0].kind)
	assert.True(t, logged[0].success)
}

func TestOrchestrator_ExistingConversationSkipsCRMCreate(t *testing.T) {
	f := newOrchestratorFixture()
	seeded := f.store.seed("+15551234567", "dealer-1", StatusActive)

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "hello again",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, resp.ConversationID)
	assert.Empty(t, f.dispatcher.forQueue(QueueCRMSync))
}

func TestOrchestrator_HumanActiveGate(t *testing.T) {
	f := newOrchestratorFixture()
	seeded := f.store.seed("+15551234567", "dealer-1", StatusHumanActive)

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "are you still there?",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionHumanActive, resp.Action)
	assert.Empty(t, resp.Reply)
	assert.Equal(t, 0, f.llm.calls)
	assert.Empty(t, f.deliverer.deliveries)

	// the message is still recorded for the human agent to see
	msgs := f.store.msgs[seeded.ID]
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleCustomer, msgs[0].Role)
	assert.Equal(t, "are you still there?", msgs[0].Content)
}

func TestOrchestrator_EscalationSkipsModel(t *testing.T) {
	f := newOrchestratorFixture()

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "I want to talk to a human",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionEscalated, resp.Action)
	assert.Equal(t, escalationReply, resp.Reply)
	assert.Equal(t, 0, f.llm.calls)

	conv := f.store.convs[resp.ConversationID]
	assert.Equal(t, StatusEscalated, conv.Status)

	notifyJobs := f.dispatcher.forQueue(QueueNotifications)
	require.Len(t, notifyJobs, 1)
	job, isNotify := notifyJobs[0].payload.(NotificationJob)
	require.True(t, isNotify)
	assert.Equal(t, NotifyEscalation, job.Type)

	msgs := f.store.msgs[resp.ConversationID]
	require.Len(t, msgs, 2)
	assert.Equal(t, escalationReply, msgs[1].Content)

	require.Len(t, f.deliverer.deliveries, 1)
	assert.Equal(t, escalationReply, f.deliverer.deliveries[0].text)

	logged := f.store.interactions[resp.ConversationID]
	require.Len(t, logged, 1)
	assert.Equal(t, InteractionEscalation, logged[0].kind)
}

func TestOrchestrator_BookingIntentSkipsModel(t *testing.T) {
	f := newOrchestratorFixture()
	base := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	f.booking.now = fixedClock(base)

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "Can I schedule a test drive tomorrow at 3pm?",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionBookingScheduled, resp.Action)
	assert.Contains(t, resp.Reply, "test drive request")
	assert.Equal(t, 0, f.llm.calls)

	bookingJobs := f.dispatcher.forQueue(QueueBooking)
	require.Len(t, bookingJobs, 1)
	job, isBooking := bookingJobs[0].payload.(BookingJob)
	require.True(t, isBooking)
	when, parseErr := time.Parse(time.RFC3339, job.PreferredDate)
	require.NoError(t, parseErr)
	assert.Equal(t, 15, when.Hour())
	assert.True(t, when.After(base))

	logged := f.store.interactions[resp.ConversationID]
	require.Len(t, logged, 1)
	assert.Equal(t, InteractionBooking, logged[0].kind)
}

func TestOrchestrator_HighScoreDispatch(t *testing.T) {
	f := newOrchestratorFixture()

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "I want to buy a used Toyota Camry sedan today, my budget is $30,000 and I'm trading in my current car",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionResponded, resp.Action)
	assert.GreaterOrEqual(t, resp.QualificationScore, 80)

	crmJobs := f.dispatcher.forQueue(QueueCRMSync)
	require.Len(t, crmJobs, 2)
	update, isCRM := crmJobs[1].payload.(CRMSyncJob)
	require.True(t, isCRM)
	assert.Equal(t, CRMSyncUpdate, update.Action)
	assert.Equal(t, resp.QualificationScore, update.QualificationScore)
	require.NotNil(t, update.VehicleInterest)
	assert.Equal(t, "Toyota", update.VehicleInterest.Make)

	bookingJobs := f.dispatcher.forQueue(QueueBooking)
	require.Len(t, bookingJobs, 1)
	booking, isBooking := bookingJobs[0].payload.(BookingJob)
	require.True(t, isBooking)
	assert.Equal(t, "today", booking.PreferredDate)

	notifyJobs := f.dispatcher.forQueue(QueueNotifications)
	require.Len(t, notifyJobs, 1)
	notify, isNotify := notifyJobs[0].payload.(NotificationJob)
	require.True(t, isNotify)
	assert.Equal(t, NotifyHighScoreLead, notify.Type)

	categories := make(map[ContextCategory]bool)
	for _, rec := range f.store.contexts[resp.ConversationID] {
		categories[rec.category] = true
	}
	assert.True(t, categories[CategoryVehicleInterest])
	assert.True(t, categories[CategoryBudget])
	assert.True(t, categories[CategoryTimeline])
	assert.True(t, categories[CategoryTradeIn])
}

func TestOrchestrator_EnqueueFailureDoesNotFailTurn(t *testing.T) {
	f := newOrchestratorFixture()
	f.dispatcher.err = errors.New("queue unavailable")

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "hello",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionResponded, resp.Action)
	assert.NotEmpty(t, resp.Reply)
}

func TestOrchestrator_WebRepliesNotDelivered(t *testing.T) {
	f := newOrchestratorFixture()

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "web-session-1",
		DealershipID:  "dealer-1",
		Message:       "hello",
		Channel:       ChannelWeb,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionResponded, resp.Action)
	assert.NotEmpty(t, resp.Reply)
	assert.Empty(t, f.deliverer.deliveries)
}

func TestOrchestrator_RepeatedMessagesEscalate(t *testing.T) {
	f := newOrchestratorFixture(ok("Let me check on that for you."))
	seeded := f.store.seed("+15551234567", "dealer-1", StatusActive)
	for i := 0; i < 2; i++ {
		_, err := f.store.AppendMessage(context.Background(), seeded.ID, RoleCustomer, "when will my quote be ready", nil)
		require.NoError(t, err)
		_, err = f.store.AppendMessage(context.Background(), seeded.ID, RoleAgent, "Let me check on that for you.", nil)
		require.NoError(t, err)
	}

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "when will my quote be ready",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionEscalated, resp.Action)
	assert.Equal(t, StatusEscalated, f.store.convs[seeded.ID].Status)
}

func TestOrchestrator_FallbackReplyStillResponds(t *testing.T) {
	f := newOrchestratorFixture(fail(errors.New("provider down")))

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "what is the price of the Camry",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionResponded, resp.Action)
	assert.Contains(t, resp.Reply, "pricing")
}

type staticDealerships struct {
	info *DealershipInfo
	err  error
}

func (d *staticDealerships) GetDealership(_ context.Context, _ string) (*DealershipInfo, error) {
	return d.info, d.err
}

func TestOrchestrator_DealershipLookupFailureIsNonFatal(t *testing.T) {
	f := newOrchestratorFixture()
	WithDealerships(&staticDealerships{err: errors.New("cache down")})(f.orch)

	resp, err := f.orch.HandleMessage(context.Background(), HandleMessageRequest{
		CustomerPhone: "+15551234567",
		DealershipID:  "dealer-1",
		Message:       "hello",
		Channel:       ChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, ActionResponded, resp.Action)
}
