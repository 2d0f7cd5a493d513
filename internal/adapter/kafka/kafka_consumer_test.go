package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josepablo-design/marketplace/internal/logging"
	"github.com/josepablo-design/marketplace/internal/usecase"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
	meta   []string
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
	s.meta = append(s.meta, metadata)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(values ...string) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "stripe.events", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return &fakeClaim{ch: ch}
}

type fakeEvents struct {
	got  []string
	fail map[string]error
}

func (f *fakeEvents) HandleEvent(_ context.Context, ev usecase.PaymentEvent) (usecase.Outcome, error) {
	f.got = append(f.got, ev.ID)
	if err := f.fail[ev.ID]; err != nil {
		return "", err
	}
	return usecase.OutcomeApplied, nil
}

const (
	evt1 = `{"id":"evt_1","type":"payment_intent.succeeded","created":1,"data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"orderId":"o1"}}}}`
	evt2 = `{"id":"evt_2","type":"payment_intent.payment_failed","created":1,"data":{"object":{"id":"pi_2","object":"payment_intent","metadata":{"orderId":"o2"}}}}`
)

func newHandler(events *fakeEvents) *cgHandler {
	return &cgHandler{handle: NewPaymentEventHandler(events).Handle, log: logging.Discard()}
}

func TestConsumeClaim_MarksHandledAndSkipsPoison(t *testing.T) {
	events := &fakeEvents{}
	h := newHandler(events)
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, h.ConsumeClaim(sess, claimOf(evt1, `garbage`, evt2)))

	assert.Equal(t, []string{"evt_1", "evt_2"}, events.got)
	assert.Equal(t, []int64{0, 1, 2}, sess.marked)
	assert.Equal(t, []string{"", "skipped", ""}, sess.meta)
	assert.False(t, h.failed())
}

func TestConsumeClaim_StopsAtFailure(t *testing.T) {
	events := &fakeEvents{fail: map[string]error{"evt_1": errors.New("db down")}}
	h := newHandler(events)
	sess := &fakeSession{ctx: context.Background()}

	require.NoError(t, h.ConsumeClaim(sess, claimOf(evt1, evt2)))

	// evt_2 is not processed; the session restarts at evt_1
	assert.Equal(t, []string{"evt_1"}, events.got)
	assert.Empty(t, sess.marked)
	assert.True(t, h.failed())

	require.NoError(t, h.Setup(sess))
	assert.False(t, h.failed())
}

type fakeGroup struct {
	sarama.ConsumerGroup
	errs   chan error
	calls  int
	claims []*fakeClaim
	cancel context.CancelFunc
	sess   *fakeSession
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }

func (g *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	g.calls++
	if g.calls > len(g.claims) {
		g.cancel()
		<-ctx.Done()
		return nil
	}
	if err := handler.Setup(g.sess); err != nil {
		return err
	}
	return handler.ConsumeClaim(g.sess, g.claims[g.calls-1])
}

func TestConsumer_RejoinsAfterFailedMessage(t *testing.T) {
	events := &fakeEvents{fail: map[string]error{"evt_1": errors.New("db down")}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g := &fakeGroup{errs: make(chan error), cancel: cancel, sess: &fakeSession{ctx: ctx}}
	// the second session redelivers evt_1 after the failure
	g.claims = []*fakeClaim{claimOf(evt1, evt2), claimOf(evt1, evt2)}

	c := NewConsumer(g, []string{"stripe.events"}, NewPaymentEventHandler(events).Handle)
	c.RetryBackoff = time.Millisecond
	c.log = logging.Discard()

	done := make(chan error, 1)
	go func() {
		err := c.Start(ctx)
		close(g.errs)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, 3, g.calls)
	assert.Equal(t, []string{"evt_1", "evt_1"}, events.got)
	assert.Empty(t, g.sess.marked)
}
