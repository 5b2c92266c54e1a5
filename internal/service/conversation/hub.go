// Package conversation owns the live conversations: one transcript
// reconciler per conversation, mutated only by the hub's run loop, plus
// the subscribers watching each conversation's message list.
package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-care-assistant-service/internal/models"
	"ai-care-assistant-service/internal/observability/logging"
	"ai-care-assistant-service/internal/observability/metrics"
	"ai-care-assistant-service/internal/service/transcript"
)

var (
	// ErrHubClosed is returned once the hub's run loop has stopped.
	ErrHubClosed = errors.New("conversation hub closed")

	// ErrConversationEnded is returned for a conversation that was ended.
	ErrConversationEnded = errors.New("conversation ended")
)

const (
	defaultSubscriberBuffer = 64
	defaultPublishBuffer    = 256

	// endedRetention is how long an ended conversation id keeps rejecting
	// late segments.
	endedRetention = 10 * time.Minute
	pruneInterval  = time.Minute
)

// Publisher receives every reconciled message change.
type Publisher interface {
	PublishMessage(ctx context.Context, event models.MessageUpserted) error
}

// Update is one reconciled message change pushed to subscribers.
type Update struct {
	ConversationID string                `json:"conversationId"`
	Position       int                   `json:"position"`
	Created        bool                  `json:"created"`
	Message        models.DisplayMessage `json:"message"`
}

// Subscription delivers a conversation's snapshot followed by its updates.
// C is closed when the conversation ends, the subscriber falls behind or
// the hub stops.
type Subscription struct {
	ConversationID string
	Snapshot       []models.DisplayMessage
	C              <-chan Update

	sub *subscriber
}

// Options configures a Hub.
type Options struct {
	UserAliases      []string
	LockFinals       bool
	Now              func() time.Time
	Publisher        Publisher
	Metrics          *metrics.Metrics
	SubscriberBuffer int
}

type subscriber struct {
	conversationID string
	ch             chan Update
}

type conversation struct {
	rec  *transcript.Reconciler
	subs map[*subscriber]struct{}
}

type ingestReq struct {
	conversationID string
	seg            models.TranscriptSegment
	reply          chan ingestResp
}

type ingestResp struct {
	res transcript.Result
	err error
}

type snapshotReq struct {
	conversationID string
	reply          chan snapshotResp
}

type snapshotResp struct {
	messages []models.DisplayMessage
	found    bool
}

type subscribeReq struct {
	conversationID string
	reply          chan subscribeResp
}

type subscribeResp struct {
	sub *Subscription
	err error
}

type endReq struct {
	conversationID string
	reply          chan bool
}

// Hub serializes all conversation state changes through a single run loop.
type Hub struct {
	opts    Options
	now     func() time.Time
	metrics *metrics.Metrics
	log     zerolog.Logger

	ingest      chan ingestReq
	snapshot    chan snapshotReq
	subscribe   chan subscribeReq
	unsubscribe chan *subscriber
	end         chan endReq
	publish     chan models.MessageUpserted
	stopped     chan struct{}
	done        chan struct{}

	// Owned by the run loop.
	conversations map[string]*conversation
	ended         map[string]time.Time
	lastPrune     time.Time
	subscribers   int
}

// NewHub creates a hub. Call Run to start processing.
func NewHub(opts Options) *Hub {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Hub{
		opts:          opts,
		now:           opts.Now,
		metrics:       opts.Metrics,
		log:           logging.WithComponent("conversation-hub"),
		ingest:        make(chan ingestReq),
		snapshot:      make(chan snapshotReq),
		subscribe:     make(chan subscribeReq),
		unsubscribe:   make(chan *subscriber),
		end:           make(chan endReq),
		publish:       make(chan models.MessageUpserted, defaultPublishBuffer),
		stopped:       make(chan struct{}),
		done:          make(chan struct{}),
		conversations: make(map[string]*conversation),
		ended:         make(map[string]time.Time),
	}
}

// Run processes requests until ctx is cancelled, then closes every
// subscription and drains the publish queue before returning.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("Conversation hub started")

	publishDone := make(chan struct{})
	go h.runPublisher(publishDone)

	defer func() {
		for _, c := range h.conversations {
			for s := range c.subs {
				close(s.ch)
			}
		}
		h.conversations = nil
		h.metrics.ConversationsActive.Set(0)
		h.metrics.Subscribers.Set(0)
		close(h.stopped)
		close(h.publish)
		<-publishDone
		close(h.done)
		h.log.Info().Msg("Conversation hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.ingest:
			res, err := h.handleIngest(req.conversationID, req.seg)
			req.reply <- ingestResp{res: res, err: err}

		case req := <-h.snapshot:
			c, ok := h.conversations[req.conversationID]
			if !ok {
				req.reply <- snapshotResp{}
				continue
			}
			req.reply <- snapshotResp{messages: c.rec.Messages(), found: true}

		case req := <-h.subscribe:
			req.reply <- h.handleSubscribe(req.conversationID)

		case s := <-h.unsubscribe:
			h.handleUnsubscribe(s)

		case req := <-h.end:
			req.reply <- h.handleEnd(req.conversationID)
		}
	}
}

func (h *Hub) handleIngest(conversationID string, seg models.TranscriptSegment) (transcript.Result, error) {
	h.pruneEnded()
	if _, ended := h.ended[conversationID]; ended {
		return transcript.Result{Outcome: transcript.OutcomeIgnored, Position: -1}, ErrConversationEnded
	}

	// Dropped segments never create a conversation.
	if !transcript.Accepts(seg) {
		h.metrics.RecordSegment(transcript.OutcomeDropped.String())
		return transcript.Result{Outcome: transcript.OutcomeDropped, Position: -1}, nil
	}

	c := h.conversation(conversationID)
	res := c.rec.Ingest(seg)
	h.metrics.RecordSegment(res.Outcome.String())

	if !res.Outcome.Changed() {
		return res, nil
	}

	update := Update{
		ConversationID: conversationID,
		Position:       res.Position,
		Created:        res.Outcome == transcript.OutcomeCreated,
		Message:        res.Message,
	}
	h.broadcast(c, update)
	h.enqueuePublish(update)
	return res, nil
}

func (h *Hub) handleSubscribe(conversationID string) subscribeResp {
	h.pruneEnded()
	if _, ended := h.ended[conversationID]; ended {
		return subscribeResp{err: ErrConversationEnded}
	}

	c := h.conversation(conversationID)
	s := &subscriber{conversationID: conversationID, ch: make(chan Update, h.opts.SubscriberBuffer)}
	c.subs[s] = struct{}{}
	h.subscribers++
	h.metrics.Subscribers.Set(float64(h.subscribers))

	l := logging.WithConversation(conversationID)
	l.Debug().
		Int("subscribers", len(c.subs)).
		Msg("Subscriber added")

	return subscribeResp{sub: &Subscription{
		ConversationID: conversationID,
		Snapshot:       c.rec.Messages(),
		C:              s.ch,
		sub:            s,
	}}
}

func (h *Hub) handleUnsubscribe(s *subscriber) {
	c, ok := h.conversations[s.conversationID]
	if !ok {
		return
	}
	if _, ok := c.subs[s]; !ok {
		return
	}
	h.dropSubscriber(c, s)

	// A watcher that leaves before anything was said leaves nothing behind.
	if len(c.subs) == 0 && c.rec.Len() == 0 {
		delete(h.conversations, s.conversationID)
		h.metrics.ConversationsActive.Set(float64(len(h.conversations)))
		l := logging.WithConversation(s.conversationID)
		l.Debug().Msg("Empty conversation discarded")
	}
}

// pruneEnded forgets ended ids past their retention, at most once per
// pruneInterval.
func (h *Hub) pruneEnded() {
	now := h.now()
	if now.Sub(h.lastPrune) < pruneInterval {
		return
	}
	h.lastPrune = now
	for id, at := range h.ended {
		if now.Sub(at) > endedRetention {
			delete(h.ended, id)
		}
	}
}

func (h *Hub) handleEnd(conversationID string) bool {
	h.pruneEnded()
	now := h.now()

	c, ok := h.conversations[conversationID]
	if !ok {
		return false
	}
	h.ended[conversationID] = now

	for s := range c.subs {
		h.dropSubscriber(c, s)
	}
	delete(h.conversations, conversationID)
	h.metrics.ConversationsActive.Set(float64(len(h.conversations)))

	l := logging.WithConversation(conversationID)
	l.Info().
		Int("messages", c.rec.Len()).
		Msg("Conversation ended")
	return true
}

func (h *Hub) conversation(conversationID string) *conversation {
	c, ok := h.conversations[conversationID]
	if ok {
		return c
	}

	l := logging.WithConversation(conversationID)
	c = &conversation{
		rec: transcript.NewReconciler(transcript.Options{
			UserAliases:    h.opts.UserAliases,
			LockFinals:     h.opts.LockFinals,
			Now:            h.now,
			ConversationID: conversationID,
		}),
		subs: make(map[*subscriber]struct{}),
	}
	h.conversations[conversationID] = c
	h.metrics.ConversationsActive.Set(float64(len(h.conversations)))
	l.Info().Msg("Conversation started")
	return c
}

// broadcast never blocks the run loop: a subscriber whose buffer is full is
// dropped and must resubscribe for a fresh snapshot.
func (h *Hub) broadcast(c *conversation, u Update) {
	for s := range c.subs {
		select {
		case s.ch <- u:
		default:
			h.log.Warn().Str("conversationId", u.ConversationID).Msg("Subscriber too slow, dropping")
			h.dropSubscriber(c, s)
		}
	}
}

func (h *Hub) dropSubscriber(c *conversation, s *subscriber) {
	delete(c.subs, s)
	close(s.ch)
	h.subscribers--
	h.metrics.Subscribers.Set(float64(h.subscribers))
}

func (h *Hub) enqueuePublish(u Update) {
	if h.opts.Publisher == nil {
		return
	}
	event := models.MessageUpserted{
		EventType:      models.EventTypeMessageUpserted,
		ConversationID: u.ConversationID,
		Position:       u.Position,
		Created:        u.Created,
		Message:        u.Message,
		Timestamp:      h.now().UnixMilli(),
	}
	select {
	case h.publish <- event:
	default:
		l := logging.WithSegment(u.ConversationID, u.Message.ID)
		l.Warn().Msg("Publish queue full, dropping message event")
	}
}

// runPublisher drains the publish queue in order.
func (h *Hub) runPublisher(done chan<- struct{}) {
	defer close(done)
	for event := range h.publish {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := h.opts.Publisher.PublishMessage(ctx, event); err != nil {
			l := logging.WithSegment(event.ConversationID, event.Message.ID)
			l.Error().Err(err).Msg("Failed to publish message event")
		}
		cancel()
	}
}

// Ingest applies a transcript segment to a conversation, creating the
// conversation on first use.
func (h *Hub) Ingest(ctx context.Context, conversationID string, seg models.TranscriptSegment) (transcript.Result, error) {
	reply := make(chan ingestResp, 1)
	if err := send(ctx, h, h.ingest, ingestReq{conversationID: conversationID, seg: seg, reply: reply}); err != nil {
		return transcript.Result{Position: -1}, err
	}
	r := <-reply
	return r.res, r.err
}

// Messages returns a conversation's ordered message list.
func (h *Hub) Messages(ctx context.Context, conversationID string) ([]models.DisplayMessage, bool, error) {
	reply := make(chan snapshotResp, 1)
	if err := send(ctx, h, h.snapshot, snapshotReq{conversationID: conversationID, reply: reply}); err != nil {
		return nil, false, err
	}
	r := <-reply
	return r.messages, r.found, nil
}

// Subscribe registers for a conversation's updates.
func (h *Hub) Subscribe(ctx context.Context, conversationID string) (*Subscription, error) {
	reply := make(chan subscribeResp, 1)
	if err := send(ctx, h, h.subscribe, subscribeReq{conversationID: conversationID, reply: reply}); err != nil {
		return nil, err
	}
	r := <-reply
	return r.sub, r.err
}

// Unsubscribe stops a subscription. It is safe to call more than once and
// after the hub has stopped.
func (h *Hub) Unsubscribe(s *Subscription) {
	if s == nil || s.sub == nil {
		return
	}
	select {
	case h.unsubscribe <- s.sub:
	case <-h.stopped:
	}
}

// End tears a conversation down. Its subscriptions are closed and later
// segments for the id are rejected for a while. found reports whether the
// conversation existed; unknown ids are left untouched.
func (h *Hub) End(ctx context.Context, conversationID string) (found bool, err error) {
	reply := make(chan bool, 1)
	if err := send(ctx, h, h.end, endReq{conversationID: conversationID, reply: reply}); err != nil {
		return false, err
	}
	return <-reply, nil
}

// Done is closed once the run loop has stopped and every queued message
// event has been handed to the Publisher.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func send[T any](ctx context.Context, h *Hub, ch chan<- T, req T) error {
	select {
	case ch <- req:
		return nil
	case <-h.stopped:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
