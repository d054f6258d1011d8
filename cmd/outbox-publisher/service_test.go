package main

import (
	"context"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/licensegate-backend/pkg/config"
	"github.com/angelmondragon/licensegate-backend/pkg/db/models"
	"github.com/angelmondragon/licensegate-backend/pkg/enums"
	"github.com/angelmondragon/licensegate-backend/pkg/logger"
)

type stubDB struct{}

func (stubDB) Ping(context.Context) error {
	return nil
}

func (stubDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPubSub struct{}

func (stubPubSub) Ping(context.Context) error {
	return nil
}

func (stubPubSub) AccountsPublisher() *gcppubsub.Publisher {
	return nil
}

type stubRepo struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (s *stubRepo) FetchUnpublishedForPublish(_ *gorm.DB, _, _ int) ([]models.OutboxEvent, error) {
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *stubRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	s.published = append(s.published, id)
	return nil
}

func (s *stubRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	s.failed = append(s.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "msg-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.messages = append(p.messages, msg)
	return fakeResult{err: p.err}
}

func outboxEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventAccountCreated,
		AggregateType: enums.AggregateProfile,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":1,"eventId":"` + uuid.NewString() + `","data":{}}`),
		CreatedAt:     time.Now(),
	}
}

func newPublisherService(t *testing.T, repo *stubRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "outbox-test"}),
		DB:         stubDB{},
		PubSub:     stubPubSub{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	event := outboxEvent()
	repo := &stubRepo{pending: []models.OutboxEvent{event}}
	pub := &fakePublisher{}
	svc := newPublisherService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["event_type"] != string(enums.EventAccountCreated) {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("expected event marked published, got %+v", repo.published)
	}
	if len(repo.failed) != 0 {
		t.Fatal("no failures expected")
	}
}

func TestProcessBatchMarksFailureAndContinues(t *testing.T) {
	first := outboxEvent()
	second := outboxEvent()
	repo := &stubRepo{pending: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{err: errors.New("topic unavailable")}
	svc := newPublisherService(t, repo, pub)

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to report work done")
	}
	if len(repo.failed) != 2 {
		t.Fatalf("both events must be marked failed, got %+v", repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatal("nothing should be marked published")
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	repo := &stubRepo{}
	svc := newPublisherService(t, repo, &fakePublisher{})

	processed, err := svc.processBatch(context.Background())
	if err != nil {
		t.Fatalf("processBatch returned error: %v", err)
	}
	if processed {
		t.Fatal("empty outbox must report no work")
	}
}
