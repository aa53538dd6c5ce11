package service

import (
	"context"
	"sync"
	"time"

	"quizforge/internal/content"
	"quizforge/internal/cost"
	"quizforge/internal/domain"
	"quizforge/internal/session"
	"quizforge/internal/util"

	"go.uber.org/zap"
)

// CurrentQuestion is the question a session is waiting on.
type CurrentQuestion struct {
	SessionID string
	Index     int
	Total     int
	Question  domain.Question
}

// PlayService runs quiz sessions for the HTTP front-end. Sessions live in a
// domain.SessionStore between requests.
type PlayService interface {
	Topics() []domain.Topic
	Estimate(spec domain.QuizSpec, pricing *cost.Pricing) (*Estimate, error)
	StartQuiz(ctx context.Context, spec domain.QuizSpec) (*domain.SessionSnapshot, error)
	GetSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	CurrentQuestion(ctx context.Context, sessionID string) (*CurrentQuestion, error)
	SubmitAnswer(ctx context.Context, sessionID string, chosen []int) (*domain.SessionSnapshot, error)
	EndSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	Score(ctx context.Context, sessionID string) (*session.Score, error)
}

type playService struct {
	generator QuizGenerator
	topics    map[string]domain.Topic
	client    domain.ModelClient
	store     domain.SessionStore
	delay     time.Duration
	pricing   *cost.Pricing
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

func NewPlayService(
	generator QuizGenerator,
	topics map[string]domain.Topic,
	client domain.ModelClient,
	store domain.SessionStore,
	delay time.Duration,
	pricing *cost.Pricing,
	logger *zap.Logger,
) PlayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &playService{
		generator: generator,
		topics:    topics,
		client:    client,
		store:     store,
		delay:     delay,
		pricing:   pricing,
		logger:    logger,
		locks:     make(map[string]*sessionLock),
	}
}

// Topics returns the loaded topics ordered by id.
func (s *playService) Topics() []domain.Topic {
	ids := content.SortedIDs(s.topics)
	out := make([]domain.Topic, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.topics[id])
	}
	return out
}

// Estimate prices spec with the given pricing, or with the configured pricing
// when nil. Without any pricing the model is treated as free.
func (s *playService) Estimate(spec domain.QuizSpec, pricing *cost.Pricing) (*Estimate, error) {
	p := cost.Pricing{}
	switch {
	case pricing != nil:
		p = *pricing
	case s.pricing != nil:
		p = *s.pricing
	}
	return s.generator.EstimateForSpec(spec, s.topics, p)
}

func (s *playService) StartQuiz(ctx context.Context, spec domain.QuizSpec) (*domain.SessionSnapshot, error) {
	quiz, err := s.generator.Generate(ctx, spec, s.topics, s.client, s.delay)
	if err != nil {
		return nil, err
	}

	sess := session.New(util.NewULID(), *quiz)
	snapshot := sess.Snapshot()
	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, domain.NewInternalError("failed to save session", err)
	}
	s.logger.Info("Quiz session started",
		zap.String("session_id", snapshot.ID),
		zap.String("quiz_id", quiz.ID),
		zap.Int("questions", len(quiz.Questions)),
		zap.Bool("partial", quiz.Partial))
	return snapshot, nil
}

func (s *playService) GetSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	return s.store.Get(ctx, sessionID)
}

func (s *playService) CurrentQuestion(ctx context.Context, sessionID string) (*CurrentQuestion, error) {
	var current *CurrentQuestion
	err := s.withSession(ctx, sessionID, func(sess *session.Session) error {
		q, idx, ok := sess.CurrentQuestion()
		if !ok {
			return domain.NewInvalidStateError("session is completed")
		}
		current = &CurrentQuestion{
			SessionID: sessionID,
			Index:     idx,
			Total:     len(sess.Quiz().Questions),
			Question:  q,
		}
		return nil
	})
	return current, err
}

func (s *playService) SubmitAnswer(ctx context.Context, sessionID string, chosen []int) (*domain.SessionSnapshot, error) {
	var snapshot *domain.SessionSnapshot
	err := s.withSession(ctx, sessionID, func(sess *session.Session) error {
		if err := sess.SubmitAnswer(chosen); err != nil {
			return err
		}
		snapshot = sess.Snapshot()
		return nil
	})
	return snapshot, err
}

func (s *playService) EndSession(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	var snapshot *domain.SessionSnapshot
	err := s.withSession(ctx, sessionID, func(sess *session.Session) error {
		sess.End()
		snapshot = sess.Snapshot()
		return nil
	})
	return snapshot, err
}

func (s *playService) Score(ctx context.Context, sessionID string) (*session.Score, error) {
	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess, err := session.Restore(snapshot)
	if err != nil {
		return nil, domain.NewInternalError("failed to restore session", err)
	}
	score, err := sess.Score()
	if err != nil {
		return nil, err
	}
	return &score, nil
}

// withSession loads a session, applies fn and saves the result. Calls for the
// same session id are serialized.
func (s *playService) withSession(ctx context.Context, sessionID string, fn func(*session.Session) error) error {
	s.acquire(sessionID)
	defer s.release(sessionID)

	snapshot, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	sess, err := session.Restore(snapshot)
	if err != nil {
		return domain.NewInternalError("failed to restore session", err)
	}
	before := sess.Snapshot()
	fnErr := fn(sess)

	after := sess.Snapshot()
	if after.State != before.State || len(after.Answers) != len(before.Answers) {
		if err := s.store.Save(ctx, after); err != nil {
			return domain.NewInternalError("failed to save session", err)
		}
	}
	return fnErr
}

// sessionLock serializes calls for one session id. refs counts the callers
// holding or waiting on it; the entry is dropped when it reaches zero.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (s *playService) acquire(sessionID string) {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		s.locks[sessionID] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
}

func (s *playService) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock := s.locks[sessionID]
	lock.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(s.locks, sessionID)
	}
}
