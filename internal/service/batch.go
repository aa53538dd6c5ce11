package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"quizforge/internal/content"
	"quizforge/internal/domain"
	"quizforge/internal/parser"
	"quizforge/internal/util"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// BatchOptions describes one export run. Empty TopicIDs means every topic.
type BatchOptions struct {
	TopicIDs          []string
	QuestionsPerTopic int
	AnswerMode        domain.AnswerMode
	GenerationMode    domain.GenerationMode
	OutputDir         string
}

// BatchResult is the outcome for one topic. Err is set when nothing was written.
type BatchResult struct {
	TopicID   string
	File      string
	Requested int
	Generated int
	Err       error
}

// BatchService generates one quiz per topic and writes each as a quiz file.
type BatchService interface {
	GenerateAndExport(ctx context.Context, opts BatchOptions) ([]BatchResult, error)
}

type batchService struct {
	generator QuizGenerator
	topics    map[string]domain.Topic
	client    domain.ModelClient
	delay     time.Duration
	fs        afero.Fs
	sleep     SleepFunc
	logger    *zap.Logger
}

func NewBatchService(
	generator QuizGenerator,
	topics map[string]domain.Topic,
	client domain.ModelClient,
	delay time.Duration,
	fs afero.Fs,
	logger *zap.Logger,
) BatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &batchService{
		generator: generator,
		topics:    topics,
		client:    client,
		delay:     delay,
		fs:        fs,
		sleep:     sleepContext,
		logger:    logger,
	}
}

// GenerateAndExport processes topics in order. A failing topic is logged and
// skipped. Cancellation or a fatal provider error stops the run and returns
// the results so far with the error.
func (s *batchService) GenerateAndExport(ctx context.Context, opts BatchOptions) ([]BatchResult, error) {
	topicIDs := opts.TopicIDs
	if len(topicIDs) == 0 {
		topicIDs = content.SortedIDs(s.topics)
	}
	if len(topicIDs) == 0 {
		s.logger.Info("No topics found. Batch process finishing early.")
		return nil, nil
	}
	if err := s.fs.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, domain.NewInternalError("failed to create output directory", err)
	}

	s.logger.Info("Starting batch quiz export",
		zap.Int("topics", len(topicIDs)),
		zap.Int("questions_per_topic", opts.QuestionsPerTopic),
		zap.String("output_dir", opts.OutputDir))

	results := make([]BatchResult, 0, len(topicIDs))
	for i, id := range topicIDs {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return results, err
			}
		}

		result := s.exportTopic(ctx, id, opts)
		results = append(results, result)

		var genErr *domain.GenerationError
		if errors.As(result.Err, &genErr) {
			switch genErr.Kind {
			case domain.KindCancelled:
				return results, ctx.Err()
			case domain.KindFatal:
				s.logger.Error("Fatal provider error, stopping batch export",
					zap.String("topic_id", id), zap.Int("remaining", len(topicIDs)-i-1))
				return results, result.Err
			}
		}
	}
	return results, nil
}

func (s *batchService) exportTopic(ctx context.Context, topicID string, opts BatchOptions) BatchResult {
	result := BatchResult{TopicID: topicID, Requested: opts.QuestionsPerTopic}
	spec := domain.NewQuizSpec([]string{topicID}, opts.QuestionsPerTopic, opts.AnswerMode, opts.GenerationMode)

	quiz, err := s.generator.Generate(ctx, spec, s.topics, s.client, s.delay)
	if err != nil {
		s.logger.Error("Failed to generate quiz for topic", zap.String("topic_id", topicID), zap.Error(err))
		result.Err = err
		if quiz == nil || len(quiz.Questions) == 0 {
			return result
		}
	}

	result.File = filepath.Join(opts.OutputDir, topicID+".json")
	if werr := afero.WriteFile(s.fs, result.File, []byte(parser.Format(quiz.Questions)), 0o644); werr != nil {
		s.logger.Error("Failed to write quiz file", zap.String("file", result.File), zap.Error(werr))
		result.File = ""
		result.Err = domain.NewInternalError("failed to write quiz file", werr)
		return result
	}
	result.Generated = len(quiz.Questions)
	s.logger.Info("Quiz exported",
		zap.String("topic_id", topicID),
		zap.String("file", result.File),
		zap.Int("generated", result.Generated),
		zap.Int("requested", result.Requested))
	return result
}

// LoadQuizFile reads a quiz file written by GenerateAndExport (or any text in
// the model response shape) into a playable quiz.
func LoadQuizFile(fs afero.Fs, path string, logger *zap.Logger) (*domain.Quiz, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read quiz file: %w", err)
	}
	questions, err := parser.New(logger).Parse(string(raw), 0)
	if err != nil {
		return nil, fmt.Errorf("quiz file %s: %w", path, err)
	}
	return &domain.Quiz{
		ID:             util.NewULID(),
		Questions:      questions,
		RequestedCount: len(questions),
		GeneratedAt:    time.Now(),
	}, nil
}
