package settings

import (
	"fmt"
	"path/filepath"

	"quizforge/internal/domain"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	keyTopics            = "topics"
	keyQuestionCount     = "question_count"
	keyAnswerMode        = "answer_mode"
	keyGenerationMode    = "generation_mode"
	keyPricingEnabled    = "pricing.enabled"
	keyPricingInput      = "pricing.input_per_million"
	keyPricingOutput     = "pricing.output_per_million"
	defaultQuestionCount = 5
)

// Pricing is the manual pricing last entered by the user, in USD per million tokens.
type Pricing struct {
	Enabled          bool
	InputPerMillion  float64
	OutputPerMillion float64
}

// Selection is the quiz setup restored on the next start.
type Selection struct {
	TopicIDs       []string
	QuestionCount  int
	AnswerMode     domain.AnswerMode
	GenerationMode domain.GenerationMode
	Pricing        Pricing
}

// Defaults is the selection used when nothing was saved yet.
func Defaults() Selection {
	return Selection{
		QuestionCount:  defaultQuestionCount,
		AnswerMode:     domain.AnswerModeSingle,
		GenerationMode: domain.GenerationModeSingleCall,
	}
}

// Spec converts the selection into a quiz spec.
func (s Selection) Spec() domain.QuizSpec {
	return domain.NewQuizSpec(s.TopicIDs, s.QuestionCount, s.AnswerMode, s.GenerationMode)
}

// Store reads and writes the selection as YAML.
type Store struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

func NewStore(fs afero.Fs, path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{fs: fs, path: path, logger: logger}
}

func (s *Store) newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(s.fs)
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	return v
}

// Load returns the saved selection. A missing file yields Defaults. Values that
// no longer parse are replaced by their default and logged.
func (s *Store) Load() (Selection, error) {
	sel := Defaults()

	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return sel, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if !exists {
		return sel, nil
	}

	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		return sel, fmt.Errorf("failed to read settings file: %w", err)
	}

	sel.TopicIDs = v.GetStringSlice(keyTopics)
	if n := v.GetInt(keyQuestionCount); n > 0 {
		sel.QuestionCount = n
	}
	if raw := v.GetString(keyAnswerMode); raw != "" {
		if mode, err := domain.ParseAnswerMode(raw); err == nil {
			sel.AnswerMode = mode
		} else {
			s.logger.Warn("Ignoring saved answer mode", zap.String("value", raw))
		}
	}
	if raw := v.GetString(keyGenerationMode); raw != "" {
		if mode, err := domain.ParseGenerationMode(raw); err == nil {
			sel.GenerationMode = mode
		} else {
			s.logger.Warn("Ignoring saved generation mode", zap.String("value", raw))
		}
	}
	sel.Pricing = Pricing{
		Enabled:          v.GetBool(keyPricingEnabled),
		InputPerMillion:  v.GetFloat64(keyPricingInput),
		OutputPerMillion: v.GetFloat64(keyPricingOutput),
	}
	if sel.Pricing.InputPerMillion < 0 || sel.Pricing.OutputPerMillion < 0 {
		s.logger.Warn("Ignoring negative saved pricing")
		sel.Pricing = Pricing{}
	}
	return sel, nil
}

// Save writes sel, replacing the previous file.
func (s *Store) Save(sel Selection) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	v := s.newViper()
	topics := sel.TopicIDs
	if topics == nil {
		topics = []string{}
	}
	v.Set(keyTopics, topics)
	v.Set(keyQuestionCount, sel.QuestionCount)
	v.Set(keyAnswerMode, string(sel.AnswerMode))
	v.Set(keyGenerationMode, string(sel.GenerationMode))
	v.Set(keyPricingEnabled, sel.Pricing.Enabled)
	v.Set(keyPricingInput, sel.Pricing.InputPerMillion)
	v.Set(keyPricingOutput, sel.Pricing.OutputPerMillion)

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	s.logger.Debug("Settings saved", zap.String("path", s.path))
	return nil
}
