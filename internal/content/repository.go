// Package content loads study topics from a directory tree of plain-text notes.
package content

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"quizforge/internal/domain"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// paragraphSeparator joins the files of one topic.
const paragraphSeparator = "\n\n"

// Repository reads topics from a content root. Every sub-directory of the root
// is a topic; its .txt files, in file-name order, form the topic text.
type Repository struct {
	fs     afero.Fs
	logger *zap.Logger
}

func NewRepository(fs afero.Fs, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{fs: fs, logger: logger}
}

// Load returns the usable topics under root keyed by topic id. Topic folders
// without any non-blank .txt content are skipped with a warning.
func (r *Repository) Load(root string) (map[string]domain.Topic, error) {
	info, err := r.fs.Stat(root)
	if err != nil {
		return nil, domain.NewContentNotFoundError(fmt.Sprintf("content root %q not found", root), err)
	}
	if !info.IsDir() {
		return nil, domain.NewContentNotFoundError(fmt.Sprintf("content root %q is not a directory", root), nil)
	}

	entries, err := afero.ReadDir(r.fs, root)
	if err != nil {
		return nil, domain.NewContentNotFoundError(fmt.Sprintf("failed to read content root %q", root), err)
	}

	topics := make(map[string]domain.Topic)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		id := entry.Name()
		text, err := r.readTopic(filepath.Join(root, id))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			r.logger.Warn("Skipping topic without text", zap.String("topic_id", id))
			continue
		}
		topics[id] = domain.Topic{
			ID:          id,
			DisplayName: DisplayName(id),
			SourceText:  text,
		}
	}

	if len(topics) == 0 {
		return nil, domain.NewContentNotFoundError(fmt.Sprintf("no topic folders with .txt content under %q", root), nil)
	}
	r.logger.Info("Loaded topics", zap.String("root", root), zap.Int("count", len(topics)))
	return topics, nil
}

func (r *Repository) readTopic(dir string) (string, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read topic folder %s: %w", dir, err)
	}

	names := lo.FilterMap(entries, func(e os.FileInfo, _ int) (string, bool) {
		return e.Name(), !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt")
	})
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		data, err := afero.ReadFile(r.fs, filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
		parts = append(parts, string(data))
	}
	return strings.Join(parts, paragraphSeparator), nil
}

// DisplayName turns a folder name such as "1.1_Phishing" into "1.1 Phishing".
func DisplayName(id string) string {
	return strings.ReplaceAll(id, "_", " ")
}

// SortedIDs returns the topic ids in lexicographic order.
func SortedIDs(topics map[string]domain.Topic) []string {
	ids := lo.Keys(topics)
	sort.Strings(ids)
	return ids
}
