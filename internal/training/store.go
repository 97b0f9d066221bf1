// Package training persists training examples as indented JSON files, one
// per example, in a flat directory.
package training

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"codebuddy/internal/common/fsutil"
	"codebuddy/internal/langdetect"
	"codebuddy/pkg/types"
)

// Record sources written by the store.
const (
	SourceManual           = "Manual"
	SourceComparison       = "AI_Comparison"
	SourcePositiveFeedback = "Positive_Feedback"
	SourceNegativeFeedback = "Negative_Feedback"
	// SourceApp labels examples saved from the chat UI.
	SourceApp = "J's CodeBuddy AI"
)

const timestampLayout = "20060102_150405"

var (
	ErrIncomplete = errors.New("incomplete training example")
	ErrNotFound   = errors.New("training example not found")
	ErrEmptyDir   = errors.New("training directory is required")
)

// Config configures a Store.
type Config struct {
	Dir string
	// Detect maps a task to a language key. Defaults to langdetect.Detect.
	Detect func(string) string
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger zerolog.Logger
}

// Store reads and writes training examples under one directory.
type Store struct {
	dir    string
	detect func(string) string
	now    func() time.Time
	log    zerolog.Logger
}

// New creates the directory if needed and returns a Store over it.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, ErrEmptyDir
	}
	dir, err := fsutil.EnsureDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("training store: %w", err)
	}
	s := &Store{dir: dir, detect: cfg.Detect, now: cfg.Now, log: cfg.Logger}
	if s.detect == nil {
		s.detect = langdetect.Detect
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Dir returns the expanded directory path.
func (s *Store) Dir() string { return s.dir }

// example is the on-disk layout of a task/solution pair.
type example struct {
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Source      string `json:"source"`
	Language    string `json:"language"`
	Timestamp   string `json:"timestamp"`
}

// comparison is the on-disk layout of a side-by-side answer comparison.
type comparison struct {
	Instruction       string `json:"instruction"`
	CodebuddyResponse string `json:"codebuddy_response"`
	OtherAIResponse   string `json:"other_ai_response"`
	OtherAIName       string `json:"other_ai_name"`
	Source            string `json:"source"`
	Language          string `json:"language"`
	Timestamp         string `json:"timestamp"`
	ComparisonNotes   string `json:"comparison_notes"`
}

// SaveExample stores a task and its solution. The language is detected from
// the task; an empty source selects Manual. It returns the file name.
func (s *Store) SaveExample(task, solution, source string) (string, error) {
	if strings.TrimSpace(task) == "" || strings.TrimSpace(solution) == "" {
		return "", fmt.Errorf("%w: missing task or solution", ErrIncomplete)
	}
	if source == "" {
		source = SourceManual
	}
	lang := displayLanguage(s.detect(task))
	ts := s.now().Format(timestampLayout)
	rec := example{Instruction: task, Response: solution, Source: source, Language: lang, Timestamp: ts}
	name, err := s.create(fmt.Sprintf("%s_%s_%s", safeSegment(source), lang, ts), rec)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("name", name).Str("source", source).Str("language", lang).Msg("training event=saved")
	return name, nil
}

// SaveComparison stores the answers of this assistant and another system to
// the same question. An empty or "auto detect" language is detected.
func (s *Store) SaveComparison(question, codebuddyResponse, otherResponse, otherName, language string) (string, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(codebuddyResponse) == "" || strings.TrimSpace(otherResponse) == "" {
		return "", fmt.Errorf("%w: missing question or one of the responses", ErrIncomplete)
	}
	if l := strings.TrimSpace(language); l == "" || strings.EqualFold(l, "auto detect") {
		language = s.detect(question)
	}
	lang := displayLanguage(language)
	ts := s.now().Format(timestampLayout)
	rec := comparison{
		Instruction:       question,
		CodebuddyResponse: codebuddyResponse,
		OtherAIResponse:   otherResponse,
		OtherAIName:       otherName,
		Source:            SourceComparison,
		Language:          lang,
		Timestamp:         ts,
	}
	name, err := s.create(fmt.Sprintf("Comparison_%s_%s_%s", safeSegment(otherName), lang, ts), rec)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("name", name).Str("other", otherName).Msg("training event=comparison_saved")
	return name, nil
}

// SaveFeedback stores the last user message and the last assistant message
// of history as a feedback example.
func (s *Store) SaveFeedback(history []types.Turn, positive bool) (string, error) {
	if len(history) == 0 {
		return "", fmt.Errorf("%w: no conversation to provide feedback on", ErrIncomplete)
	}
	user, okUser := lastContent(history, types.RoleUser)
	bot, okBot := lastContent(history, types.RoleAssistant)
	if !okUser || !okBot {
		return "", fmt.Errorf("%w: incomplete conversation to provide feedback on", ErrIncomplete)
	}
	source := SourceNegativeFeedback
	if positive {
		source = SourcePositiveFeedback
	}
	return s.SaveExample(user, bot, source)
}

func lastContent(history []types.Turn, role types.Role) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if types.Role(strings.ToLower(string(history[i].Role))) == role {
			return history[i].Content, true
		}
	}
	return "", false
}

// create writes v to base.json, adding a random suffix if the name is taken.
func (s *Store) create(base string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode training example: %w", err)
	}
	name := base + ".json"
	for i := 0; i < 3; i++ {
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = base + "_" + uuid.NewString()[:8] + ".json"
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save training example: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("save training example: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("save training example: %w", err)
		}
		return name, nil
	}
	return "", fmt.Errorf("save training example: no free name for %s", base)
}

// Get reads one example by file name.
func (s *Store) Get(name string) (types.TrainingRecord, error) {
	var rec types.TrainingRecord
	data, err := s.read(name)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode %s: %w", name, err)
	}
	return rec, nil
}

// PrimaryResponse returns the assistant answer of rec: the compared answer
// for comparisons, the plain response otherwise.
func PrimaryResponse(rec types.TrainingRecord) string {
	if rec.Source == SourceComparison {
		return rec.CodebuddyResponse
	}
	return rec.Response
}

// SaveNotes sets the comparison_notes field of an example, keeping every
// other field as stored.
func (s *Store) SaveNotes(name, notes string) error {
	data, err := s.read(name)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	doc["comparison_notes"] = notes
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), out, 0o644); err != nil {
		return fmt.Errorf("save notes for %s: %w", name, err)
	}
	return nil
}

// Delete removes an example.
func (s *Store) Delete(name string) error {
	if _, err := fsutil.BaseName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	s.log.Info().Str("name", name).Msg("training event=deleted")
	return nil
}

func (s *Store) read(name string) ([]byte, error) {
	if _, err := fsutil.BaseName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// List returns summaries of the stored examples, newest first. language is
// "all" or a language name; source selects a class of sources.
func (s *Store) List(language string, source SourceFilter) ([]types.TrainingSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list training examples: %w", err)
	}
	allLanguages := language == "" || strings.EqualFold(language, "all")
	out := []types.TrainingSummary{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := s.Get(e.Name())
		if err != nil {
			s.log.Warn().Err(err).Str("name", e.Name()).Msg("training event=unreadable")
			if allLanguages {
				out = append(out, types.TrainingSummary{
					Name:      e.Name(),
					Source:    "Error: " + err.Error(),
					Language:  "Unknown",
					Timestamp: "Error",
					Preview:   "Could not load file",
				})
			}
			continue
		}
		lang := orDefault(rec.Language, "Unknown")
		if !allLanguages && !strings.EqualFold(lang, language) {
			continue
		}
		src := orDefault(rec.Source, "Unknown")
		if !source.Match(src) {
			continue
		}
		out = append(out, types.TrainingSummary{
			Name:      e.Name(),
			Source:    displaySource(src, rec.OtherAIName),
			Language:  lang,
			Timestamp: orDefault(rec.Timestamp, "Unknown"),
			Preview:   preview(rec.Instruction),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func displaySource(source, otherName string) string {
	if source == SourceComparison {
		return "Comparison with " + orDefault(otherName, "Other AI")
	}
	return strings.ReplaceAll(source, "_", " ")
}

const previewRunes = 50

func preview(s string) string {
	r := []rune(s)
	if len(r) > previewRunes {
		return string(r[:previewRunes]) + "..."
	}
	return s
}

// displayLanguage capitalizes a language key: python -> Python.
func displayLanguage(lang string) string {
	r := []rune(strings.ToLower(strings.TrimSpace(lang)))
	if len(r) == 0 {
		return "Unknown"
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// safeSegment keeps user-supplied labels from adding path components.
func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
