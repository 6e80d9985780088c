// Package catalog loads the multiple-choice question catalog from a YAML file
// and imports it into the question store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LeventeLantos/sms-questionnaire/internal/model"
	"github.com/LeventeLantos/sms-questionnaire/internal/repo"
)

type file struct {
	Questions []entry `yaml:"questions"`
}

type entry struct {
	Text    string         `yaml:"text"`
	Options []model.Option `yaml:"options"`
}

func LoadFile(path string) ([]model.Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a catalog document. Every problem found is
// reported, not just the first.
func Parse(r io.Reader) ([]model.Question, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	var errs []error
	out := make([]model.Question, 0, len(doc.Questions))
	for i, e := range doc.Questions {
		q := model.Question{Text: strings.TrimSpace(e.Text)}
		if q.Text == "" {
			errs = append(errs, fmt.Errorf("question %d: text is required", i+1))
		}
		if len(e.Options) == 0 {
			errs = append(errs, fmt.Errorf("question %d: at least one option is required", i+1))
		}

		seen := make(map[string]bool, len(e.Options))
		for j, o := range e.Options {
			o.Key = strings.TrimSpace(o.Key)
			o.Label = strings.TrimSpace(o.Label)
			switch {
			case o.Key == "":
				errs = append(errs, fmt.Errorf("question %d option %d: key is required", i+1, j+1))
			case seen[o.Key]:
				errs = append(errs, fmt.Errorf("question %d: duplicate option key %q", i+1, o.Key))
			}
			if o.Label == "" {
				errs = append(errs, fmt.Errorf("question %d option %d: label is required", i+1, j+1))
			}
			seen[o.Key] = true
			q.Options = append(q.Options, o)
		}
		out = append(out, q)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Import stores questions that are not in the catalog yet, matching on text.
// It returns how many were inserted.
func Import(ctx context.Context, questions repo.QuestionRepository, qs []model.Question) (int, error) {
	inserted := 0
	for _, q := range qs {
		stored, created, err := questions.Create(ctx, q)
		if err != nil {
			return inserted, fmt.Errorf("import %q: %w", q.Text, err)
		}
		if created {
			inserted++
			slog.Debug("question imported", "question_id", stored.ID, "options", len(stored.Options))
		}
	}
	return inserted, nil
}
