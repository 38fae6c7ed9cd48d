// Package prompt walks a wizard session in the terminal. Each step's fields
// are prompted by kind, validation errors are shown and the step is asked
// again, derive targets are skipped while they mirror their source, and the
// last step stages a file and submits.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/derive"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/session"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

const (
	choiceContinue = "Continue"
	choiceBack     = "Back"
	choiceSubmit   = "Submit"
	choiceCancel   = "Cancel"
	choiceSkip     = "(skip)"
)

// Runner drives a session through a Driver.
type Runner struct {
	driver Driver
	open   FileOpener
	logger *zap.Logger
	theme  Theme
}

// New builds a runner with the survey driver and OpenFile defaults.
func New(opts ...Option) *Runner {
	r := &Runner{
		driver: NewSurveyDriver(nil),
		open:   OpenFile,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Run prompts until the session is submitted successfully, the user gives up
// after a failed submission, or the user cancels (ErrAborted).
func (r *Runner) Run(ctx context.Context, sess *session.Session) (submit.Outcome, error) {
	if sess == nil {
		return submit.Outcome{}, ErrNoSession
	}
	engine := sess.Engine()

	var rejected map[string]any
	for {
		if err := ctx.Err(); err != nil {
			return submit.Outcome{}, err
		}
		snap := engine.Snapshot()
		step := engine.Current()

		title := step.Title
		if title == "" {
			title = step.Key
		}
		r.info(ctx, fmt.Sprintf("Step %d of %d: %s", position(snap.Active, step.Key), len(snap.Active), title))

		if !snap.IsFirst {
			choice, err := r.choose(ctx, title, step.Description, choiceContinue, choiceBack)
			if err != nil {
				return submit.Outcome{}, err
			}
			if choice == choiceBack {
				sess.Back()
				rejected = nil
				continue
			}
		}

		prefill := model.Record(rejected)
		if prefill == nil {
			prefill, _ = engine.Values(step.Key)
		}
		raw, err := r.promptStep(ctx, step, prefill)
		if err != nil {
			return submit.Outcome{}, err
		}

		next, err := sess.Next(step.Key, raw)
		if err != nil {
			var invalid *validation.Error
			if !errors.As(err, &invalid) {
				return submit.Outcome{}, err
			}
			r.showErrors(ctx, invalid.Fields)
			rejected = raw
			continue
		}
		rejected = nil

		if next.Index != snap.Index || !next.IsLast {
			continue
		}

		out, done, err := r.finish(ctx, sess, step)
		if err != nil || done {
			return out, err
		}
	}
}

// finish stages the upload and submits. done is false when the user went
// back to an earlier step.
func (r *Runner) finish(ctx context.Context, sess *session.Session, step model.Step) (submit.Outcome, bool, error) {
	for {
		if err := r.stage(ctx, sess, step); err != nil {
			return submit.Outcome{}, false, err
		}

		choice, err := r.choose(ctx, "Ready to submit", "", choiceSubmit, choiceBack, choiceCancel)
		if err != nil {
			return submit.Outcome{}, false, err
		}
		switch choice {
		case choiceBack:
			sess.Back()
			return submit.Outcome{}, false, nil
		case choiceCancel:
			return submit.Outcome{}, false, ErrAborted
		}

		out, err := sess.Submit(ctx)
		if err != nil {
			return out, false, err
		}
		switch out.Kind {
		case submit.OutcomeSuccess:
			r.info(ctx, fmt.Sprintf("Created %s", out.Entity.ID))
			return out, true, nil
		case submit.OutcomeMissingInput:
			r.fail(ctx, out.Message)
			continue
		}

		r.fail(ctx, out.Message)
		r.showFieldErrors(ctx, out.FieldErrors)
		r.logger.Debug("prompt submit failed", zap.String("stage", string(out.Stage)), zap.Error(out.Err))

		again, err := r.driver.Confirm(ctx, ConfirmConfig{Message: "Try again?", Default: true})
		if err != nil {
			return out, false, err
		}
		if !again {
			return out, true, nil
		}
	}
}

func (r *Runner) stage(ctx context.Context, sess *session.Session, step model.Step) error {
	if pending, ok := sess.Stager().Pending(); ok {
		keep, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: fmt.Sprintf("Keep %s (%d bytes)?", pending.FileName, pending.SizeBytes),
			Default: true,
		})
		if err != nil || keep {
			return err
		}
	}

	for {
		path, err := r.driver.Input(ctx, InputConfig{Message: "File to upload", Help: step.Description})
		if err != nil {
			return err
		}
		path = strings.TrimSpace(path)
		if path == "" {
			if _, ok := sess.Stager().Pending(); ok {
				return nil
			}
			r.fail(ctx, "A file is required")
			continue
		}

		file, err := r.open(path, sess.Stager().MaxBytes())
		if err != nil {
			var rejected *upload.RejectedError
			if errors.As(err, &rejected) {
				r.fail(ctx, fmt.Sprintf("%s was rejected: %s", rejected.FileName, rejected.Reason))
				continue
			}
			r.fail(ctx, fmt.Sprintf("Cannot read %s: %v", path, err))
			continue
		}
		pending, err := sess.Stage(file)
		if err != nil {
			var rejected *upload.RejectedError
			if errors.As(err, &rejected) {
				r.fail(ctx, fmt.Sprintf("%s was rejected: %s", rejected.FileName, rejected.Reason))
				continue
			}
			return err
		}
		r.info(ctx, fmt.Sprintf("Staged %s (%d bytes)", pending.FileName, pending.SizeBytes))
		return nil
	}
}

func (r *Runner) promptStep(ctx context.Context, step model.Step, prefill model.Record) (map[string]any, error) {
	vals := newValues(prefill)
	for _, field := range step.Fields {
		if rule, ok := step.DeriveTarget(field.Name); ok && derive.Mirrored(vals, rule) {
			continue
		}
		if err := r.promptField(ctx, field, field.Name, "", vals); err != nil {
			return nil, err
		}
	}
	return vals, nil
}

func (r *Runner) promptField(ctx context.Context, field model.FieldSpec, path, parent string, vals values) error {
	label := field.DisplayLabel()
	if parent != "" {
		label = parent + ": " + label
	}
	current, _ := vals.get(path)

	switch {
	case field.Kind == model.FieldKindObject:
		for _, child := range field.Nested {
			if err := r.promptField(ctx, child, path+"."+child.Name, label, vals); err != nil {
				return err
			}
		}
		return nil

	case field.Kind == model.FieldKindBoolean:
		resp, err := r.driver.Confirm(ctx, ConfirmConfig{
			Message: label,
			Default: condition.Truthy(current),
			Help:    field.Description,
		})
		if err != nil {
			return err
		}
		vals.set(path, resp)
		return nil

	case len(field.Options) > 0:
		options := make([]string, 0, len(field.Options)+1)
		defaultIdx := -1
		for i, option := range field.Options {
			options = append(options, option.DisplayLabel())
			if option.Value == stringify(current) {
				defaultIdx = i
			}
		}
		if !field.Required {
			options = append(options, choiceSkip)
		}
		idx, err := r.driver.Select(ctx, SelectConfig{
			Message:      label,
			Options:      options,
			DefaultIndex: defaultIdx,
			Help:         field.Description,
		})
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(field.Options) {
			vals.set(path, "")
			return nil
		}
		vals.set(path, field.Options[idx].Value)
		return nil
	}

	message := label
	if !field.Required {
		message += " (optional)"
	}
	help := field.Description
	if help == "" {
		help = field.Placeholder
	}
	resp, err := r.driver.Input(ctx, InputConfig{
		Message: message,
		Default: stringify(current),
		Help:    help,
	})
	if err != nil {
		return err
	}
	vals.set(path, resp)
	return nil
}

func (r *Runner) choose(ctx context.Context, message, help string, options ...string) (string, error) {
	idx, err := r.driver.Select(ctx, SelectConfig{
		Message:      message,
		Options:      options,
		DefaultIndex: 0,
		Help:         help,
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(options) {
		return options[0], nil
	}
	return options[idx], nil
}

func (r *Runner) showErrors(ctx context.Context, fields map[string]string) {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		r.fail(ctx, fmt.Sprintf("%s: %s", path, fields[path]))
	}
}

func (r *Runner) showFieldErrors(ctx context.Context, fields map[string][]string) {
	flat := make(map[string]string, len(fields))
	for path, messages := range fields {
		flat[path] = strings.Join(messages, "; ")
	}
	r.showErrors(ctx, flat)
}

func (r *Runner) info(ctx context.Context, msg string) {
	_ = r.driver.Info(ctx, r.theme.InfoPrefix+msg)
}

func (r *Runner) fail(ctx context.Context, msg string) {
	_ = r.driver.Info(ctx, r.theme.ErrorPrefix+msg)
}

func position(active []string, key string) int {
	for i, k := range active {
		if k == key {
			return i + 1
		}
	}
	return 0
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
