// Package wizard sequences the steps of a multi-step form. The engine owns
// the current step index and the accumulated FormState, validates step input,
// applies derived-field rules and decides which steps apply when a step
// declares a condition. It renders nothing; presentation layers bind to
// Next, Back, Reset and the Snapshot it returns.
package wizard

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-formwizard/pkg/condition"
	"github.com/goliatone/go-formwizard/pkg/derive"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/validation"
)

// Snapshot is a consistent view of the engine. Index and State always come
// from the same critical section.
type Snapshot struct {
	Index   int               `json:"index"`
	Key     string            `json:"key"`
	Title   string            `json:"title,omitempty"`
	Total   int               `json:"total"`
	IsFirst bool              `json:"isFirst"`
	IsLast  bool              `json:"isLast"`
	Active  []string          `json:"active"`
	State   model.FormState   `json:"state"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Engine drives one wizard session. It is safe for concurrent use.
type Engine struct {
	steps      []model.Step
	conditions []*condition.Expr

	validators     map[string]ValidateFunc
	validationOpts []validation.Option
	observers      []Observer
	logger         *zap.Logger

	mu     sync.RWMutex
	index  int
	state  model.FormState
	errors map[string]string
}

// New builds an engine over an ordered list of steps. Configuration problems
// (duplicate step keys, field names shared by two steps, malformed rules or
// conditions) are reported here rather than at runtime.
func New(steps []model.Step, opts ...Option) (*Engine, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	e := &Engine{
		steps:      append([]model.Step(nil), steps...),
		conditions: make([]*condition.Expr, len(steps)),
		logger:     zap.NewNop(),
		state:      model.FormState{},
	}
	if err := e.compile(); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	for key := range e.validators {
		if e.stepIndex(key) < 0 {
			return nil, fmt.Errorf("%w: validator registered for %q", ErrUnknownStep, key)
		}
	}

	e.index = e.firstActive(e.state)
	return e, nil
}

func (e *Engine) compile() error {
	keys := make(map[string]struct{}, len(e.steps))
	owners := make(map[string]string)

	for i, step := range e.steps {
		key := strings.TrimSpace(step.Key)
		if key == "" {
			return fmt.Errorf("wizard: step %d has an empty key", i)
		}
		if _, dup := keys[key]; dup {
			return fmt.Errorf("wizard: duplicate step key %q", key)
		}
		keys[key] = struct{}{}

		for _, field := range step.Fields {
			if err := validation.CheckField(field); err != nil {
				return fmt.Errorf("wizard: step %q: %w", key, err)
			}
			if owner, taken := owners[field.Name]; taken {
				return fmt.Errorf("wizard: field %q declared by steps %q and %q", field.Name, owner, key)
			}
			owners[field.Name] = key
		}

		for _, rule := range step.Derive {
			if len(step.Fields) == 0 {
				break
			}
			for _, name := range []string{rule.Flag, rule.Source, rule.Target} {
				if owners[name] != key {
					return fmt.Errorf("wizard: step %q derive rule references %q which the step does not declare", key, name)
				}
			}
		}

		if strings.TrimSpace(step.When) != "" {
			if i == 0 {
				return fmt.Errorf("wizard: first step %q cannot be conditional", key)
			}
			expr, err := condition.Compile(step.When)
			if err != nil {
				return fmt.Errorf("wizard: step %q condition: %w", key, err)
			}
			e.conditions[i] = expr
		}
	}
	return nil
}

// Transition returns state with validated stored under step.Key after the
// step's derive rules are applied. Other entries are shared unchanged.
func Transition(state model.FormState, step model.Step, validated model.Record) model.FormState {
	return state.With(step.Key, derive.Apply(validated, step.Derive))
}

// Next validates raw for the current step. Invalid input leaves the index
// unchanged and returns a *validation.Error. Valid input is stored and the
// engine advances to the next applicable step; on the last step the input is
// stored and the index stays put.
func (e *Engine) Next(stepKey string, raw map[string]any) (Snapshot, error) {
	e.mu.Lock()
	current := e.steps[e.index]
	if stepKey != current.Key {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, fmt.Errorf("%w: got %q, current is %q", ErrStepMismatch, stepKey, current.Key)
	}

	result := e.validate(current, derive.ApplyRaw(raw, current.Derive))
	if !result.Valid() {
		e.errors = result.Errors
		snap := e.snapshotLocked()
		e.mu.Unlock()
		e.logger.Debug("wizard step rejected",
			zap.String("step", current.Key),
			zap.Int("errors", len(result.Errors)),
		)
		e.notify(snap)
		return snap, result.Err()
	}

	e.state = Transition(e.state, current, result.Data)
	e.errors = nil
	if next := e.nextActive(e.index, e.state); next >= 0 {
		e.index = next
	}
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Debug("wizard step stored",
		zap.String("step", current.Key),
		zap.Int("index", snap.Index),
	)
	e.notify(snap)
	return snap, nil
}

// Back moves to the previous applicable step without revalidating or
// discarding stored input. At the first step it is a no-op.
func (e *Engine) Back() Snapshot {
	e.mu.Lock()
	if prev := e.prevActive(e.index, e.state); prev >= 0 {
		e.index = prev
	}
	e.errors = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return snap
}

// Reset returns to the first step with an empty state.
func (e *Engine) Reset() Snapshot {
	e.mu.Lock()
	e.state = model.FormState{}
	e.errors = nil
	e.index = e.firstActive(e.state)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Debug("wizard reset")
	e.notify(snap)
	return snap
}

// Resolve applies the derive rules of a step to raw input without storing
// anything, so presentation can mirror fields while the user types.
func (e *Engine) Resolve(stepKey string, raw map[string]any) (map[string]any, error) {
	idx := e.stepIndex(stepKey)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStep, stepKey)
	}
	return derive.ApplyRaw(raw, e.steps[idx].Derive), nil
}

// Snapshot returns the current view of the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// CurrentIndex returns the index of the current step.
func (e *Engine) CurrentIndex() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index
}

// IsFirst reports whether no applicable step precedes the current one.
func (e *Engine) IsFirst() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prevActive(e.index, e.state) < 0
}

// IsLast reports whether no applicable step follows the current one.
func (e *Engine) IsLast() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nextActive(e.index, e.state) < 0
}

// Current returns the current step descriptor.
func (e *Engine) Current() model.Step {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.steps[e.index]
}

// Errors returns the field errors of the last rejected Next call.
func (e *Engine) Errors() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyErrors(e.errors)
}

// State returns a copy of every stored step record.
func (e *Engine) State() model.FormState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// ActiveState returns stored records of the steps that currently apply.
// Records left behind by steps that a later answer switched off are omitted.
func (e *Engine) ActiveState() model.FormState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := model.FormState{}
	for i, step := range e.steps {
		if !e.active(i, e.state) {
			continue
		}
		if record, ok := e.state[step.Key]; ok {
			out[step.Key] = record.Clone()
		}
	}
	return out
}

// Incomplete returns, in order, the keys of applicable steps that declare
// fields but have no stored record. A submission is only safe when it is
// empty.
func (e *Engine) Incomplete() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var keys []string
	for i, step := range e.steps {
		if len(step.Fields) == 0 || !e.active(i, e.state) {
			continue
		}
		if _, ok := e.state[step.Key]; !ok {
			keys = append(keys, step.Key)
		}
	}
	return keys
}

// Values returns the record stored for a step, used to prefill inputs when
// the user navigates back.
func (e *Engine) Values(stepKey string) (model.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	record, ok := e.state[stepKey]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Steps returns the engine's step descriptors in order.
func (e *Engine) Steps() []model.Step {
	return append([]model.Step(nil), e.steps...)
}

// Step returns the descriptor for key.
func (e *Engine) Step(key string) (model.Step, bool) {
	idx := e.stepIndex(key)
	if idx < 0 {
		return model.Step{}, false
	}
	return e.steps[idx], true
}

func (e *Engine) validate(step model.Step, raw map[string]any) validation.Result {
	if fn, ok := e.validators[step.Key]; ok {
		return fn(raw)
	}
	return validation.Validate(step.Fields, raw, e.validationOpts...)
}

func (e *Engine) snapshotLocked() Snapshot {
	step := e.steps[e.index]
	active := make([]string, 0, len(e.steps))
	for i, s := range e.steps {
		if e.active(i, e.state) {
			active = append(active, s.Key)
		}
	}
	return Snapshot{
		Index:   e.index,
		Key:     step.Key,
		Title:   step.Title,
		Total:   len(e.steps),
		IsFirst: e.prevActive(e.index, e.state) < 0,
		IsLast:  e.nextActive(e.index, e.state) < 0,
		Active:  active,
		State:   e.state.Clone(),
		Errors:  copyErrors(e.errors),
	}
}

func (e *Engine) notify(snap Snapshot) {
	for _, fn := range e.observers {
		fn(snap)
	}
}

func (e *Engine) stepIndex(key string) int {
	for i, step := range e.steps {
		if step.Key == key {
			return i
		}
	}
	return -1
}

func (e *Engine) active(i int, state model.FormState) bool {
	expr := e.conditions[i]
	if expr == nil {
		return true
	}
	return expr.Eval(conditionValues(state))
}

func (e *Engine) firstActive(state model.FormState) int {
	for i := range e.steps {
		if e.active(i, state) {
			return i
		}
	}
	return 0
}

func (e *Engine) nextActive(from int, state model.FormState) int {
	for i := from + 1; i < len(e.steps); i++ {
		if e.active(i, state) {
			return i
		}
	}
	return -1
}

func (e *Engine) prevActive(from int, state model.FormState) int {
	for i := from - 1; i >= 0; i-- {
		if e.active(i, state) {
			return i
		}
	}
	return -1
}

// conditionValues exposes stored fields both flat ("kind") and qualified by
// step key ("company.kind").
func conditionValues(state model.FormState) map[string]any {
	values := state.Values()
	for key, record := range state {
		if _, taken := values[key]; !taken {
			values[key] = map[string]any(record)
		}
	}
	return values
}

func copyErrors(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
