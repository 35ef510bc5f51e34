package statemachine

import "fmt"

// Option configures a transition table during construction.
type Option func(*Table) error

// TransitionOption configures a single transition.
type TransitionOption func(*transitionConfig)

type transitionConfig struct {
	guards []Guard
}

// WithTransition adds a single transition to the table.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(t *Table) error {
		cfg := &transitionConfig{}
		for _, opt := range opts {
			opt(cfg)
		}
		return t.add(from, to, event, cfg.guards)
	}
}

// WithTransitions declares a whole table. Errors name the offending index.
func WithTransitions(transitions []TransitionDef) Option {
	return func(t *Table) error {
		for i, def := range transitions {
			if err := t.add(def.From, def.To, def.Event, def.Guards); err != nil {
				return fmt.Errorf("failed to add transition[%d] %s->%s on %s: %w",
					i, nameOf(def.From), nameOf(def.To), nameOf(def.Event), err)
			}
		}
		return nil
	}
}

// WithGuard is WithGuards for one guard.
func WithGuard(guard Guard) TransitionOption {
	return WithGuards(guard)
}

// WithGuards requires every guard to pass. Nil guards are skipped.
func WithGuards(guards ...Guard) TransitionOption {
	return func(cfg *transitionConfig) {
		for _, guard := range guards {
			if guard != nil {
				cfg.guards = append(cfg.guards, guard)
			}
		}
	}
}

func nameOf(v interface{ Name() string }) string {
	if v == nil {
		return "<nil>"
	}
	return v.Name()
}
