package publisher

import (
	"fmt"

	"github.com/dorkodu/pharpub/pkg/logger"
)

// Effect is a zero-argument unit of work run before or after a publish
type Effect interface {
	Run()
}

// EffectFunc adapts a plain function to Effect
type EffectFunc func()

// Run calls f
func (f EffectFunc) Run() { f() }

// asEffect accepts anything invocable and rejects everything else
func asEffect(v any) (Effect, bool) {
	switch e := v.(type) {
	case nil:
		return nil, false
	case EffectFunc:
		if e == nil {
			return nil, false
		}
		return e, true
	case func():
		if e == nil {
			return nil, false
		}
		return EffectFunc(e), true
	case Effect:
		return e, true
	default:
		return nil, false
	}
}

func runEffect(e Effect) {
	if e != nil {
		e.Run()
	}
}

// Chain runs effects in order, skipping nil entries
func Chain(effects ...Effect) Effect {
	return EffectFunc(func() {
		for _, e := range effects {
			runEffect(e)
		}
	})
}

// announce is the default after effect of the extended publisher
type announce struct {
	console *logger.Console
	message string
}

func (a announce) Run() {
	a.console.Log(a.message)
}

// Announce returns the effect that reports a successful publish on the console
func Announce(console *logger.Console, name, publishRoot string) Effect {
	return announce{
		console: console,
		message: fmt.Sprintf("%s has been successfully published to : %s", name, publishRoot),
	}
}
