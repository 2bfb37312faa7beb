package op

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/subroutine/config"
	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/typecast"
	"github.com/artpar/subroutine/core/validation"
	"github.com/artpar/subroutine/ports"
)

// Validator decides whether an operation is valid. It clears the target's
// errors before recording new ones.
type Validator interface {
	Validate(ctx context.Context, t validation.Target, rules []validation.Rule) (bool, error)
}

// Env holds the collaborators shared by operations. Build it once at
// startup with Prepare. Operations never modify it.
type Env struct {
	// Casters casts field values. Defaults to a registry honouring
	// Config.PreserveTimePrecision.
	Casters *typecast.Registry

	// Finder resolves associations.
	Finder entity.Finder

	// Types declares entity types for compatibility checks and key typing.
	Types *entity.Types

	// Validator runs schema rules. Defaults to validation.New().
	Validator Validator

	// Observer is notified after each submission phase.
	Observer ports.Observer

	// Clock times submission phases. Defaults to the wall clock.
	Clock ports.Clock

	// Logger receives debug traces. Defaults to a disabled logger.
	Logger *zerolog.Logger

	Config config.Engine
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (e Env) withDefaults() Env {
	if e.Casters == nil {
		if e.Config.PreserveTimePrecision {
			e.Casters = typecast.New(typecast.WithPreservedPrecision(true))
		} else {
			e.Casters = typecast.Default()
		}
	}
	if e.Validator == nil {
		e.Validator = validation.New()
	}
	if e.Clock == nil {
		e.Clock = wallClock{}
	}
	if e.Logger == nil {
		nop := zerolog.Nop()
		e.Logger = &nop
	}
	return e
}

// Prepare fills unset collaborators with their defaults.
func (e Env) Prepare() Env {
	return e.withDefaults()
}
