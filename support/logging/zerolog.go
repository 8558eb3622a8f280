// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Zerolog returns an L that emits to zl.
func Zerolog(zl zerolog.Logger) L { return zerologL{zl} }

// NewConsole returns a zerolog-backed L that writes human-readable logs to w
// at the named level ("debug", "info", "warn", "error").
func NewConsole(w io.Writer, level string) (L, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return Zerolog(zerolog.New(out).Level(lvl).With().Timestamp().Logger()), nil
}

type zerologL struct {
	zl zerolog.Logger
}

func (l zerologL) Error(args ...interface{}) { l.zl.Error().Msg(fmt.Sprint(args...)) }
func (l zerologL) Warn(args ...interface{})  { l.zl.Warn().Msg(fmt.Sprint(args...)) }
func (l zerologL) Info(args ...interface{})  { l.zl.Info().Msg(fmt.Sprint(args...)) }
func (l zerologL) Debug(args ...interface{}) { l.zl.Debug().Msg(fmt.Sprint(args...)) }

func (l zerologL) Errorf(f string, args ...interface{}) { l.zl.Error().Msgf(f, args...) }
func (l zerologL) Warnf(f string, args ...interface{})  { l.zl.Warn().Msgf(f, args...) }
func (l zerologL) Infof(f string, args ...interface{})  { l.zl.Info().Msgf(f, args...) }
func (l zerologL) Debugf(f string, args ...interface{}) { l.zl.Debug().Msgf(f, args...) }
