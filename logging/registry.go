package logging

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. A pattern is a
// dotted logger name where any section may be "*", e.g. "armsim.*" or "armsim.loop".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

const (
	// e.g. "foo".
	validLoggerSectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "foo" or "*".
	validLoggerSectionNameWithWildcard = `(` + validLoggerSectionName + `|\*)`
	// e.g. "foo.*.foo".
	validLoggerSectionsWithWildcard = validLoggerSectionNameWithWildcard + `(\.` + validLoggerSectionNameWithWildcard + `)*`
	// Restricts above regex to be the entire pattern.
	validLoggerName = `^` + validLoggerSectionsWithWildcard + `$`
)

var loggerPatternRegexp = regexp.MustCompile(validLoggerName)

// ValidatePattern reports whether pattern is a well formed logger pattern.
func ValidatePattern(pattern string) bool {
	return loggerPatternRegexp.MatchString(pattern)
}

// Validate checks the pattern and level.
func (lpc LoggerPatternConfig) Validate() error {
	if !ValidatePattern(lpc.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
	}
	if _, err := LevelFromString(lpc.Level); err != nil {
		return err
	}
	return nil
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}

type compiledPattern struct {
	re    *regexp.Regexp
	level Level
}

// Registry tracks loggers by name so their levels can be changed together while running.
// Subloggers of a registered logger are registered as they are created. A logger takes the level
// of the last pattern matching its name, or the registry's default level.
type Registry struct {
	mu           sync.RWMutex
	loggers      map[string]Logger
	defaultLevel Level
	patterns     []compiledPattern
}

// NewRegistry returns an empty registry whose loggers default to defaultLevel.
func NewRegistry(defaultLevel Level) *Registry {
	return &Registry{
		loggers:      make(map[string]Logger),
		defaultLevel: defaultLevel,
	}
}

// Register adds logger under its name, sets its level from the current config, and returns the
// registered logger. If a logger with the same name is already registered it is returned instead.
func (lr *Registry) Register(logger Logger) Logger {
	if imp, ok := logger.(*impl); ok {
		imp.registry = lr
	}
	return lr.getOrRegister(logger.Name(), logger)
}

// Deregister removes the named logger, reporting whether it was registered.
func (lr *Registry) Deregister(name string) bool {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	_, ok := lr.loggers[name]
	if ok {
		delete(lr.loggers, name)
	}
	return ok
}

// LoggerNamed returns the registered logger with the given name.
func (lr *Registry) LoggerNamed(name string) (logger Logger, ok bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok = lr.loggers[name]
	return
}

// RegisteredNames returns the name of every registered logger, sorted.
func (lr *Registry) RegisteredNames() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	return slices.Sorted(maps.Keys(lr.loggers))
}

// Update replaces the default level and patterns and re-levels every registered logger. Invalid
// patterns are reported to errorLogger and skipped.
func (lr *Registry) Update(defaultLevel Level, logConfig []LoggerPatternConfig, errorLogger Logger) error {
	patterns := make([]compiledPattern, 0, len(logConfig))
	for _, lpc := range logConfig {
		if !ValidatePattern(lpc.Pattern) {
			errorLogger.Warnw("failed to validate a pattern", "pattern", lpc.Pattern)
			continue
		}
		re, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return err
		}
		level, err := LevelFromString(lpc.Level)
		if err != nil {
			return err
		}
		patterns = append(patterns, compiledPattern{re: re, level: level})
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.defaultLevel = defaultLevel
	lr.patterns = patterns
	for name, logger := range lr.loggers {
		logger.SetLevel(lr.levelFor(name))
	}
	return nil
}

// levelFor must be called with mu held.
func (lr *Registry) levelFor(name string) Level {
	level := lr.defaultLevel
	for _, p := range lr.patterns {
		if p.re.MatchString(name) {
			level = p.level
		}
	}
	return level
}

// getOrRegister either returns an existing logger for name or registers logger under it and
// levels it from the current patterns. Concurrent callers registering the same name all get the
// winner's logger.
func (lr *Registry) getOrRegister(name string, logger Logger) Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if existingLogger, ok := lr.loggers[name]; ok {
		return existingLogger
	}
	lr.loggers[name] = logger
	logger.SetLevel(lr.levelFor(name))
	return logger
}
