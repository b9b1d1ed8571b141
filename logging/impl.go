package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip is the stack depth from getCaller up to the code that called a Logger method.
const callerSkip = 3

// impl fans entries out to its appenders. Entry times are UTC.
type impl struct {
	name      string
	level     AtomicLevel
	appenders []Appender
	// registry, when set, registers subloggers as they are created.
	registry *Registry
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Name() string {
	return imp.name
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	sub := &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		appenders: imp.appenders,
		registry:  imp.registry,
	}
	if imp.registry != nil {
		return imp.registry.getOrRegister(name, sub)
	}
	return sub
}

func (imp *impl) Sync() error {
	var errs error
	for _, appender := range imp.appenders {
		errs = multierr.Append(errs, appender.Sync())
	}
	return errs
}

// emit writes one entry to every appender when level is enabled. It must be called directly
// from a Logger method so the recorded caller is right.
func (imp *impl) emit(level Level, msg string, fields []zapcore.Field) {
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now().UTC(),
		LoggerName: imp.name,
		Message:    msg,
		Caller:     getCaller(),
	}
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

func (imp *impl) enabled(level Level) bool {
	return level >= imp.level.Get()
}

// toFields pairs up keysAndValues. A trailing key with no value gets an error value rather
// than being dropped.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(DEBUG) {
		imp.emit(DEBUG, msg, toFields(keysAndValues))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.enabled(INFO) {
		imp.emit(INFO, msg, toFields(keysAndValues))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(WARN) {
		imp.emit(WARN, msg, toFields(keysAndValues))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, fmt.Sprint(args...), nil)
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, fmt.Sprintf(template, args...), nil)
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.enabled(ERROR) {
		imp.emit(ERROR, msg, toFields(keysAndValues))
	}
}

func getCaller() zapcore.EntryCaller {
	var caller zapcore.EntryCaller
	var ok bool
	caller.PC, caller.File, caller.Line, ok = runtime.Caller(callerSkip)
	if !ok {
		return caller
	}
	caller.Defined = true
	if fn := runtime.FuncForPC(caller.PC); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
