package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes the same lines as a ConsoleAppender to a file that is rotated once it
// grows past MaxSizeMB.
type FileAppender struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

// Default rotation settings for FileAppender.
const (
	DefaultLogFileMaxSizeMB  = 64
	DefaultLogFileMaxBackups = 3
)

// NewFileAppender creates an appender writing to filename. Close it when done.
func NewFileAppender(filename string) *FileAppender {
	return &FileAppender{out: &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    DefaultLogFileMaxSizeMB,
		MaxBackups: DefaultLogFileMaxBackups,
		Compress:   true,
	}}
}

// Write appends the entry to the file.
func (fa *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	_, err := fmt.Fprintln(fa.out, formatEntry(entry, fields))
	return err
}

// Sync is a no-op.
func (fa *FileAppender) Sync() error {
	return nil
}

// Rotate closes the current file and starts a new one.
func (fa *FileAppender) Rotate() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.out.Rotate()
}

// Close closes the file.
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.out.Close()
}
