package metrics

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Logger interface {
	Log(info *QueryInfo)
}

// StdoutLogger writes one JSON record per line to Out.
type StdoutLogger struct {
	mu  sync.Mutex
	Out io.Writer
	Err zerolog.Logger
}

func NewStdoutLogger(errLog zerolog.Logger) *StdoutLogger {
	return &StdoutLogger{Out: os.Stdout, Err: errLog}
}

func (l *StdoutLogger) Log(info *QueryInfo) {
	infoStr, err := info.ToJSON()
	if err != nil {
		l.Err.Error().Err(err).Msg("StdoutLogger: encode error")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.Out, infoStr)
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends query records to log<N> files under LogDir, rotating
// each writer's file once it reaches MaxLogFileSize and keeping at most
// MaxLogFiles rotated files per writer.
type FileLogger struct {
	MetricsQueue   chan *QueryInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Err            zerolog.Logger

	wg sync.WaitGroup
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, log zerolog.Logger) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *QueryInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Err:            log,
	}

	for i := 0; i < defaultLogWriters; i++ {
		logger.wg.Add(1)
		go logger.startLogWriter(i)
	}

	return logger
}

// Log never blocks the query path; records are dropped when the queue is full.
func (l *FileLogger) Log(info *QueryInfo) {
	select {
	case l.MetricsQueue <- info:
	default:
		l.Err.Warn().Msg("FileLogger: queue full, dropping query record")
	}
}

// Close flushes the queue and stops the writers.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	l.wg.Wait()
}

func (l *FileLogger) startLogWriter(idx int) {
	defer l.wg.Done()

	f, err := l.openLogFile(idx)
	if err != nil {
		l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: log open error")
	}
	defer func() {
		if f != nil {
			f.Close()
		}
	}()

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: encode error")
			continue
		}

		f, err = l.tryRotateLogFile(f, idx)
		if err != nil || f == nil {
			continue
		}

		if _, err := f.WriteString(infoStr); err != nil {
			l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: write error")
			continue
		}
	}
}

func (l *FileLogger) logFileName(idx int) string {
	return fmt.Sprintf("log%d", idx)
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	logFilePath := filepath.Join(l.LogDir, l.logFileName(idx))
	return os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File, idx int) (*os.File, error) {
	if currFile == nil {
		return l.openLogFile(idx)
	}

	info, err := currFile.Stat()
	if err != nil {
		l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: log rotation error")
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	rotatedLogFilePath, err := l.nextRotatedFile(idx)
	if err != nil {
		l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: log rotation error")
		return currFile, nil
	}

	currFile.Close()
	currLogFilePath := filepath.Join(l.LogDir, l.logFileName(idx))
	if err := os.Rename(currLogFilePath, rotatedLogFilePath); err != nil {
		l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: log rotation error")
	} else {
		l.Err.Debug().Int("writer", idx).Str("file", rotatedLogFilePath).Msg("FileLogger: log file rotated")
	}

	f, err := l.openLogFile(idx)
	if err != nil {
		l.Err.Error().Err(err).Int("writer", idx).Msg("FileLogger: log reopen error")
	}
	return f, err
}

// nextRotatedFile returns the first free log<idx>.<n> slot, or frees the
// oldest one when all MaxLogFiles slots are taken.
func (l *FileLogger) nextRotatedFile(idx int) (string, error) {
	for i := 0; i < l.MaxLogFiles; i++ {
		filePath := filepath.Join(l.LogDir, fmt.Sprintf("%s.%d", l.logFileName(idx), i))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return filePath, nil
		}
	}

	entries, err := os.ReadDir(l.LogDir)
	if err != nil {
		return "", err
	}

	var oldestPath string
	oldestTime := time.Now()
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) != l.logFileName(idx) || name == l.logFileName(idx) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(oldestTime) {
			oldestPath = filepath.Join(l.LogDir, name)
			oldestTime = info.ModTime()
		}
	}

	if len(oldestPath) == 0 {
		oldestPath = filepath.Join(l.LogDir, fmt.Sprintf("%s.%d", l.logFileName(idx), 0))
	}

	l.Err.Debug().Int("writer", idx).Str("file", oldestPath).Msg("FileLogger: maximum number of log files reached, overwriting")
	if err := os.Remove(oldestPath); err != nil && !os.IsNotExist(err) {
		return "", err
	}
	return oldestPath, nil
}

// NewQueryLogger picks the query log sink for logDir: nil for "", stdout for
// "-", rotating files otherwise. Rotation limits come from
// BATHY_MAX_LOG_FILE_SIZE and BATHY_MAX_LOG_FILES.
func NewQueryLogger(logDir string, log zerolog.Logger) Logger {
	switch logDir {
	case "":
		return nil
	case "-":
		return NewStdoutLogger(log)
	}

	maxLogFileSize := int64(0)
	if val, ok := os.LookupEnv("BATHY_MAX_LOG_FILE_SIZE"); ok {
		valInt, e := strconv.ParseInt(val, 10, 64)
		if e == nil {
			maxLogFileSize = valInt
		} else {
			log.Error().Err(e).Msg("invalid BATHY_MAX_LOG_FILE_SIZE")
		}
	}

	maxLogFiles := -1
	if val, ok := os.LookupEnv("BATHY_MAX_LOG_FILES"); ok {
		valInt, e := strconv.ParseInt(val, 10, 32)
		if e == nil {
			maxLogFiles = int(valInt)
		} else {
			log.Error().Err(e).Msg("invalid BATHY_MAX_LOG_FILES")
		}
	}

	return NewFileLogger(logDir, maxLogFileSize, maxLogFiles, log)
}
