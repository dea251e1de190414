package assistant

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/skincare-assistant/internal/config"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ConversationLogEvent is one NDJSON line of a conversation log.
type ConversationLogEvent struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// ConversationLogger records conversation events.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

// fileConversationLogger appends events to one file per visitor and session,
// and optionally to a global file. A single goroutine owns the files.
type fileConversationLogger struct {
	dir        string
	globalPath string
	files      *lru.Cache[string, *os.File]
	queue      chan ConversationLogEvent
	logger     *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

var (
	ansiPattern      = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	spacePattern     = regexp.MustCompile(`[ \t]+`)
	unsafePathChars  = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	defaultQueueSize = 1000
	defaultMaxOpen   = 64
)

// NewConversationLogger returns a file-backed logger, or a no-op logger when
// conversation logging is disabled.
func NewConversationLogger(cfg config.ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	maxOpen := cfg.MaxOpenFiles
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpen
	}
	l := &fileConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, queueSize),
		logger: logger,
	}
	// Least recently written files are closed once more than maxOpen are open.
	files, err := lru.NewWithEvict(maxOpen, func(path string, f *os.File) {
		if err := f.Close(); err != nil {
			logger.Warn("Failed to close conversation log", "path", path, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create conversation log file cache: %w", err)
	}
	l.files = files
	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
		l.globalPath = cfg.GlobalPath
	}

	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues an event without blocking. Events are dropped when the queue is full.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"user_id", event.UserID,
			"session_id", event.SessionID,
			"event_type", event.EventType)
	}
}

// Close drains the queue and closes every file.
func (l *fileConversationLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	l.wg.Wait()
	return nil
}

func (l *fileConversationLogger) run() {
	defer l.wg.Done()

	defer l.files.Purge()

	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("Failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		paths := []string{l.sessionPath(event)}
		if l.globalPath != "" {
			paths = append(paths, l.globalPath)
		}
		for _, path := range paths {
			f, err := openCached(l.files, path)
			if err != nil {
				l.logger.Warn("Failed to open conversation log", "path", path, "error", err)
				continue
			}
			if _, err := f.Write(line); err != nil {
				l.logger.Warn("Failed to write conversation log", "path", path, "error", err)
			}
		}
	}
}

func (l *fileConversationLogger) sessionPath(event ConversationLogEvent) string {
	return filepath.Join(l.dir, safePathPart(event.UserID, "anonymous"), safePathPart(event.SessionID, "default")+".ndjson")
}

func openCached(files *lru.Cache[string, *os.File], path string) (*os.File, error) {
	if f, ok := files.Get(path); ok {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path is built from sanitized parts
	if err != nil {
		return nil, err
	}
	files.Add(path, f)
	return f, nil
}

func safePathPart(s, fallback string) string {
	s = unsafePathChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}

// cleanForReadability strips terminal escapes and bold markers.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
