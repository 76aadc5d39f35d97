package archive

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/fairtable/internal/hand"
	"github.com/lox/fairtable/internal/phh"
)

const (
	defaultFilename  = "session.phhs"
	maxFlushFailures = 3
)

// PHHConfig configures a PHHWriter.
type PHHConfig struct {
	// BaseDir holds one table-<id> directory per table.
	BaseDir       string
	FlushInterval time.Duration
	// FlushHands triggers an early flush once a table buffers this many.
	FlushHands int
	Clock      quartz.Clock
}

// PHHWriter archives finished hands as PHH session files, one per table.
// Hands are buffered and flushed on an interval, when a table's buffer
// fills, and on Close.
type PHHWriter struct {
	cfg    PHHConfig
	logger zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*session
	flushReq chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewPHHWriter creates the writer and starts its flush loop.
func NewPHHWriter(logger zerolog.Logger, cfg PHHConfig) (*PHHWriter, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "hands"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 10 * time.Second
	}
	if cfg.FlushHands <= 0 {
		cfg.FlushHands = 100
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}

	w := &PHHWriter{
		cfg:      cfg,
		logger:   logger.With().Str("component", "phh_archive").Logger(),
		sessions: make(map[string]*session),
		flushReq: make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	ticker := cfg.Clock.NewTicker(cfg.FlushInterval, "archive", "flush")
	w.wg.Add(1)
	go w.run(ticker)
	return w, nil
}

// SaveHand buffers h for its table's session file.
func (w *PHHWriter) SaveHand(_ context.Context, h *hand.History) error {
	s, err := w.session(h.TableID)
	if err != nil {
		return err
	}
	if s.add(phh.FromHistory(h)) >= w.cfg.FlushHands {
		w.requestFlush()
	}
	return nil
}

// SaveStackDeltas is a no-op; PHH records stacks per hand.
func (w *PHHWriter) SaveStackDeltas(context.Context, string, string, []StackDelta) error {
	return nil
}

// ReportIncident is a no-op; voided hands are archived with their reason.
func (w *PHHWriter) ReportIncident(context.Context, Incident) error { return nil }

// Path returns the session file of a table.
func (w *PHHWriter) Path(tableID string) string {
	return filepath.Join(w.cfg.BaseDir, "table-"+tableID, defaultFilename)
}

// Close stops the flush loop and writes every buffered hand.
func (w *PHHWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	w.wg.Wait()
	return w.Flush()
}

// Flush writes every table's buffered hands now.
func (w *PHHWriter) Flush() error {
	w.mu.RLock()
	snapshot := make(map[string]*session, len(w.sessions))
	for k, v := range w.sessions {
		snapshot[k] = v
	}
	w.mu.RUnlock()

	var errs []error
	for tableID, s := range snapshot {
		err := s.flush()
		if err != nil {
			w.logger.Error().Err(err).Str("table_id", tableID).Msg("Hand history flush failed")
			errs = append(errs, fmt.Errorf("table %s: %w", tableID, err))
		}
		if disabled, dropped := s.handleFlushResult(err); disabled {
			w.logger.Error().Str("table_id", tableID).Int("dropped_hands", dropped).
				Msg("Hand history recording disabled after repeated failures")
		}
	}
	return errors.Join(errs...)
}

func (w *PHHWriter) session(tableID string) (*session, error) {
	w.mu.RLock()
	s, ok := w.sessions[tableID]
	w.mu.RUnlock()
	if ok {
		return s, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.sessions[tableID]; ok {
		return s, nil
	}
	s, err := newSession(w.Path(tableID))
	if err != nil {
		return nil, err
	}
	w.sessions[tableID] = s
	return s, nil
}

func (w *PHHWriter) run(ticker *quartz.Ticker) {
	defer w.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = w.Flush()
		case <-w.flushReq:
			_ = w.Flush()
		case <-w.stop:
			return
		}
	}
}

func (w *PHHWriter) requestFlush() {
	select {
	case w.flushReq <- struct{}{}:
	default:
	}
}

// session buffers one table's hands and appends them to its file.
type session struct {
	path string

	mu                  sync.Mutex
	flushMu             sync.Mutex
	buffer              []*phh.HandHistory
	sectionCounter      int
	consecutiveFailures int
	disabled            bool
}

func newSession(path string) (*session, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}
	counter, err := readLastSectionCounter(path)
	if err != nil {
		return nil, fmt.Errorf("archive: read sections: %w", err)
	}
	return &session{path: path, sectionCounter: counter}, nil
}

// add buffers a hand and returns the buffer length.
func (s *session) add(h *phh.HandHistory) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled {
		return 0
	}
	s.buffer = append(s.buffer, h)
	return len(s.buffer)
}

// flush rewrites the session file with the buffered hands appended.
func (s *session) flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if s.disabled || len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	hands := append([]*phh.HandHistory(nil), s.buffer...)
	section := s.sectionCounter
	s.mu.Unlock()

	existing, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	var buf bytes.Buffer
	buf.Write(existing)
	for _, h := range hands {
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		section++
		if err := phh.EncodeSection(&buf, section, h); err != nil {
			return err
		}
	}
	if err := writeFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return err
	}

	s.mu.Lock()
	s.buffer = s.buffer[len(hands):]
	s.sectionCounter = section
	s.mu.Unlock()
	return nil
}

// handleFlushResult disables the session after repeated failures, dropping
// its buffer.
func (s *session) handleFlushResult(err error) (disabled bool, dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.consecutiveFailures = 0
		return false, 0
	}
	s.consecutiveFailures++
	if s.consecutiveFailures < maxFlushFailures {
		return false, 0
	}
	dropped = len(s.buffer)
	s.buffer = nil
	s.disabled = true
	return true, dropped
}

func readLastSectionCounter(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	last := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) >= 3 && line[0] == '[' && line[len(line)-1] == ']' {
			if n, err := strconv.Atoi(line[1 : len(line)-1]); err == nil && n > last {
				last = n
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return last, nil
}
