// Package stdio implements the embedded-app send/on channel pair over
// line-delimited JSON, for hosts that spawn the bridge as a child process.
//
// Every line is one envelope:
//
//	{"channel":"getRosterResponse","payload":{...}}
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/hostbridge-go/pkg/logging"
)

// ErrStopped is returned by Send once the channel has been stopped.
var ErrStopped = errors.New("stdio channel: connection closed")

const maxLineSize = 1 << 20

// Envelope is one line on the wire
type Envelope struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Channel implements host.EmbeddedAPI.
type Channel struct {
	reader io.Reader
	logger logging.Logger

	writeMu sync.Mutex
	writer  *bufio.Writer

	mu        sync.RWMutex
	listeners map[string]map[uint64]func(interface{})
	nextID    uint64

	done     chan struct{}
	stopOnce sync.Once
}

// NewChannel creates a channel over r and w; nil values default to stdin and stdout.
func NewChannel(r io.Reader, w io.Writer, logger logging.Logger) *Channel {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Channel{
		reader:    r,
		writer:    bufio.NewWriter(w),
		logger:    logger.WithFields(logging.String("module", "stdio")),
		listeners: make(map[string]map[uint64]func(interface{})),
		done:      make(chan struct{}),
	}
}

// Send writes payload on channel name.
func (c *Channel) Send(channel string, payload interface{}) error {
	if c.stopped() {
		return ErrStopped
	}

	env := Envelope{Channel: channel}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", channel, err)
		}
		env.Payload = raw
	}
	line, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("stdio write: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return fmt.Errorf("stdio flush: %w", err)
	}
	return nil
}

// On registers listener for messages arriving on channel.
func (c *Channel) On(channel string, listener func(payload interface{})) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.listeners[channel] == nil {
		c.listeners[channel] = make(map[uint64]func(interface{}))
	}
	c.listeners[channel][id] = listener

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners[channel], id)
		if len(c.listeners[channel]) == 0 {
			delete(c.listeners, channel)
		}
	}
}

// Start reads envelopes until ctx is canceled, Stop is called or the reader
// reaches EOF. It blocks.
func (c *Channel) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scanner := bufio.NewScanner(c.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)

		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-c.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			data := make([]byte, len(line))
			copy(data, line)
			c.dispatch(data)
		}

		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			// closeReader unblocks Scan with an error on shutdown
			if gctx.Err() != nil || c.stopped() {
				return nil
			}
			return fmt.Errorf("stdio read: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			c.closeReader()
			return gctx.Err()
		case <-c.done:
			c.closeReader()
			return nil
		case <-scannerDone:
			return nil
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Channel) stopped() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) closeReader() {
	if closer, ok := c.reader.(io.Closer); ok {
		_ = closer.Close()
	}
}

func (c *Channel) dispatch(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in message listener",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warn("bad envelope", logging.ErrorField(err))
		return
	}
	if env.Channel == "" {
		c.logger.Warn("envelope without channel")
		return
	}

	var payload interface{}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			c.logger.Warn("bad payload", logging.String("channel", env.Channel), logging.ErrorField(err))
			return
		}
	}

	c.mu.RLock()
	listeners := make([]func(interface{}), 0, len(c.listeners[env.Channel]))
	for _, l := range c.listeners[env.Channel] {
		listeners = append(listeners, l)
	}
	c.mu.RUnlock()

	for _, l := range listeners {
		l(payload)
	}
}

// Stop ends the read loop and flushes pending output.
func (c *Channel) Stop() error {
	var flushErr error
	c.stopOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		flushErr = c.writer.Flush()
		c.writeMu.Unlock()
	})
	return flushErr
}
