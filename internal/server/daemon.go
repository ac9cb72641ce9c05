// Package server implements the IPC socket: a local Unix-domain
// stream listener that accepts newline-delimited "open this absolute
// path" messages and forwards them to an already-running primary
// LogFile session.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Handler is invoked once per newline-delimited message received, with
// the trimmed absolute path it names.
type Handler func(path string)

// Daemon is a Unix-domain-socket listener. A second process writing a
// path to the socket is observed exactly once; a write split across multiple socket
// writes is reassembled by bufio.Scanner before Handler sees it.
type Daemon struct {
	socketPath string
	handler    Handler
	log        zerolog.Logger

	maxConns int64
	sem      *semaphore.Weighted

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New returns a Daemon bound to socketPath. maxConns <= 0 defaults to
// 32 concurrent connections.
func New(socketPath string, maxConns int64, handler Handler, log zerolog.Logger) *Daemon {
	if maxConns <= 0 {
		maxConns = 32
	}
	return &Daemon{
		socketPath: socketPath,
		handler:    handler,
		log:        log.With().Str("component", "server.Daemon").Logger(),
		maxConns:   maxConns,
		sem:        semaphore.NewWeighted(maxConns),
	}
}

// TryConnect reports whether an existing primary is already listening
// on socketPath, by attempting to dial it. Callers use this before
// New/ListenAndServe to decide whether to become the primary or to
// forward their path and exit.
func TryConnect(socketPath string) (net.Conn, bool) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, false
	}
	return conn, true
}

// SendPath dials socketPath and writes a single newline-terminated
// path message. Used by a second process invocation
// to hand its path to the running primary.
func SendPath(socketPath, path string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("server: dialing %s: %w", socketPath, err)
	}
	defer conn.Close()
	if _, err := fmt.Fprintf(conn, "%s\n", path); err != nil {
		return fmt.Errorf("server: sending path: %w", err)
	}
	return nil
}

// ListenAndServe removes any stale socket file, binds socketPath, and
// accepts connections until ctx is cancelled or Close is called. It
// returns once the accept loop has exited and all in-flight
// connections have been handled.
func (d *Daemon) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(d.socketPath) // stale socket from a crashed prior run

	ln, err := net.Listen("unix", d.socketPath)
	if err != nil {
		return fmt.Errorf("server: listening on %s: %w", d.socketPath, err)
	}
	d.mu.Lock()
	d.listener = ln
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				d.wg.Wait()
				return nil
			}
			d.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		if err := d.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			d.wg.Wait()
			return nil
		}
		d.wg.Add(1)
		go d.handleConn(conn)
	}
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer d.wg.Done()
	defer d.sem.Release(1)
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 1<<20)
	for scanner.Scan() {
		path := scanner.Text()
		if path == "" {
			continue
		}
		d.handler(path)
	}
	if err := scanner.Err(); err != nil {
		d.log.Debug().Err(err).Msg("connection read error")
	}
}

// Close stops accepting new connections and removes the socket file.
// Safe to call more than once.
func (d *Daemon) Close() error {
	d.mu.Lock()
	ln := d.listener
	d.listener = nil
	d.mu.Unlock()
	if ln == nil {
		return nil
	}
	err := ln.Close()
	_ = os.Remove(d.socketPath)
	return err
}
