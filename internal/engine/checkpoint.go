package engine

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/shellform-io/shellform/internal/logging"
)

// checkpointSentinel terminates the listener. The engine writes it after the
// action finished; everything queued before it is still delivered, so no
// marker written by the script is lost.
const checkpointSentinel = "\x00"

// checkpointListener consumes progress markers a running up action writes,
// line by line, to the checkpoints FIFO in its working directory. Each
// marker is persisted as it arrives, so an interrupted action leaves its
// newest surviving marker behind for the next attempt to resume from.
type checkpointListener struct {
	path string
	save func(line string)
	f    *os.File
	done chan struct{}
}

// startCheckpointListener creates the FIFO inside dir and starts consuming
// it. save runs on the listener goroutine; between start and stop the engine
// must not touch the state document, keeping it single-writer.
func startCheckpointListener(dir string, save func(string)) (*checkpointListener, error) {
	path := filepath.Join(dir, fifoName)
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint fifo: %w", err)
	}

	// O_RDWR keeps a write end open on our side, so scripts opening and
	// closing the FIFO per marker never EOF the reader.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint fifo: %w", err)
	}

	l := &checkpointListener{
		path: path,
		save: save,
		f:    f,
		done: make(chan struct{}),
	}
	go l.consume()
	return l, nil
}

func (l *checkpointListener) consume() {
	defer close(l.done)
	defer l.f.Close()

	scanner := bufio.NewScanner(l.f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, checkpointSentinel) {
			return
		}
		if line == "" {
			continue
		}
		l.save(line)
	}
}

// stop writes the termination sentinel and waits until the listener has
// drained everything written before it. Must run after the action finishes,
// successful or not, before its outcome is considered final.
func (l *checkpointListener) stop() {
	w, err := os.OpenFile(l.path, os.O_WRONLY, 0)
	if err != nil {
		logging.Warn("failed to signal checkpoint listener, closing fifo", "error", err)
		l.f.Close()
	} else {
		fmt.Fprintln(w, checkpointSentinel)
		w.Close()
	}
	<-l.done
}
