package minerlog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultPoll is how often a follower checks for new data.
const DefaultPoll = 250 * time.Millisecond

// Follower tails a miner log file. The miner truncates the file on every
// start, so a file that shrank or whose already-read bytes changed is read
// again from the top.
type Follower struct {
	Path    string
	FromEnd bool          // skip existing content
	Poll    time.Duration // zero means DefaultPoll
	Logger  *slog.Logger
}

// Follow streams complete lines (without newline) until ctx is done. A file
// that does not exist yet is waited for. The channel is closed on return.
func (f Follower) Follow(ctx context.Context) <-chan string {
	poll := f.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ch := make(chan string, 100)

	go func() {
		defer close(ch)

		file := f.waitOpen(ctx, poll)
		if file == nil {
			return
		}
		defer file.Close()
		logger.Info("tailing file", "path", f.Path)

		var offset int64
		if f.FromEnd {
			end, err := file.Seek(0, io.SeekEnd)
			if err != nil {
				logger.Warn("seek to end failed, reading from start", "path", f.Path, "err", err)
			} else {
				offset = end
			}
		}
		mark := readMark(file, offset)

		reader := bufio.NewReader(file)
		var partial strings.Builder
		for {
			if ctx.Err() != nil {
				return
			}

			chunk, err := reader.ReadString('\n')
			partial.WriteString(chunk)
			offset += int64(len(chunk))
			mark = appendMark(mark, chunk)
			if err != nil {
				// No complete line yet
				if !wait(ctx, poll) {
					return
				}
				rewritten, cerr := changedSince(file, offset, mark)
				if cerr != nil {
					logger.Warn("cannot check file", "path", f.Path, "err", cerr)
					continue
				}
				if rewritten {
					logger.Info("file truncated, rewinding", "path", f.Path)
					if _, serr := file.Seek(0, io.SeekStart); serr != nil {
						logger.Warn("rewind failed", "path", f.Path, "err", serr)
						continue
					}
					reader.Reset(file)
					partial.Reset()
					offset = 0
					mark = nil
				}
				continue
			}

			line := strings.TrimRight(partial.String(), "\r\n")
			partial.Reset()
			select {
			case ch <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// markLen is how many of the most recently read bytes are kept to recognise
// a file that was truncated and rewritten past the read offset between polls.
const markLen = 64

func appendMark(mark []byte, chunk string) []byte {
	mark = append(mark, chunk...)
	if len(mark) > markLen {
		mark = append([]byte(nil), mark[len(mark)-markLen:]...)
	}
	return mark
}

func readMark(file *os.File, offset int64) []byte {
	n := min(offset, markLen)
	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := file.ReadAt(buf, offset-n); err != nil {
		return nil
	}
	return buf
}

// changedSince reports whether the bytes before offset are no longer the ones
// that were read, either because the file shrank or because it was rewritten.
func changedSince(file *os.File, offset int64, mark []byte) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() < offset {
		return true, nil
	}
	if len(mark) == 0 {
		return false, nil
	}
	buf := make([]byte, len(mark))
	if _, err := file.ReadAt(buf, offset-int64(len(mark))); err != nil {
		if err == io.EOF {
			// Shrank after the Stat
			return true, nil
		}
		return false, err
	}
	return !bytes.Equal(buf, mark), nil
}

func (f Follower) waitOpen(ctx context.Context, poll time.Duration) *os.File {
	for {
		file, err := os.Open(f.Path)
		if err == nil {
			return file
		}
		if !wait(ctx, poll) {
			return nil
		}
	}
}

// wait sleeps for d and reports whether ctx is still live.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
