// Package line implements the duplex line transport: newline-delimited
// JSON requests read from an input stream, newline-delimited JSON
// responses written to an output stream. It is stateless by construction
// — each line is one self-contained tool invocation per §4.8.
package line

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/scholarmcp/server/internal/dispatcher"
)

const maxLineBytes = 16 << 20

// request is the line transport's per-line envelope: an id the caller
// expects echoed back, a tool name, and its arguments.
type request struct {
	ID     any             `json:"id"`
	Tool   string          `json:"tool"`
	Params json.RawMessage `json:"params"`
}

type response struct {
	ID     any                  `json:"id"`
	Result *dispatcher.ToolResult `json:"result,omitempty"`
	Error  *dispatcher.ToolError  `json:"error,omitempty"`
}

// Server reads one JSON request per line from in and writes one JSON
// response per line to out, serializing writes since the dispatcher may
// run tool invocations concurrently across lines.
type Server struct {
	dispatcher *dispatcher.Dispatcher
	log        zerolog.Logger
	writeMu    sync.Mutex
}

// New builds a line transport Server.
func New(d *dispatcher.Dispatcher, log zerolog.Logger) *Server {
	return &Server{dispatcher: d, log: log.With().Str("component", "line-transport").Logger()}
}

// Serve reads requests from in until EOF or ctx cancellation, dispatching
// each one as it arrives and writing its response to out. Each line's
// tool invocation runs in its own goroutine so a slow invocation never
// blocks reading of subsequent lines; responses may therefore arrive
// out of the order their requests were read.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var wg sync.WaitGroup
	defer wg.Wait()

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := append([]byte(nil), scanner.Bytes()...)
		if len(line) == 0 {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleLine(ctx, line, out)
		}()
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Server) handleLine(ctx context.Context, line []byte, out io.Writer) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		s.write(out, response{Error: &dispatcher.ToolError{Kind: dispatcher.ErrorKindValidation, Message: "invalid JSON"}})
		return
	}

	result, toolErr := s.dispatcher.Dispatch(ctx, req.Tool, req.Params)
	s.write(out, response{ID: req.ID, Result: result, Error: toolErr})
}

func (s *Server) write(out io.Writer, resp response) {
	encoded, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode line transport response")
		return
	}
	encoded = append(encoded, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := out.Write(encoded); err != nil {
		s.log.Error().Err(err).Msg("failed to write line transport response")
	}
}
