package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

const maxStdioLineBytes = 8 << 20

// ServeStdio reads newline-delimited JSON-RPC messages from in and writes one
// response line per request to out. It returns when in reaches EOF or ctx is
// cancelled.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStdioLineBytes)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			msg := make([]byte, len(line))
			copy(msg, line)
			select {
			case lines <- msg:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	s.logger.Info().Msg("MCP stdio transport ready")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil && !errors.Is(err, io.EOF) {
						return fmt.Errorf("read stdin: %w", err)
					}
				default:
				}
				return nil
			}
			response := s.HandleMessage(ctx, msg)
			if response == nil {
				continue
			}
			_, err := out.Write(append(response, '\n'))
			if err != nil {
				return fmt.Errorf("write stdout: %w", err)
			}
		}
	}
}
