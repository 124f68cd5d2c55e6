package render

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	ferrors "fleetrun/internal/errors"
)

// sinkEncodings is the fixed preference order for output text. The first
// encoding that accepts the whole buffer wins.
var sinkEncodings = []encoding.Encoding{
	unicode.UTF8,
	charmap.ISO8859_1,
	unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
}

// Sink is the single output destination of a render: either a stream or an
// append-mode file. Output is encoded and written in one shot, never
// partially, so a failed encode leaves the destination untouched.
type Sink struct {
	writer io.Writer
	path   string

	// Prompt asks the user a question when every encoding fails; it returns
	// the reply. Tests replace it; the default reads from stdin.
	Prompt func(question string) (string, error)
}

// NewSink returns a sink writing to a stream.
func NewSink(w io.Writer) *Sink {
	return &Sink{writer: w, Prompt: stdinPrompt}
}

// NewFileSink returns a sink appending to the file at path.
func NewFileSink(path string) *Sink {
	return &Sink{path: path, Prompt: stdinPrompt}
}

// Write encodes text with the first accepting encoding and writes it out in
// a single operation. If no encoding accepts the text the user is offered an
// alternate file destination; declining aborts the whole write.
func (s *Sink) Write(text string) error {
	encoded, err := encodeText(text)
	if err != nil {
		return s.retryElsewhere(text)
	}

	if s.path != "" {
		file, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open output file %s: %w", s.path, err)
		}
		defer file.Close()

		if _, err := file.Write(encoded); err != nil {
			return fmt.Errorf("failed to write output file %s: %w", s.path, err)
		}
		return nil
	}

	if _, err := s.writer.Write(encoded); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// encodeText tries each supported encoding in preference order.
func encodeText(text string) ([]byte, error) {
	var lastErr error
	for _, enc := range sinkEncodings {
		encoded, err := enc.NewEncoder().Bytes([]byte(text))
		if err == nil {
			return encoded, nil
		}
		lastErr = err
	}
	return nil, ferrors.New(ferrors.KindEncodingFailed, lastErr)
}

// retryElsewhere asks for an alternate file path after an encoding failure.
func (s *Sink) retryElsewhere(text string) error {
	reply, err := s.Prompt("Errored writing the results. Would you like to write them to a file somewhere instead? ")
	if err != nil || !strings.HasPrefix(strings.ToLower(reply), "y") {
		return ferrors.Newf(ferrors.KindEncodingFailed, "could not write results: cancelled on user request")
	}

	path, err := s.Prompt("File name: ")
	if err != nil || path == "" {
		return ferrors.Newf(ferrors.KindEncodingFailed, "could not write results: cancelled on user request")
	}

	alternate := &Sink{path: path, Prompt: s.Prompt}
	return alternate.Write(text)
}

func stdinPrompt(question string) (string, error) {
	fmt.Fprint(os.Stderr, question)
	reply, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}
