package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reply wire format, one reply per command, newline-delimited:
//
//	OK                     acknowledgement
//	PONG                   ping response
//	(nil)                  missing key/field/element
//	<raw string>           scalar result or special token (no-expiry, ...)
//	<decimal integer>      booleans as 0/1, lengths, counts, TTL seconds
//	*<n> + n item lines    block results (ranges, key lists, map dumps)
//	ERR <message>          protocol or type errors
//
// The block header carries the item count so a client can detect
// completion without any further framing metadata.

// ReplyKind identifies a reply variant.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyPong
	ReplyNil
	ReplyInt
	ReplyValue
	ReplyBlock
	ReplyError
)

// Reply is a typed command result, encoded to the wire by a Writer.
type Reply struct {
	Kind  ReplyKind
	Value string
	Int   int64
	Items []string
}

// OK returns an acknowledgement reply.
func OK() Reply { return Reply{Kind: ReplyOK} }

// Pong returns the PING acknowledgement.
func Pong() Reply { return Reply{Kind: ReplyPong} }

// Nil returns the distinguished missing-value reply.
func Nil() Reply { return Reply{Kind: ReplyNil} }

// Int returns an integer reply. Booleans are encoded as 0/1.
func Int(n int64) Reply { return Reply{Kind: ReplyInt, Int: n} }

// Bool returns an integer 0/1 reply.
func Bool(b bool) Reply {
	if b {
		return Int(1)
	}
	return Int(0)
}

// Value returns a raw string reply.
func Value(s string) Reply { return Reply{Kind: ReplyValue, Value: s} }

// Block returns an ordered block reply.
func Block(items []string) Reply { return Reply{Kind: ReplyBlock, Items: items} }

// Errorf returns an error reply with a formatted message.
func Errorf(format string, args ...interface{}) Reply {
	return Reply{Kind: ReplyError, Value: fmt.Sprintf(format, args...)}
}

const nilToken = "(nil)"

// Writer encodes replies onto a buffered writer. Every WriteReply call
// flushes, so a single-command client sees a complete response.
type Writer struct {
	wr *bufio.Writer
}

// NewWriter creates a Writer for the given connection or buffer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{wr: bufio.NewWriter(w)}
}

// WriteReply encodes one reply and flushes it.
func (w *Writer) WriteReply(r Reply) error {
	switch r.Kind {
	case ReplyOK:
		w.writeLine("OK")
	case ReplyPong:
		w.writeLine("PONG")
	case ReplyNil:
		w.writeLine(nilToken)
	case ReplyInt:
		w.writeLine(strconv.FormatInt(r.Int, 10))
	case ReplyValue:
		w.writeLine(r.Value)
	case ReplyBlock:
		w.writeLine("*" + strconv.Itoa(len(r.Items)))
		for _, item := range r.Items {
			w.writeLine(item)
		}
	case ReplyError:
		w.writeLine("ERR " + r.Value)
	default:
		return fmt.Errorf("protocol: unknown reply kind %d", r.Kind)
	}
	return w.wr.Flush()
}

// WriteLine writes a single raw line and flushes. Used for the connection
// greeting, which precedes the command/reply exchange.
func (w *Writer) WriteLine(s string) error {
	w.writeLine(s)
	return w.wr.Flush()
}

func (w *Writer) writeLine(s string) {
	w.wr.WriteString(s)
	w.wr.WriteByte('\n')
}

// Reader decodes replies from the server side of a connection. Callers
// know which command they sent, so they pick ReadLine for single-line
// replies and ReadBlock for block replies.
type Reader struct {
	rd *bufio.Reader
}

// NewReader creates a Reader over a connection.
func NewReader(r io.Reader) *Reader {
	return &Reader{rd: bufio.NewReader(r)}
}

// ReadLine reads one reply line without the trailing newline.
func (r *Reader) ReadLine() (string, error) {
	line, err := r.rd.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// ReadBlock reads a block reply: the *<n> header followed by n item
// lines. If the first line is an error reply it is returned as an error.
func (r *Reader) ReadBlock() ([]string, error) {
	header, err := r.ReadLine()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(header, "ERR ") {
		return nil, fmt.Errorf("%w: %s", ErrProtocol, strings.TrimPrefix(header, "ERR "))
	}
	if !strings.HasPrefix(header, "*") {
		return nil, fmt.Errorf("%w: bad block header %q", ErrProtocol, header)
	}
	n, err := strconv.Atoi(header[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad block header %q", ErrProtocol, header)
	}
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		item, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// IsNil reports whether a reply line is the distinguished nil token.
func IsNil(line string) bool { return line == nilToken }
