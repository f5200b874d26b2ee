// Package protocol implements the Medusa line protocol: parsing client
// command lines into typed commands and encoding replies back into wire
// text. One command per line, one framed reply per command.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// ErrProtocol indicates a malformed command line: unknown command, wrong
// argument count, or bad quoting. Always recoverable; the connection stays
// open.
var ErrProtocol = errors.New("protocol: invalid command")

// CmdKind identifies a parsed command.
type CmdKind int

const (
	CmdUnknown CmdKind = iota
	CmdSet
	CmdGet
	CmdDelete
	CmdExists
	CmdTTL
	CmdExpire
	CmdHSet
	CmdHGet
	CmdHGetAll
	CmdHDel
	CmdHExists
	CmdHLen
	CmdLPush
	CmdRPush
	CmdLPop
	CmdRPop
	CmdLLen
	CmdLRange
	CmdList
	CmdKeys
	CmdCount
	CmdClear
	CmdInfo
	CmdPing
	CmdQuit
)

// Command is a parsed client command: the kind, the (uppercased) name it
// was invoked as, and its positional arguments.
type Command struct {
	Kind CmdKind
	Name string
	Args []string
}

// arity describes the accepted argument count for a command.
type arity struct {
	kind     CmdKind
	min, max int
}

var commandTable = map[string]arity{
	"SET":      {CmdSet, 2, 3},
	"GET":      {CmdGet, 1, 1},
	"DELETE":   {CmdDelete, 1, 1},
	"EXISTS":   {CmdExists, 1, 1},
	"TTL":      {CmdTTL, 1, 1},
	"EXPIRE":   {CmdExpire, 2, 2},
	"HSET":     {CmdHSet, 3, 3},
	"HGET":     {CmdHGet, 2, 2},
	"HGETALL":  {CmdHGetAll, 1, 1},
	"HDEL":     {CmdHDel, 2, 2},
	"HEXISTS":  {CmdHExists, 2, 2},
	"HLEN":     {CmdHLen, 1, 1},
	"LPUSH":    {CmdLPush, 2, 2},
	"RPUSH":    {CmdRPush, 2, 2},
	"LPOP":     {CmdLPop, 1, 1},
	"RPOP":     {CmdRPop, 1, 1},
	"LLEN":     {CmdLLen, 1, 1},
	"LRANGE":   {CmdLRange, 3, 3},
	"LIST":     {CmdList, 0, 0},
	"KEYS":     {CmdKeys, 1, 1},
	"COUNT":    {CmdCount, 0, 0},
	"CLEAR":    {CmdClear, 0, 0},
	"FLUSHALL": {CmdClear, 0, 0},
	"INFO":     {CmdInfo, 0, 0},
	"PING":     {CmdPing, 0, 0},
	"QUIT":     {CmdQuit, 0, 0},
	"EXIT":     {CmdQuit, 0, 0},
}

// Parse parses a single command line into a typed Command. The command
// name is case-insensitive. Arguments containing whitespace may be
// enclosed in double quotes.
func Parse(line string) (Command, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrProtocol)
	}

	name := strings.ToUpper(tokens[0])
	spec, ok := commandTable[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown command '%s'", ErrProtocol, tokens[0])
	}

	args := tokens[1:]
	if len(args) < spec.min || len(args) > spec.max {
		return Command{}, fmt.Errorf("%w: wrong number of arguments for '%s'", ErrProtocol, name)
	}

	return Command{Kind: spec.kind, Name: name, Args: args}, nil
}

// Tokenize splits a command line into whitespace-separated tokens. A token
// may be enclosed in double quotes to include spaces; inside quotes, \" and
// \\ escape a quote and a backslash. Implemented as an explicit two-state
// (outside-quote / inside-quote) machine rather than strings.Fields, per
// the documented quoted-value form: SET user:1 "John Doe" 3600.
func Tokenize(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	inToken := false
	escaped := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case inQuote:
			switch c {
			case '\\':
				escaped = true
			case '"':
				inQuote = false
			default:
				cur.WriteByte(c)
			}
		case c == '"':
			inQuote = true
			inToken = true
		case c == ' ' || c == '\t':
			if inToken {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteByte(c)
			inToken = true
		}
	}

	if inQuote || escaped {
		return nil, fmt.Errorf("%w: unterminated quote", ErrProtocol)
	}
	if inToken {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}
