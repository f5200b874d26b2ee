// Package server implements the Medusa TCP server: command dispatch
// against the store engine and the per-connection handling loop.
package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/medusa-kv/medusa/internal/protocol"
	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
	"github.com/medusa-kv/medusa/internal/version"
)

const wrongTypeMsg = "operation against a key holding the wrong kind of value"

// Handler maps parsed commands onto store engine operations, validating
// arguments first. It is shared by all connections and is safe for
// concurrent use.
type Handler struct {
	store       *store.Store
	stats       *stats.Stats
	startTime   time.Time
	clientCount func() int
}

// NewHandler creates a Handler. clientCount reports the number of
// currently connected clients for the INFO block; pass nil when there is
// no connection server (e.g. in tests).
func NewHandler(st *store.Store, s *stats.Stats, clientCount func() int) *Handler {
	if clientCount == nil {
		clientCount = func() int { return 0 }
	}
	return &Handler{
		store:       st,
		stats:       s,
		startTime:   time.Now(),
		clientCount: clientCount,
	}
}

// Dispatch executes one command and returns its reply, plus whether the
// connection should close after the reply is flushed (QUIT/EXIT).
// Validation failures and type conflicts produce error replies without
// mutating the store; missing keys are well-defined successful results.
func (h *Handler) Dispatch(cmd protocol.Command) (protocol.Reply, bool) {
	h.stats.RecordCommand()

	reply, closeConn := h.execute(cmd)
	if reply.Kind == protocol.ReplyError {
		h.stats.RecordError()
	}
	return reply, closeConn
}

func (h *Handler) execute(cmd protocol.Command) (protocol.Reply, bool) {
	switch cmd.Kind {
	case protocol.CmdPing:
		return protocol.Pong(), false
	case protocol.CmdQuit:
		return protocol.OK(), true

	case protocol.CmdSet:
		return h.cmdSet(cmd.Args), false
	case protocol.CmdGet:
		return h.cmdGet(cmd.Args), false
	case protocol.CmdDelete:
		return protocol.Bool(h.store.Delete(cmd.Args[0])), false
	case protocol.CmdExists:
		return protocol.Bool(h.store.Exists(cmd.Args[0])), false
	case protocol.CmdTTL:
		return h.cmdTTL(cmd.Args), false
	case protocol.CmdExpire:
		return h.cmdExpire(cmd.Args), false

	case protocol.CmdHSet:
		return h.cmdHSet(cmd.Args), false
	case protocol.CmdHGet:
		return h.cmdHGet(cmd.Args), false
	case protocol.CmdHGetAll:
		return h.cmdHGetAll(cmd.Args), false
	case protocol.CmdHDel:
		return h.cmdHDel(cmd.Args), false
	case protocol.CmdHExists:
		return h.cmdHExists(cmd.Args), false
	case protocol.CmdHLen:
		return h.cmdHLen(cmd.Args), false

	case protocol.CmdLPush:
		return h.cmdPush(cmd.Args, h.store.LPush), false
	case protocol.CmdRPush:
		return h.cmdPush(cmd.Args, h.store.RPush), false
	case protocol.CmdLPop:
		return h.cmdPop(cmd.Args, h.store.LPop), false
	case protocol.CmdRPop:
		return h.cmdPop(cmd.Args, h.store.RPop), false
	case protocol.CmdLLen:
		return h.cmdLLen(cmd.Args), false
	case protocol.CmdLRange:
		return h.cmdLRange(cmd.Args), false

	case protocol.CmdList:
		return protocol.Block(h.store.Keys("*")), false
	case protocol.CmdKeys:
		return protocol.Block(h.store.Keys(cmd.Args[0])), false
	case protocol.CmdCount:
		return protocol.Int(int64(h.store.Count())), false
	case protocol.CmdClear:
		h.store.Clear()
		return protocol.OK(), false
	case protocol.CmdInfo:
		return protocol.Block(h.infoLines()), false

	default:
		return protocol.Errorf("unknown command '%s'", cmd.Name), false
	}
}

func (h *Handler) cmdSet(args []string) protocol.Reply {
	key, value := args[0], args[1]

	if len(args) == 3 {
		seconds, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || seconds < 0 {
			return protocol.Errorf("invalid expire time")
		}
		if seconds > 0 {
			h.store.SetWithTTL(key, value, time.Duration(seconds)*time.Second)
			return protocol.OK()
		}
	}

	// No TTL given: any prior expiry on the key is cleared.
	h.store.Set(key, value)
	return protocol.OK()
}

func (h *Handler) cmdGet(args []string) protocol.Reply {
	value, err := h.store.Get(args[0])
	switch err {
	case nil:
		h.stats.RecordLookup(true)
		return protocol.Value(value)
	case store.ErrNotFound:
		h.stats.RecordLookup(false)
		return protocol.Nil()
	case store.ErrWrongType:
		return protocol.Errorf(wrongTypeMsg)
	default:
		return protocol.Errorf("internal error")
	}
}

func (h *Handler) cmdTTL(args []string) protocol.Reply {
	remaining, hasExpire, ok := h.store.TTL(args[0])
	if !ok {
		return protocol.Value("not-found")
	}
	if !hasExpire {
		return protocol.Value("no-expiry")
	}
	// Round up so a freshly set N-second TTL reads back as N.
	seconds := int64((remaining + time.Second - 1) / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	return protocol.Int(seconds)
}

func (h *Handler) cmdExpire(args []string) protocol.Reply {
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || seconds < 0 {
		return protocol.Errorf("invalid expire time")
	}
	set := h.store.Expire(args[0], time.Duration(seconds)*time.Second)
	return protocol.Bool(set)
}

func (h *Handler) cmdHSet(args []string) protocol.Reply {
	added, err := h.store.HSet(args[0], args[1], args[2])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Bool(added)
}

func (h *Handler) cmdHGet(args []string) protocol.Reply {
	value, found, err := h.store.HGet(args[0], args[1])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	h.stats.RecordLookup(found)
	if !found {
		return protocol.Nil()
	}
	return protocol.Value(value)
}

func (h *Handler) cmdHGetAll(args []string) protocol.Reply {
	pairs, err := h.store.HGetAll(args[0])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	items := make([]string, 0, len(pairs)*2)
	for _, fv := range pairs {
		items = append(items, fv.Field, fv.Value)
	}
	return protocol.Block(items)
}

func (h *Handler) cmdHDel(args []string) protocol.Reply {
	removed, err := h.store.HDel(args[0], args[1])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Bool(removed)
}

func (h *Handler) cmdHExists(args []string) protocol.Reply {
	exists, err := h.store.HExists(args[0], args[1])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Bool(exists)
}

func (h *Handler) cmdHLen(args []string) protocol.Reply {
	n, err := h.store.HLen(args[0])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Int(int64(n))
}

func (h *Handler) cmdPush(args []string, push func(key, value string) (int, error)) protocol.Reply {
	length, err := push(args[0], args[1])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Int(int64(length))
}

func (h *Handler) cmdPop(args []string, pop func(key string) (string, bool, error)) protocol.Reply {
	value, found, err := pop(args[0])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	if !found {
		return protocol.Nil()
	}
	return protocol.Value(value)
}

func (h *Handler) cmdLLen(args []string) protocol.Reply {
	n, err := h.store.LLen(args[0])
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Int(int64(n))
}

func (h *Handler) cmdLRange(args []string) protocol.Reply {
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return protocol.Errorf("value is not an integer")
	}
	items, err := h.store.LRange(args[0], start, stop)
	if err != nil {
		return protocol.Errorf(wrongTypeMsg)
	}
	return protocol.Block(items)
}

// infoLines assembles the INFO stats block in a fixed order.
func (h *Handler) infoLines() []string {
	snap := h.stats.Snapshot()
	uptime := int64(time.Since(h.startTime).Seconds())
	return []string{
		"medusa_version:" + version.Version,
		fmt.Sprintf("uptime_in_seconds:%d", uptime),
		fmt.Sprintf("connected_clients:%d", h.clientCount()),
		fmt.Sprintf("total_connections:%d", snap["total_connections"]),
		fmt.Sprintf("total_commands:%d", snap["total_commands"]),
		fmt.Sprintf("total_keys:%d", h.store.Count()),
		fmt.Sprintf("expired_keys:%d", h.store.ExpiredCount()),
		fmt.Sprintf("hits:%d", snap["hits"]),
		fmt.Sprintf("misses:%d", snap["misses"]),
		fmt.Sprintf("errors:%d", snap["errors"]),
	}
}
