package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medusa-kv/medusa/internal/logger"
	"github.com/medusa-kv/medusa/internal/protocol"
	"github.com/medusa-kv/medusa/internal/stats"
	"github.com/medusa-kv/medusa/internal/store"
)

// startTestServer runs a server on an ephemeral port and returns its
// address.
func startTestServer(t *testing.T, opts Options) string {
	t.Helper()

	st := store.New()
	t.Cleanup(st.Close)

	log := logger.NewWithOutput("error", testWriter{t})
	srv := New("127.0.0.1:0", st, stats.New(), log, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(ctx); err != nil {
			t.Errorf("server start: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Wait until the listener is bound.
	deadline := time.Now().Add(2 * time.Second)
	for {
		addr := srv.Addr()
		if !strings.HasSuffix(addr, ":0") {
			return addr
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not bind in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// client is a minimal test client for the line protocol.
type client struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *bufio.Writer
}

func dialServer(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	c := &client{
		conn:   conn,
		reader: protocol.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}

	greeting, err := c.reader.ReadLine()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(greeting, "MEDUSA v"), "greeting %q", greeting)
	require.True(t, strings.HasSuffix(greeting, " ready"), "greeting %q", greeting)
	return c
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.writer.WriteString(line + "\n")
	require.NoError(t, err)
	require.NoError(t, c.writer.Flush())
}

func (c *client) roundTrip(t *testing.T, line string) string {
	t.Helper()
	c.send(t, line)
	reply, err := c.reader.ReadLine()
	require.NoError(t, err)
	return reply
}

func (c *client) roundTripBlock(t *testing.T, line string) []string {
	t.Helper()
	c.send(t, line)
	items, err := c.reader.ReadBlock()
	require.NoError(t, err)
	return items
}

func TestServerBasicSession(t *testing.T) {
	addr := startTestServer(t, Options{})
	c := dialServer(t, addr)

	assert.Equal(t, "PONG", c.roundTrip(t, "PING"))
	assert.Equal(t, "OK", c.roundTrip(t, "SET name medusa"))
	assert.Equal(t, "medusa", c.roundTrip(t, "GET name"))
	assert.Equal(t, "(nil)", c.roundTrip(t, "GET missing"))
	assert.Equal(t, "1", c.roundTrip(t, "DELETE name"))
}

func TestServerBlockReplies(t *testing.T) {
	addr := startTestServer(t, Options{})
	c := dialServer(t, addr)

	c.roundTrip(t, "SET user:1 a")
	c.roundTrip(t, "SET user:2 b")
	c.roundTrip(t, "HSET h name alice")

	assert.Equal(t, []string{"user:1", "user:2"}, c.roundTripBlock(t, "KEYS user:*"))
	assert.Equal(t, []string{"name", "alice"}, c.roundTripBlock(t, "HGETALL h"))
	assert.Empty(t, c.roundTripBlock(t, "KEYS zzz*"))
}

func TestServerQuotedValues(t *testing.T) {
	addr := startTestServer(t, Options{})
	c := dialServer(t, addr)

	assert.Equal(t, "OK", c.roundTrip(t, `SET greeting "hello world"`))
	assert.Equal(t, "hello world", c.roundTrip(t, "GET greeting"))
}

func TestServerProtocolErrorsKeepConnection(t *testing.T) {
	addr := startTestServer(t, Options{})
	c := dialServer(t, addr)

	reply := c.roundTrip(t, "BOGUS")
	assert.True(t, strings.HasPrefix(reply, "ERR "), "reply %q", reply)
	assert.Contains(t, reply, "unknown command")

	reply = c.roundTrip(t, "SET onlykey")
	assert.Contains(t, reply, "wrong number of arguments")

	// The connection survives malformed commands.
	assert.Equal(t, "PONG", c.roundTrip(t, "PING"))
}

func TestServerQuitClosesConnection(t *testing.T) {
	addr := startTestServer(t, Options{})
	c := dialServer(t, addr)

	assert.Equal(t, "OK", c.roundTrip(t, "QUIT"))

	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := c.reader.ReadLine()
	assert.Error(t, err)
}

func TestServerConcurrentClients(t *testing.T) {
	addr := startTestServer(t, Options{})

	const clients = 10
	done := make(chan error, clients)
	for i := 0; i < clients; i++ {
		go func(i int) {
			conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()

			reader := protocol.NewReader(conn)
			writer := bufio.NewWriter(conn)
			if _, err := reader.ReadLine(); err != nil {
				done <- err
				return
			}

			for j := 0; j < 20; j++ {
				writer.WriteString("PING\n")
				if err := writer.Flush(); err != nil {
					done <- err
					return
				}
				reply, err := reader.ReadLine()
				if err != nil {
					done <- err
					return
				}
				if reply != "PONG" {
					done <- assert.AnError
					return
				}
			}
			done <- nil
		}(i)
	}

	for i := 0; i < clients; i++ {
		assert.NoError(t, <-done)
	}
}

func TestServerMaxConnections(t *testing.T) {
	addr := startTestServer(t, Options{MaxConnections: 2})

	c1 := dialServer(t, addr)
	c2 := dialServer(t, addr)
	assert.Equal(t, "PONG", c1.roundTrip(t, "PING"))
	assert.Equal(t, "PONG", c2.roundTrip(t, "PING"))

	// A third connection is told why and disconnected.
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := protocol.NewReader(conn).ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "ERR max connections reached", reply)

	// Existing clients are unaffected.
	assert.Equal(t, "PONG", c1.roundTrip(t, "PING"))
}

func TestServerSlotFreedAfterQuit(t *testing.T) {
	addr := startTestServer(t, Options{MaxConnections: 1})

	c1 := dialServer(t, addr)
	assert.Equal(t, "OK", c1.roundTrip(t, "QUIT"))

	// The slot becomes free once the first client is torn down.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		require.NoError(t, err)
		conn.SetReadDeadline(time.Now().Add(time.Second))
		reply, err := protocol.NewReader(conn).ReadLine()
		conn.Close()
		if err == nil && strings.HasPrefix(reply, "MEDUSA v") {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("slot never freed, last reply %q err %v", reply, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerIdleTimeout(t *testing.T) {
	addr := startTestServer(t, Options{Timeout: 100 * time.Millisecond})
	c := dialServer(t, addr)

	assert.Equal(t, "PONG", c.roundTrip(t, "PING"))

	time.Sleep(250 * time.Millisecond)

	// The server has dropped the idle connection.
	c.conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err := c.reader.ReadLine()
	assert.Error(t, err)
}

func TestServerSharedState(t *testing.T) {
	addr := startTestServer(t, Options{})

	c1 := dialServer(t, addr)
	c2 := dialServer(t, addr)

	assert.Equal(t, "OK", c1.roundTrip(t, "SET shared from-c1"))
	assert.Equal(t, "from-c1", c2.roundTrip(t, "GET shared"))
}
