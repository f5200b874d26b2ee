// Command medusa-cli is an interactive client for a Medusa server. It
// reads commands from stdin, sends them over TCP, and prints replies,
// expanding block replies one item per line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/medusa-kv/medusa/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:2312", "server address")
	flag.Parse()

	if err := run(*addr); err != nil {
		fmt.Fprintln(os.Stderr, "medusa-cli:", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	reader := protocol.NewReader(conn)
	writer := bufio.NewWriter(conn)

	greeting, err := reader.ReadLine()
	if err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	fmt.Println(greeting)

	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", addr)
		if !stdin.Scan() {
			return stdin.Err()
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}

		if _, err := writer.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("send: %w", err)
		}

		if err := printReply(reader); err != nil {
			return err
		}

		verb := strings.ToUpper(strings.Fields(line)[0])
		if verb == "QUIT" || verb == "EXIT" {
			return nil
		}
	}
}

// printReply reads one reply and prints it. Block replies start with a
// *<n> header; the n item lines follow.
func printReply(reader *protocol.Reader) error {
	line, err := reader.ReadLine()
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	if strings.HasPrefix(line, "*") {
		var n int
		if _, err := fmt.Sscanf(line, "*%d", &n); err == nil {
			if n == 0 {
				fmt.Println("(empty)")
				return nil
			}
			for i := 1; i <= n; i++ {
				item, err := reader.ReadLine()
				if err != nil {
					return fmt.Errorf("read reply: %w", err)
				}
				fmt.Printf("%d) %s\n", i, item)
			}
			return nil
		}
	}

	fmt.Println(line)
	return nil
}
