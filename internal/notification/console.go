package notification

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// ConsoleNotifier prints notifications, used by the one-shot scan tool
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

func (c *ConsoleNotifier) Name() string {
	return "console"
}

func (c *ConsoleNotifier) IsEnabled() bool {
	return c.out != nil
}

func (c *ConsoleNotifier) Send(_ context.Context, n *Notification) error {
	text := n.Console
	if text == "" {
		text = n.Message
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, text)
	return err
}
