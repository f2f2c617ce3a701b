package terminal

import (
	"bufio"
	"chat-relay/contract"
	"chat-relay/domain"
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
)

const (
	prompt     = "> "
	namePrompt = "Please enter your name: "
)

var _ contract.LineReader = (*LineReader)(nil)

// LineReader splits an input stream into lines.
// A final line without terminator is still returned before io.EOF.
type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReader(r)}
}

func (l *LineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSuffix(line, "\r"), nil
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// Console owns everything written to the terminal.
// It is not safe for concurrent use: only the session loop writes to it.
type Console struct {
	in      contract.LineReader
	out     io.Writer
	colours bool
}

func NewConsole(in contract.LineReader, out io.Writer, colours bool) *Console {
	return &Console{in: in, out: out, colours: colours}
}

func (c *Console) ReadLine() (string, error) {
	return c.in.ReadLine()
}

func (c *Console) Welcome(brokerName string) error {
	banner := fmt.Sprintf("Welcome to %s chat!", brokerName)
	if c.colours {
		banner = color.New(color.FgGreen, color.OpBold).Render(banner)
	}
	_, err := io.WriteString(c.out, banner+"\n")
	return err
}

func (c *Console) AskName() error {
	_, err := io.WriteString(c.out, namePrompt)
	return err
}

func (c *Console) Prompt() error {
	_, err := io.WriteString(c.out, prompt)
	return err
}

// Render writes an inbound message as "\t<sender>: <body>\n".
// The body is written as is, without any escaping.
func (c *Console) Render(msg domain.ChatMessage) error {
	line := make([]byte, 0, len(msg.Sender)+len(msg.Body)+4)
	line = append(line, '\t')
	line = append(line, msg.Sender...)
	line = append(line, ": "...)
	line = append(line, msg.Body...)
	line = append(line, '\n')
	_, err := c.out.Write(line)
	return err
}
