// Package console 交互终端的输出与输入
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"

	"github.com/kafka-investigator/kafka-investigator/pkg/pool"
)

const timeLayout = "15:04:05"

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	titleColor   = color.New(color.FgHiWhite, color.Bold)
	keyColor     = color.New(color.FgHiYellow)
)

type readResult struct {
	line string
	err  error
}

// Console 带时间戳的彩色输出，以及可取消的行输入
type Console struct {
	out io.Writer
	in  *bufio.Reader
	now func() time.Time

	mu       sync.Mutex
	readOnce sync.Once
	lines    chan readResult
}

// New 创建Console
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		out: out,
		in:  bufio.NewReader(in),
		now: time.Now,
	}
}

func (c *Console) line(clr *color.Color, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := c.now().Format(timeLayout) + " > "
	clr.Fprintln(c.out, prefix+fmt.Sprintf(format, args...))
}

// Info 普通提示
func (c *Console) Info(format string, args ...interface{}) {
	c.line(infoColor, format, args...)
}

// Success 操作成功
func (c *Console) Success(format string, args ...interface{}) {
	c.line(successColor, format, args...)
}

// Warn 警告
func (c *Console) Warn(format string, args ...interface{}) {
	c.line(warnColor, format, args...)
}

// Error 错误
func (c *Console) Error(format string, args ...interface{}) {
	c.line(errorColor, format, args...)
}

// Println 原样输出一行
func (c *Console) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Title 输出标题
func (c *Console) Title(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	titleColor.Fprintln(c.out, "\n"+s)
}

// Table 以对齐的列输出表格
func (c *Console) Table(headers []string, rows [][]string) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(w, strings.Join(headers, "\t"))
		underline := make([]string, len(headers))
		for i, h := range headers {
			underline[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintln(w, strings.Join(underline, "\t"))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.Write(buf.Bytes())
}

// JSON 格式化输出JSON，无法解析时原样输出
func (c *Console) JSON(data []byte) {
	out, err := prettyjson.Format(data)
	if err != nil {
		out = data
	}
	c.Println(string(out))
}

// Option 菜单项
type Option struct {
	Key   rune
	Label string
}

// Menu 输出菜单
func (c *Console) Menu(title string, options []Option) {
	c.mu.Lock()
	defer c.mu.Unlock()
	titleColor.Fprintln(c.out, "\n"+title)
	for _, o := range options {
		fmt.Fprintf(c.out, "  %s %s\n", keyColor.Sprintf("[%c]", o.Key), o.Label)
	}
}

// startReader 后台按行读取输入，使ReadLine可以被取消
func (c *Console) startReader() {
	c.lines = make(chan readResult)
	go func() {
		for {
			line, err := c.in.ReadString('\n')
			if err != nil && line == "" {
				c.lines <- readResult{err: err}
				close(c.lines)
				return
			}
			c.lines <- readResult{line: strings.TrimRight(line, "\r\n")}
		}
	}()
}

// ReadLine 输出提示并读取一行，去除首尾空白
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.readOnce.Do(c.startReader)

	if prompt != "" {
		c.mu.Lock()
		fmt.Fprint(c.out, prompt)
		c.mu.Unlock()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		if r.err != nil {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

// NoKey 输入为空或不止一个字符
const NoKey rune = -1

// ReadKey 读取一个菜单按键，同时返回原始输入
func (c *Console) ReadKey(ctx context.Context, prompt string) (rune, string, error) {
	line, err := c.ReadLine(ctx, prompt)
	if err != nil {
		return NoKey, "", err
	}
	if utf8.RuneCountInString(line) != 1 {
		return NoKey, line, nil
	}
	r, _ := utf8.DecodeRuneInString(strings.ToLower(line))
	return r, line, nil
}

// Ask 读取一行，输入为空时返回def
func (c *Console) Ask(ctx context.Context, question, def string) (string, error) {
	prompt := question + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", question, def)
	}
	answer, err := c.ReadLine(ctx, prompt)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Confirm 读取Y/N，其他输入重新询问
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	for {
		answer, err := c.ReadLine(ctx, question+" (Y/N): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		c.Warn("Please answer Y or N.")
	}
}
