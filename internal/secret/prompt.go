package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// ErrEmptyPhrase 未输入任何内容
var ErrEmptyPhrase = errors.New("empty seed phrase")

// Prompter 从终端读取助记词，终端下不回显；非终端（管道）时读取一行
type Prompter struct {
	In  *os.File
	Out io.Writer
}

// NewPrompter 标准输入读取，提示写到标准错误
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// ReadPhrase 返回的切片由调用方在使用后清零
func (p *Prompter) ReadPhrase(prompt string) ([]byte, error) {
	fd := int(p.In.Fd())
	var (
		phrase []byte
		err    error
	)
	if term.IsTerminal(fd) {
		fmt.Fprint(p.Out, prompt)
		phrase, err = term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
	} else {
		phrase, err = readLine(p.In)
	}
	if err != nil {
		return nil, fmt.Errorf("read seed phrase: %w", err)
	}

	trimmed := bytes.TrimSpace(phrase)
	if len(trimmed) == 0 {
		Zero(phrase)
		return nil, ErrEmptyPhrase
	}
	out := append([]byte(nil), trimmed...)
	Zero(phrase)
	return out, nil
}

func readLine(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		Zero(line)
		return nil, err
	}
	return line, nil
}

// Zero 清零敏感数据
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
