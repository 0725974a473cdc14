// Package symbols maps transducer token ids to text.
package symbols

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// wordBoundary is the sentencepiece marker for a preceding space
const wordBoundary = "▁"

// Table is an immutable id <-> symbol mapping
type Table struct {
	syms []string
	ids  map[string]int32
}

// Load reads a tokens.txt file
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol table: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// Read parses lines of the form "<symbol> <id>". Ids may appear in any
// order but must be unique.
func Read(r io.Reader) (*Table, error) {
	t := &Table{ids: make(map[string]int32)}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"<symbol> <id>\", got %q", line, text)
		}
		id, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("line %d: invalid id %q", line, fields[1])
		}
		if err := t.add(fields[0], int32(id)); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(t.ids) == 0 {
		return nil, fmt.Errorf("symbol table is empty")
	}
	return t, nil
}

// FromList builds a table where each symbol's id is its index
func FromList(syms []string) *Table {
	t := &Table{ids: make(map[string]int32, len(syms))}
	for i, s := range syms {
		t.syms = append(t.syms, s)
		t.ids[s] = int32(i)
	}
	return t
}

func (t *Table) add(sym string, id int32) error {
	for int(id) >= len(t.syms) {
		t.syms = append(t.syms, "")
	}
	if t.syms[id] != "" {
		return fmt.Errorf("duplicate id %d", id)
	}
	t.syms[id] = sym
	t.ids[sym] = id
	return nil
}

// Len returns one past the largest id
func (t *Table) Len() int { return len(t.syms) }

// Symbol returns the raw symbol for id, or "" if id is unknown
func (t *Table) Symbol(id int32) string {
	if id < 0 || int(id) >= len(t.syms) {
		return ""
	}
	return t.syms[id]
}

// ID returns the id of sym
func (t *Table) ID(sym string) (int32, bool) {
	id, ok := t.ids[sym]
	return id, ok
}

// TokenToText renders ids as text. Word boundary markers become spaces and
// byte fallback tokens like <0x41> become raw bytes.
func (t *Table) TokenToText(ids []int32) string {
	var b strings.Builder
	for _, id := range ids {
		sym := t.Symbol(id)
		if v, ok := byteToken(sym); ok {
			b.WriteByte(v)
			continue
		}
		b.WriteString(strings.ReplaceAll(sym, wordBoundary, " "))
	}
	return strings.TrimLeft(b.String(), " ")
}

func byteToken(sym string) (byte, bool) {
	if len(sym) != 6 || !strings.HasPrefix(sym, "<0x") || sym[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(sym[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
