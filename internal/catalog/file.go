// Package catalog reads symbol catalogs, the ordered record streams the
// index builder consumes, from JSON files or a PostgreSQL table.
package catalog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
)

// Source yields a catalog snapshot in discovery order.
type Source interface {
	Load(ctx context.Context) ([]index.RawSymbol, error)
}

// Record is the wire form of one catalog record. Scope may be a JSON array
// or a single "a::b" string.
type Record struct {
	DisplayName   string     `json:"display_name"`
	Scope         scopeField `json:"scope"`
	AnchorRef     string     `json:"anchor_ref"`
	SignatureHint string     `json:"signature_hint"`
	Kind          string     `json:"kind"`
}

type scopeField []string

func (s *scopeField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return err
		}
		*s = splitScope(joined)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	*s = parts
	return nil
}

func splitScope(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	return strings.Split(joined, index.ScopeSeparator)
}

// Raw converts the record for the builder.
func (r Record) Raw() index.RawSymbol {
	return index.RawSymbol{
		DisplayName:   r.DisplayName,
		Scope:         []string(r.Scope),
		AnchorRef:     r.AnchorRef,
		SignatureHint: r.SignatureHint,
		Kind:          index.ParseKind(r.Kind),
	}
}

// FileSource reads a JSON array or JSON-lines file.
type FileSource struct {
	Path string
}

func (f FileSource) Load(_ context.Context) ([]index.RawSymbol, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer file.Close()

	lines := false
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".jsonl", ".ndjson":
		lines = true
	}
	return Decode(file, lines)
}

// Decode reads records from r. With lines unset, a stream starting with '['
// is read as one array and anything else as JSON lines.
func Decode(r io.Reader, lines bool) ([]index.RawSymbol, error) {
	br := bufio.NewReader(r)
	if !lines {
		first, err := peekNonSpace(br)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		lines = first != '['
	}
	if lines {
		return decodeLines(br)
	}
	var records []Record
	if err := json.NewDecoder(br).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidCatalog, err)
	}
	out := make([]index.RawSymbol, len(records))
	for i, rec := range records {
		out[i] = rec.Raw()
	}
	return out, nil
}

func decodeLines(r io.Reader) ([]index.RawSymbol, error) {
	var out []index.RawSymbol
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", apperrors.ErrInvalidCatalog, line, err)
		}
		out = append(out, rec.Raw())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return out, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
