package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFExtractor reads the text layer of a PDF through pdfcpu's content
// extraction and the text-showing operators of each page stream.
type PDFExtractor struct {
	tempDir string
}

// NewPDFExtractor returns an extractor that stages page streams under tempDir
// (the OS default when empty).
func NewPDFExtractor(tempDir string) *PDFExtractor {
	disableConfigDir.Do(api.DisableConfigDir)
	return &PDFExtractor{tempDir: tempDir}
}

func (p *PDFExtractor) Extract(ctx context.Context, path string) (Recognition, error) {
	outDir, err := os.MkdirTemp(p.tempDir, "pdf-content-*")
	if err != nil {
		return Recognition{}, fmt.Errorf("create content dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return Recognition{}, fmt.Errorf("extract pdf content: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Recognition{}, err
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return Recognition{}, fmt.Errorf("read content dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return pageOrderLess(names[i], names[j]) })

	pages := make([]string, 0, len(names))
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			return Recognition{}, fmt.Errorf("read page content: %w", err)
		}
		if text := ContentText(raw); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) == 0 {
		return Recognition{}, ErrNoTextLayer
	}

	// Embedded text is exact, there is nothing to be unsure about.
	return Recognition{Text: strings.Join(pages, "\n\n"), Confidence: 100}, nil
}

// pageOrderLess orders names by their trailing page number, then lexically.
func pageOrderLess(a, b string) bool {
	na, oka := trailingNumber(a)
	nb, okb := trailingNumber(b)
	if oka && okb && na != nb {
		return na < nb
	}
	return a < b
}

func trailingNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(base)
	for i > 0 && base[i-1] >= '0' && base[i-1] <= '9' {
		i--
	}
	if i == len(base) {
		return 0, false
	}
	n, err := strconv.Atoi(base[i:])
	return n, err == nil
}

// ContentText returns the strings shown by a decoded page content stream.
// It understands Tj, TJ, ' and " plus the line-moving operators, which
// covers text written with simple fonts.
func ContentText(content []byte) string {
	var (
		out     strings.Builder
		pending []string
		line    bool
	)
	newline := func() {
		if line {
			out.WriteByte('\n')
			line = false
		}
	}
	emit := func() {
		for _, s := range pending {
			if s == "" {
				continue
			}
			out.WriteString(s)
			line = true
		}
		pending = pending[:0]
	}

	s := content
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '(':
			str, next := readLiteral(s, i)
			pending = append(pending, str)
			i = next
		case (c == '<' || c == '>') && i+1 < len(s) && s[i+1] == c:
			i += 2
		case c == '<':
			str, next := readHex(s, i)
			pending = append(pending, str)
			i = next
		case c == '%':
			for i < len(s) && s[i] != '\n' && s[i] != '\r' {
				i++
			}
		case c == '[' || c == ']':
			i++
		case isDelimiterOrSpace(c):
			i++
		default:
			start := i
			for i < len(s) && !isDelimiterOrSpace(s[i]) && s[i] != '(' && s[i] != '<' && s[i] != '[' && s[i] != ']' {
				i++
			}
			if i == start {
				i++
				continue
			}
			token := string(s[start:i])
			if n, err := strconv.ParseFloat(token, 64); err == nil {
				// Large negative kerning inside TJ arrays stands for a word gap.
				if n <= -200 && len(pending) > 0 {
					pending = append(pending, " ")
				}
				continue
			}
			switch token {
			case "Tj", "TJ":
				emit()
			case "'", "\"":
				newline()
				emit()
			case "T*", "Td", "TD", "ET":
				newline()
				pending = pending[:0]
			default:
				if !strings.HasPrefix(token, "/") {
					pending = pending[:0]
				}
			}
		}
	}
	return strings.TrimSpace(out.String())
}

func isDelimiterOrSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', 0:
		return true
	}
	return false
}

func readLiteral(s []byte, start int) (string, int) {
	var b bytes.Buffer
	depth := 0
	i := start
	for i < len(s) {
		c := s[i]
		switch c {
		case '(':
			if depth > 0 {
				b.WriteByte(c)
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
			b.WriteByte(c)
		case '\\':
			i++
			if i >= len(s) {
				return b.String(), i
			}
			switch e := s[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				j := i
				for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
					j++
				}
				v, _ := strconv.ParseUint(string(s[i:j]), 8, 8)
				b.WriteByte(byte(v))
				i = j - 1
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		i++
	}
	return b.String(), i
}

func readHex(s []byte, start int) (string, int) {
	end := bytes.IndexByte(s[start:], '>')
	if end < 0 {
		return "", len(s)
	}
	digits := make([]byte, 0, end)
	for _, c := range s[start+1 : start+end] {
		if !isDelimiterOrSpace(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return "", start + end + 1
		}
		out = append(out, byte(v))
	}
	return string(out), start + end + 1
}
