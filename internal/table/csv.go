package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownCharset is returned when ReadOptions.Charset names no known encoding.
var ErrUnknownCharset = errors.New("unknown charset")

// naTokens are the cell values treated as missing.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsNA reports whether a raw cell is one of the missing-value tokens.
func IsNA(s string) bool {
	_, ok := naTokens[s]
	return ok
}

// ReadOptions controls CSV decoding.
type ReadOptions struct {
	// Charset is an IANA name or alias (utf-8, latin1, windows-1252, gbk, shift_jis).
	// Empty means utf-8.
	Charset string
}

// ReadFile opens path and decodes it with ReadCSV.
func ReadFile(path string, opts ReadOptions) (*Table, error) {
	f, err := os.Open(path) // #nosec G304 -- path is provided by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			slog.Warn("failed to close csv", "path", path, "error", cerr)
		}
	}()
	return ReadCSV(f, opts)
}

// ReadCSV parses a CSV stream with a header row into a typed table.
// Column kinds are inferred over the whole stream.
func ReadCSV(r io.Reader, opts ReadOptions) (*Table, error) {
	dec, err := decoder(opts.Charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return New()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	names := dedupeNames(header)

	raw := make([][]string, len(names))
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		for i, v := range record {
			raw[i] = append(raw[i], v)
		}
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		columns[i] = inferColumn(name, raw[i])
	}
	return New(columns...)
}

func decoder(charset string) (transform.Transformer, error) {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" {
		return unicode.UTF8BOM.NewDecoder(), nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCharset, charset)
	}
	return transform.Chain(enc.NewDecoder(), unicode.UTF8BOM.NewDecoder()), nil
}

// dedupeNames renames repeated headers to name.1, name.2, ...
func dedupeNames(header []string) []string {
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}
	names := make([]string, len(header))
	for i, h := range header {
		n, dup := seen[h]
		seen[h] = n + 1
		if !dup {
			names[i] = h
			continue
		}
		candidate := fmt.Sprintf("%s.%d", h, n)
		for taken[candidate] {
			n++
			candidate = fmt.Sprintf("%s.%d", h, n)
		}
		seen[h] = n + 1
		taken[candidate] = true
		names[i] = candidate
	}
	return names
}

func inferColumn(name string, raw []string) *Column {
	floats := make([]float64, len(raw))
	numeric := true
	for i, s := range raw {
		if IsNA(s) {
			floats[i] = math.NaN()
			continue
		}
		v, ok := parseNumber(s)
		if !ok {
			numeric = false
			break
		}
		floats[i] = v
	}
	if numeric {
		return NewNumeric(name, floats)
	}

	if bools, ok := parseBools(raw); ok {
		return NewNumeric(name, bools)
	}

	values := make([]string, len(raw))
	valid := make([]bool, len(raw))
	for i, s := range raw {
		if IsNA(s) {
			continue
		}
		values[i] = s
		valid[i] = true
	}
	return NewText(name, values, valid)
}

// parseBools accepts a column only when every cell is a boolean literal.
// A missing cell keeps the column textual.
func parseBools(raw []string) ([]float64, bool) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			out[i] = 1
		case "false":
			out[i] = 0
		default:
			return nil, false
		}
	}
	return out, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "_xXpP") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}
