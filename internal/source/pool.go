package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/internalerr"
)

// LoadFacilities reads facility records from a JSON array or a JSON Lines
// file. Unlike a crawl feed, a malformed pool line is fatal: skipping it
// would silently drop a facility.
func LoadFacilities(path string) ([]facility.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	recs, err := DecodeFacilities(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// DecodeFacilities decodes either encoding, chosen by the first non-blank
// byte. Empty input is an empty pool.
func DecodeFacilities(data []byte) ([]facility.Record, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, []byte("\ufeff")))
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var recs []facility.Record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("%w: facility array: %v", internalerr.ErrInvalidInput, err)
		}
		return recs, nil
	}

	var recs []facility.Record
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec facility.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", internalerr.ErrInvalidInput, lineNo, err)
		}
		recs = append(recs, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
