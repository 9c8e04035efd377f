package utils

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
)

//go:embed grape-aliases.csv
var defaultGrapeAliases []byte

// LoadGrapeAliases reads "alias,canonical" rows from filePath, or from the
// built-in list when filePath is empty. Keys and values are GrapeKey forms.
func LoadGrapeAliases(filePath string) (map[string]string, error) {
	if filePath == "" {
		return ParseGrapeAliases(bytes.NewReader(defaultGrapeAliases))
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open grape aliases %s: %w", filePath, err)
	}
	defer f.Close()

	return ParseGrapeAliases(f)
}

func ParseGrapeAliases(r io.Reader) (map[string]string, error) {
	csvReader := csv.NewReader(r)
	csvReader.Comment = '#'
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse grape aliases: %w", err)
	}

	aliases := make(map[string]string, len(records))
	for _, record := range records {
		if len(record) < 2 {
			log.Warn().Strs("record", record).Msg("[ParseGrapeAliases] skipping invalid record")
			continue
		}
		alias, canonical := GrapeKey(record[0]), GrapeKey(record[1])
		if alias == "" || canonical == "" {
			log.Warn().Strs("record", record).Msg("[ParseGrapeAliases] skipping empty record")
			continue
		}
		aliases[alias] = canonical
	}

	return aliases, nil
}
