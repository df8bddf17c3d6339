package psdbench

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const lineLength = 3

var (
	ErrInvalidLineLen = errors.New("invalid line length, must be equal to 3")
	ErrEmptyFile      = errors.New("empty file name")
	ErrEmptyDecoder   = errors.New("empty decoder name")
	ErrInvalidHeader  = errors.New("invalid header")
)

func parseLine(line []string) (file, decoder string, opts Options, err error) {
	if len(line) != lineLength {
		err = ErrInvalidLineLen

		return
	}

	file = strings.TrimSpace(line[0])
	if file == "" {
		err = ErrEmptyFile

		return
	}

	decoder = strings.TrimSpace(line[1])
	if decoder == "" {
		err = ErrEmptyDecoder

		return
	}

	if v := strings.TrimSpace(line[2]); v != "" {
		opts.ApplyOpacity, err = strconv.ParseBool(v)
		if err != nil {
			err = fmt.Errorf("invalid apply_opacity value %v: %w", line[2], err)

			return
		}
	}

	return
}

const expectedHeaderStr = "file,decoder,apply_opacity"

func validateHeader(line []string) error {
	givenHeaderStr := strings.Join(line, ",")
	if givenHeaderStr == expectedHeaderStr {
		return nil
	}

	return ErrInvalidHeader
}

// ParseCsv reads a benchmark plan and calls cb once per row. Row errors are
// passed to cb; only an unreadable header stops parsing.
func ParseCsv(reader io.Reader, cb func(err error, file, decoder string, opts Options)) error {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	first, err := csvReader.Read()
	if err != nil {
		return fmt.Errorf("could not read header: %w", err)
	}

	err = validateHeader(first)
	if err != nil {
		return err
	}

	lineNum := 1

	for {
		var (
			file, decoder string
			opts          Options
		)

		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		lineNum++

		if err != nil {
			cb(err, file, decoder, opts)

			continue
		}

		file, decoder, opts, err = parseLine(record)
		if err != nil {
			cb(
				fmt.Errorf("record on line %d: %w", lineNum, err),
				file, decoder, opts,
			)

			continue
		}

		cb(nil, file, decoder, opts)
	}

	return nil
}

func ReadCsv(file string) (io.ReadCloser, error) {
	if file == "-" {
		return io.NopCloser(os.Stdin), nil
	}

	reader, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("could not open plan file: %w", err)
	}

	return reader, nil
}
