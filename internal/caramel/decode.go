package caramel

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// errStopScan ends scanElements early without reporting an error.
var errStopScan = errors.New("stop scan")

// scanElements calls fn for every start element named local, at any depth,
// in document order. fn may consume the element through dec; returning
// errStopScan ends the walk cleanly.
func scanElements(r io.Reader, local string, fn func(dec *xml.Decoder, se *xml.StartElement) error) error {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != local {
			continue
		}

		if err := fn(dec, &se); err != nil {
			if errors.Is(err, errStopScan) {
				return nil
			}

			return err
		}
	}
}

// firstInt returns the integer text of the first element named local.
func firstInt(r io.Reader, local string) (int, error) {
	var (
		text  string
		found bool
	)

	err := scanElements(r, local, func(dec *xml.Decoder, se *xml.StartElement) error {
		var v struct {
			Text string `xml:",chardata"`
		}

		if err := dec.DecodeElement(&v, se); err != nil {
			return fmt.Errorf("%w: decoding <%s>: %w", ErrMalformedResponse, local, err)
		}

		text = strings.TrimSpace(v.Text)
		found = true

		return errStopScan
	})
	if err != nil {
		return 0, err
	}

	if !found {
		return 0, fmt.Errorf("%w: no <%s> element", ErrMalformedResponse, local)
	}

	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: <%s> is not an integer: %q", ErrMalformedResponse, local, text)
	}

	return n, nil
}

// folderIDFromURI returns the final path segment of a folder URI.
func folderIDFromURI(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}

	return trimmed
}
