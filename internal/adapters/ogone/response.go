package ogone

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/merchantkit/ogone-service/internal/adapters/ports"
	"github.com/merchantkit/ogone-service/internal/domain"
)

// successMessage is the canonical message for accepted transactions
const successMessage = "The transaction was successful"

// htmlAnswerKey is the one response field that is not a root-element
// attribute: the 3-D Secure challenge fragment, carried as element text.
const htmlAnswerKey = "HTML_ANSWER"

// cvcMapping translates the processor's CVC check result to canonical codes
var cvcMapping = map[string]string{
	"OK": "M",
	"KO": "N",
	"NO": "P",
}

// avsMapping translates the processor's address check result to canonical codes
var avsMapping = map[string]string{
	"OK": "M",
	"KO": "N",
	"NO": "R",
}

// parseResponse decodes a DirectLink XML reply into a flat field map. Every
// attribute on the root element becomes an entry; an HTML_ANSWER element
// anywhere in the document is merged in under that same key.
func parseResponse(body []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))

	params := make(map[string]string)
	rootSeen := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed XML: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if !rootSeen {
			for _, attr := range start.Attr {
				params[attr.Name.Local] = attr.Value
			}
			rootSeen = true
			continue
		}

		if start.Name.Local == htmlAnswerKey {
			var text string
			if err := dec.DecodeElement(&text, &start); err != nil {
				return nil, fmt.Errorf("malformed %s element: %w", htmlAnswerKey, err)
			}
			params[htmlAnswerKey] = text
		}
	}

	if !rootSeen {
		return nil, fmt.Errorf("response contains no XML document")
	}

	return params, nil
}

// normalize maps the raw field set to the gateway result the caller sees
func (g *directLinkGateway) normalize(params map[string]string, operation string) *ports.GatewayResult {
	success := params["NCERROR"] == "0"

	message := successMessage
	if !success {
		message = formatErrorMessage(params["NCERRORPLUS"])
	}

	return &ports.GatewayResult{
		Success:       success,
		Message:       message,
		Params:        params,
		Authorization: params["PAYID"] + domain.ReferenceDelimiter + operation,
		AVSResult:     avsMapping[params["AAVCheck"]],
		CVVResult:     cvcMapping[params["CVCCheck"]],
		HTMLAnswer:    params[htmlAnswerKey],
		Test:          g.config.Test,
	}
}

// formatErrorMessage turns the processor's NCERRORPLUS detail into a readable
// sentence: pipe-separated fragments are rejoined with commas, slash-suffixed
// internals are cut off, and the first letter is capitalized.
func formatErrorMessage(raw string) string {
	raw = strings.TrimSpace(raw)

	var msg string
	switch {
	case strings.Contains(raw, "|"):
		msg = strings.Join(strings.Split(raw, "|"), ", ")
	case strings.Contains(raw, "/"):
		msg, _, _ = strings.Cut(raw, "/")
	default:
		msg = raw
	}

	return capitalize(msg)
}

// capitalize upper-cases the first letter and lower-cases the rest
func capitalize(s string) string {
	if s == "" {
		return s
	}
	first, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(first)) + strings.ToLower(s[size:])
}
