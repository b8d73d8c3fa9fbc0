package imageutil

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// IsSVG reports whether data is an XML document whose root element is svg.
func IsSVG(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return false
	}

	decoder := xml.NewDecoder(bytes.NewReader(trimmed))
	decoder.Strict = false
	for {
		token, err := decoder.Token()
		if err != nil {
			return false
		}
		switch t := token.(type) {
		case xml.StartElement:
			return strings.EqualFold(t.Name.Local, "svg")
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return false
			}
		}
	}
}
