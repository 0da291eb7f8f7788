package model

import "strings"

// KeyKind discriminates the two walk modes.
type KeyKind string

const (
	KeyCode     KeyKind = "code"
	KeyLocality KeyKind = "locality"
)

// QueryKey is a single unit of work for the browser driver. It is immutable
// once generated and consumed exactly once.
type QueryKey struct {
	kind   KeyKind
	code   string
	city   string
	region string
	letter string
}

// CodeKey returns a key for a direct postal-code lookup. code must already be
// in the source's accepted format.
func CodeKey(code string) QueryKey {
	return QueryKey{kind: KeyCode, code: code}
}

// LocalityKey returns a key for a locality lookup. letter is the initial-letter
// index to select, or empty when the form has none.
func LocalityKey(city, region, letter string) QueryKey {
	return QueryKey{
		kind:   KeyLocality,
		city:   strings.TrimSpace(city),
		region: strings.ToUpper(strings.TrimSpace(region)),
		letter: letter,
	}
}

func (k QueryKey) Kind() KeyKind  { return k.kind }
func (k QueryKey) Code() string   { return k.code }
func (k QueryKey) City() string   { return k.city }
func (k QueryKey) Region() string { return k.region }
func (k QueryKey) Letter() string { return k.letter }

// String renders the key for logs.
func (k QueryKey) String() string {
	switch k.kind {
	case KeyCode:
		return k.code
	case KeyLocality:
		s := k.city + "/" + k.region
		if k.letter != "" {
			s += "#" + k.letter
		}
		return s
	default:
		return "<invalid>"
	}
}
