package walker

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// codeWidth is the number of digits in a postal code.
const codeWidth = 8

// CodeFormat renders numeric postal codes the way the source form accepts
// them: zero-padded to eight digits with a separator inserted at SepPos.
// SepPos 0 or 8 disables the separator.
type CodeFormat struct {
	SepPos int
	Sep    string
}

// DefaultCodeFormat is NNNNN-NNN.
func DefaultCodeFormat() CodeFormat {
	return CodeFormat{SepPos: 5, Sep: "-"}
}

// Parse returns the numeric value of a code, accepting any separators.
func (f CodeFormat) Parse(s string) (int, error) {
	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
		default:
			return 0, eris.Errorf("walker: invalid character %q in code %q", r, s)
		}
	}
	d := digits.String()
	if len(d) != codeWidth {
		return 0, eris.Errorf("walker: code %q must have %d digits", s, codeWidth)
	}
	n := 0
	for _, r := range d {
		n = n*10 + int(r-'0')
	}
	return n, nil
}

// Format renders n as a code.
func (f CodeFormat) Format(n int) string {
	s := fmt.Sprintf("%0*d", codeWidth, n)
	if f.SepPos <= 0 || f.SepPos >= codeWidth {
		return s
	}
	return s[:f.SepPos] + f.Sep + s[f.SepPos:]
}

// KeySource yields query keys in walk order.
type KeySource interface {
	Next() (model.QueryKey, bool)
}

type codeRange struct {
	format   CodeFormat
	cur, end int
}

// CodeRange yields one key per code from start to end inclusive, ascending.
func CodeRange(f CodeFormat, start, end string) (KeySource, error) {
	s, err := f.Parse(start)
	if err != nil {
		return nil, err
	}
	e, err := f.Parse(end)
	if err != nil {
		return nil, err
	}
	if s > e {
		return nil, eris.Errorf("walker: start %s is after end %s", start, end)
	}
	return &codeRange{format: f, cur: s, end: e}, nil
}

func (r *codeRange) Next() (model.QueryKey, bool) {
	if r.cur > r.end {
		return model.QueryKey{}, false
	}
	k := model.CodeKey(r.format.Format(r.cur))
	r.cur++
	return k, true
}

type keyList struct {
	keys []model.QueryKey
	i    int
}

// Keys yields the given keys in order.
func Keys(keys ...model.QueryKey) KeySource {
	return &keyList{keys: keys}
}

func (l *keyList) Next() (model.QueryKey, bool) {
	if l.i >= len(l.keys) {
		return model.QueryKey{}, false
	}
	k := l.keys[l.i]
	l.i++
	return k, true
}

// LocalityKeys yields one key per initial letter, in the order given. An
// empty letters string yields a single key without a letter index.
func LocalityKeys(city, region, letters string) (KeySource, error) {
	if strings.TrimSpace(city) == "" {
		return nil, eris.New("walker: locality walk needs a city")
	}
	region = strings.TrimSpace(region)
	if len(region) != 2 {
		return nil, eris.Errorf("walker: region %q must be a two-letter code", region)
	}

	if letters == "" {
		return Keys(model.LocalityKey(city, region, "")), nil
	}
	var keys []model.QueryKey
	seen := map[rune]bool{}
	for _, r := range strings.ToUpper(letters) {
		if r == ' ' || r == ',' || seen[r] {
			continue
		}
		seen[r] = true
		keys = append(keys, model.LocalityKey(city, region, string(r)))
	}
	return Keys(keys...), nil
}
