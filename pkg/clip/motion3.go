package clip

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// ParseMotion3 decodes a Cubism 4 motion3.json document.
func ParseMotion3(name string, data []byte) (*Motion, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not JSON", ErrInvalidMotion, name)
	}
	doc := gjson.ParseBytes(data)
	meta := doc.Get("Meta")
	if !meta.Exists() {
		return nil, fmt.Errorf("%w: %s has no Meta", ErrInvalidMotion, name)
	}

	m := &Motion{
		Name:    name,
		Length:  seconds(meta.Get("Duration").Float()),
		Loop:    meta.Get("Loop").Bool(),
		Fps:     meta.Get("Fps").Float(),
		fadeIn:  time.Second,
		fadeOut: time.Second,
	}
	if v := meta.Get("FadeInTime"); v.Exists() && v.Float() >= 0 {
		m.fadeIn = seconds(v.Float())
	}
	if v := meta.Get("FadeOutTime"); v.Exists() && v.Float() >= 0 {
		m.fadeOut = seconds(v.Float())
	}

	for i, cj := range doc.Get("Curves").Array() {
		c := NewCurve(Target(cj.Get("Target").String()), cj.Get("Id").String())
		if v := cj.Get("FadeInTime"); v.Exists() {
			c.FadeIn = v.Float()
		}
		if v := cj.Get("FadeOutTime"); v.Exists() {
			c.FadeOut = v.Float()
		}

		segs, err := decodeSegments(cj.Get("Segments").Array())
		if err != nil {
			return nil, fmt.Errorf("%w: %s curve %d (%s): %v", ErrInvalidMotion, name, i, c.ID, err)
		}
		c.Segments = segs
		m.Curves = append(m.Curves, c)
	}
	return m, nil
}

// decodeSegments reads the flat segment encoding: an initial point
// followed by (kind, points...) groups.
func decodeSegments(raw []gjson.Result) ([]Segment, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("need an initial point, got %d values", len(raw))
	}
	last := Point{Time: raw[0].Float(), Value: raw[1].Float()}

	var segs []Segment
	for i := 2; i < len(raw); {
		kind := SegmentKind(raw[i].Int())
		n := 1
		if kind == SegmentBezier {
			n = 3
		}
		if kind < SegmentLinear || kind > SegmentInverseStepped {
			return nil, fmt.Errorf("unknown segment type %d at %d", kind, i)
		}
		if i+1+2*n > len(raw) {
			return nil, fmt.Errorf("truncated segment at %d", i)
		}

		s := Segment{Kind: kind}
		s.P[0] = last
		for k := 0; k < n; k++ {
			s.P[k+1] = Point{Time: raw[i+1+2*k].Float(), Value: raw[i+2+2*k].Float()}
		}
		segs = append(segs, s)
		last = s.end()
		i += 1 + 2*n
	}

	if len(segs) == 0 {
		segs = append(segs, Segment{Kind: SegmentStepped, P: [4]Point{last, last}})
	}
	return segs, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
