package clip

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const defaultMtnFps = 30

// ParseMtn decodes a Cubism 2 .mtn motion. The format is line based:
// "$key=value" settings and "PARAM_ID=v0,v1,..." frame values sampled at
// $fps. Lines starting with '#' and part/layout keys (containing ':') are
// ignored.
func ParseMtn(name string, data []byte) (*Motion, error) {
	fps := float64(defaultMtnFps)
	fadeIn, fadeOut := time.Second, time.Second
	type track struct {
		id     string
		values []float64
	}
	var tracks []track

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.HasPrefix(key, "$") {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrInvalidMotion, name, line, err)
			}
			switch key {
			case "$fps":
				if v > 0 {
					fps = v
				}
			case "$fadein":
				fadeIn = time.Duration(v * float64(time.Millisecond))
			case "$fadeout":
				fadeOut = time.Duration(v * float64(time.Millisecond))
			}
			continue
		}
		if strings.Contains(key, ":") {
			continue
		}

		fields := strings.Split(value, ",")
		values := make([]float64, 0, len(fields))
		for _, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s line %d: %v", ErrInvalidMotion, name, line, err)
			}
			values = append(values, v)
		}
		if len(values) > 0 {
			tracks = append(tracks, track{id: key, values: values})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMotion, name, err)
	}

	m := &Motion{Name: name, Fps: fps, fadeIn: fadeIn, fadeOut: fadeOut}
	frames := 0
	for _, tr := range tracks {
		frames = max(frames, len(tr.values))
		points := make([]Point, len(tr.values))
		for i, v := range tr.values {
			points[i] = Point{Time: float64(i) / fps, Value: v}
		}
		m.Curves = append(m.Curves, LinearCurve(TargetParameter, tr.id, points...))
	}
	m.Length = time.Duration(float64(frames) / fps * float64(time.Second))
	return m, nil
}
