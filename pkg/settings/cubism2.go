package settings

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// IsCubism2 reports whether src looks like a Cubism 2 model.json.
func IsCubism2(src []byte) bool {
	if !gjson.ValidBytes(src) {
		return false
	}
	return gjson.GetBytes(src, "model").Type == gjson.String
}

// ParseCubism2 parses a Cubism 2 model.json located at url.
func ParseCubism2(src []byte, url string) (*Settings, error) {
	if !IsCubism2(src) {
		return nil, fmt.Errorf("%w: missing \"model\"", ErrInvalidSettings)
	}
	doc := gjson.ParseBytes(src)

	s := &Settings{
		Version: 2,
		URL:     url,
		Name:    doc.Get("name").String(),
		Moc:     doc.Get("model").String(),
		Physics: doc.Get("physics").String(),
		Pose:    doc.Get("pose").String(),
		Motions: make(map[string][]MotionDefinition),
	}
	if s.Name == "" {
		s.Name = nameFromURL(url)
	}

	for _, t := range doc.Get("textures").Array() {
		s.Textures = append(s.Textures, t.String())
	}

	doc.Get("motions").ForEach(func(group, list gjson.Result) bool {
		defs := make([]MotionDefinition, 0, len(list.Array()))
		for _, m := range list.Array() {
			def := MotionDefinition{
				File:  m.Get("file").String(),
				Sound: m.Get("sound").String(),
			}
			if v := m.Get("fade_in"); v.Exists() {
				def.FadeIn = msPtr(v.Float())
			}
			if v := m.Get("fade_out"); v.Exists() {
				def.FadeOut = msPtr(v.Float())
			}
			defs = append(defs, def)
		}
		s.Motions[group.String()] = defs
		return true
	})

	for _, e := range doc.Get("expressions").Array() {
		s.Expressions = append(s.Expressions, ExpressionDefinition{
			Name: e.Get("name").String(),
			File: e.Get("file").String(),
		})
	}

	for _, h := range doc.Get("hit_areas").Array() {
		s.HitAreas = append(s.HitAreas, HitArea{
			Name: h.Get("name").String(),
			ID:   h.Get("id").String(),
		})
	}

	layout := doc.Get("layout")
	s.Layout = Layout{
		CenterX: layout.Get("center_x").Float(),
		CenterY: layout.Get("center_y").Float(),
		Width:   layout.Get("width").Float(),
		Height:  layout.Get("height").Float(),
	}

	return s, nil
}
