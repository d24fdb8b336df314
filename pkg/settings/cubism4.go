package settings

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// IsCubism4 reports whether src looks like a Cubism 3/4 model3.json.
func IsCubism4(src []byte) bool {
	if !gjson.ValidBytes(src) {
		return false
	}
	return gjson.GetBytes(src, "FileReferences.Moc").Type == gjson.String
}

// ParseCubism4 parses a model3.json located at url.
func ParseCubism4(src []byte, url string) (*Settings, error) {
	if !IsCubism4(src) {
		return nil, fmt.Errorf("%w: missing \"FileReferences.Moc\"", ErrInvalidSettings)
	}
	doc := gjson.ParseBytes(src)
	refs := doc.Get("FileReferences")

	s := &Settings{
		Version: 4,
		URL:     url,
		Name:    nameFromURL(url),
		Moc:     refs.Get("Moc").String(),
		Physics: refs.Get("Physics").String(),
		Pose:    refs.Get("Pose").String(),
		Motions: make(map[string][]MotionDefinition),
	}

	for _, t := range refs.Get("Textures").Array() {
		s.Textures = append(s.Textures, t.String())
	}

	refs.Get("Motions").ForEach(func(group, list gjson.Result) bool {
		defs := make([]MotionDefinition, 0, len(list.Array()))
		for _, m := range list.Array() {
			def := MotionDefinition{
				File:  m.Get("File").String(),
				Sound: m.Get("Sound").String(),
			}
			if v := m.Get("FadeInTime"); v.Exists() {
				def.FadeIn = secPtr(v.Float())
			}
			if v := m.Get("FadeOutTime"); v.Exists() {
				def.FadeOut = secPtr(v.Float())
			}
			defs = append(defs, def)
		}
		s.Motions[group.String()] = defs
		return true
	})

	for _, e := range refs.Get("Expressions").Array() {
		s.Expressions = append(s.Expressions, ExpressionDefinition{
			Name: e.Get("Name").String(),
			File: e.Get("File").String(),
		})
	}

	for _, h := range doc.Get("HitAreas").Array() {
		s.HitAreas = append(s.HitAreas, HitArea{
			Name: h.Get("Name").String(),
			ID:   h.Get("Id").String(),
		})
	}

	for _, g := range doc.Get("Groups").Array() {
		var ids []string
		for _, id := range g.Get("Ids").Array() {
			ids = append(ids, id.String())
		}
		switch g.Get("Name").String() {
		case "EyeBlink":
			s.EyeBlinkIDs = ids
		case "LipSync":
			s.LipSyncIDs = ids
		}
	}

	layout := doc.Get("Layout")
	s.Layout = Layout{
		CenterX: layout.Get("CenterX").Float(),
		CenterY: layout.Get("CenterY").Float(),
		Width:   layout.Get("Width").Float(),
		Height:  layout.Get("Height").Float(),
	}

	return s, nil
}
