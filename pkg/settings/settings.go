// Package settings parses Live2D model settings files.
//
// Cubism 2 models ship a model.json, Cubism 4 models a model3.json. Both
// are normalized into Settings; paths stay relative to the settings URL and
// are resolved with ResolveURL.
package settings

import (
	"errors"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
)

// ErrInvalidSettings is returned when a settings document cannot be used.
var ErrInvalidSettings = errors.New("settings: invalid model settings")

// MotionDefinition describes one motion of a group. Fades are nil when the
// file does not override the motion's own fade times.
type MotionDefinition struct {
	File    string         `json:"file"`
	FadeIn  *time.Duration `json:"fade_in,omitempty"`
	FadeOut *time.Duration `json:"fade_out,omitempty"`
	Sound   string         `json:"sound,omitempty"`
}

// ExpressionDefinition describes one named expression.
type ExpressionDefinition struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// HitArea maps a hit area name to a drawable id.
type HitArea struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Layout positions the model on the canvas. Zero fields are unset.
type Layout struct {
	CenterX float64 `json:"center_x,omitempty"`
	CenterY float64 `json:"center_y,omitempty"`
	Width   float64 `json:"width,omitempty"`
	Height  float64 `json:"height,omitempty"`
}

// Settings is the version-independent view of a model settings file.
type Settings struct {
	Version     int                           `json:"version"`
	URL         string                        `json:"url"`
	Name        string                        `json:"name"`
	Moc         string                        `json:"moc"`
	Textures    []string                      `json:"textures"`
	Physics     string                        `json:"physics,omitempty"`
	Pose        string                        `json:"pose,omitempty"`
	Motions     map[string][]MotionDefinition `json:"motions"`
	Expressions []ExpressionDefinition        `json:"expressions,omitempty"`
	HitAreas    []HitArea                     `json:"hit_areas,omitempty"`
	EyeBlinkIDs []string                      `json:"eye_blink_ids,omitempty"`
	LipSyncIDs  []string                      `json:"lip_sync_ids,omitempty"`
	Layout      Layout                        `json:"layout"`
}

// MotionGroups returns the group names in sorted order.
func (s *Settings) MotionGroups() []string {
	names := make([]string, 0, len(s.Motions))
	for name := range s.Motions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HitArea returns the hit area named name.
func (s *Settings) HitArea(name string) (HitArea, bool) {
	for _, h := range s.HitAreas {
		if h.Name == name {
			return h, true
		}
	}
	return HitArea{}, false
}

// ResolveURL resolves a file referenced by the settings against the
// settings URL. Absolute URLs are returned unchanged.
func (s *Settings) ResolveURL(file string) string {
	if file == "" {
		return ""
	}
	if u, err := url.Parse(file); err == nil && u.IsAbs() {
		return file
	}
	if s.URL == "" {
		return file
	}

	if base, err := url.Parse(s.URL); err == nil && base.IsAbs() {
		ref, err := url.Parse(file)
		if err == nil {
			return base.ResolveReference(ref).String()
		}
	}
	return path.Join(path.Dir(s.URL), file)
}

// nameFromURL derives a model name from the settings file name:
// "haru/haru.model3.json" becomes "haru".
func nameFromURL(u string) string {
	base := path.Base(u)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func msPtr(ms float64) *time.Duration {
	d := time.Duration(ms * float64(time.Millisecond))
	return &d
}

func secPtr(sec float64) *time.Duration {
	d := time.Duration(sec * float64(time.Second))
	return &d
}
