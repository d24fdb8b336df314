package clip

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ParseExpression3 decodes a Cubism 4 exp3.json document.
func ParseExpression3(name string, data []byte) (*Expression, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not JSON", ErrInvalidMotion, name)
	}
	doc := gjson.ParseBytes(data)

	e := NewExpression(name)
	if v := doc.Get("FadeInTime"); v.Exists() && v.Float() >= 0 {
		e.fadeIn = seconds(v.Float())
	}
	if v := doc.Get("FadeOutTime"); v.Exists() && v.Float() >= 0 {
		e.fadeOut = seconds(v.Float())
	}

	for _, p := range doc.Get("Parameters").Array() {
		blend := BlendAdd
		switch p.Get("Blend").String() {
		case "Multiply":
			blend = BlendMultiply
		case "Overwrite":
			blend = BlendOverwrite
		}
		e.Params = append(e.Params, ExpressionParam{
			ID:    p.Get("Id").String(),
			Value: p.Get("Value").Float(),
			Blend: blend,
		})
	}
	return e, nil
}

// ParseExpression2 decodes a Cubism 2 exp.json document. Values are stored
// relative to each parameter's default: "add" subtracts it and "mult"
// divides by it.
func ParseExpression2(name string, data []byte) (*Expression, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: %s is not JSON", ErrInvalidMotion, name)
	}
	doc := gjson.ParseBytes(data)

	e := NewExpression(name)
	if v := doc.Get("fade_in"); v.Exists() && v.Float() >= 0 {
		e.fadeIn = time.Duration(v.Float() * float64(time.Millisecond))
	}
	if v := doc.Get("fade_out"); v.Exists() && v.Float() >= 0 {
		e.fadeOut = time.Duration(v.Float() * float64(time.Millisecond))
	}

	for _, p := range doc.Get("params").Array() {
		param := ExpressionParam{ID: p.Get("id").String(), Value: p.Get("val").Float()}
		switch strings.ToLower(p.Get("calc").String()) {
		case "mult":
			def := 1.0
			if d := p.Get("def"); d.Exists() && d.Float() != 0 {
				def = d.Float()
			}
			param.Blend = BlendMultiply
			param.Value /= def
		case "set":
			param.Blend = BlendOverwrite
		default:
			param.Value -= p.Get("def").Float()
		}
		e.Params = append(e.Params, param)
	}
	return e, nil
}
