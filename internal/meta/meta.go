// Package meta reads and writes the JSON sidecars (category.json, meta.json).
//
// Sidecars are decoded leniently: comments and trailing commas left by hand
// edits are accepted. Keys the store does not know about survive a rewrite.
package meta

import (
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
)

// Sidecar keys.
const (
	KeyName      = "name"
	KeyColor     = "color"
	KeyImageFile = "imageFile"
	KeyEncrypted = "encrypted"
)

// Doc is a decoded sidecar object.
type Doc map[string]json.RawMessage

// Parse decodes a sidecar. Empty input yields an empty Doc.
func Parse(data []byte) (Doc, error) {
	doc := Doc{}
	if len(data) == 0 {
		return doc, nil
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("meta: standardize: %w", err)
	}
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("meta: decode: %w", err)
	}
	if doc == nil {
		// literal null
		doc = Doc{}
	}
	return doc, nil
}

// String returns the string at key. ok is false when the key is absent or
// not a string.
func (d Doc) String(key string) (s string, ok bool) {
	raw, found := d[key]
	if !found {
		return "", false
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Bool returns the truthiness of key: absent, null, false, 0 and "" are false.
func (d Doc) Bool(key string) bool {
	raw, found := d[key]
	if !found {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

// SetString stores s at key and reports whether the stored value changed.
func (d Doc) SetString(key, s string) bool {
	if cur, ok := d.String(key); ok && cur == s {
		return false
	}
	raw, _ := json.Marshal(s)
	d[key] = raw
	return true
}

// SetBool stores b at key and reports whether the stored value changed.
// A missing key counts as a change even when b is false.
func (d Doc) SetBool(key string, b bool) bool {
	if raw, found := d[key]; found {
		var cur bool
		if json.Unmarshal(raw, &cur) == nil && cur == b {
			return false
		}
	}
	raw, _ := json.Marshal(b)
	d[key] = raw
	return true
}

// Encode renders the sidecar with two-space indentation.
func (d Doc) Encode() ([]byte, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("meta: encode: %w", err)
	}
	return append(out, '\n'), nil
}

// NewCategory builds a category sidecar.
func NewCategory(name, color string) Doc {
	d := Doc{}
	d.SetString(KeyName, name)
	d.SetString(KeyColor, color)
	return d
}

// NewNote builds a note sidecar.
func NewNote(name, imageFile string, encrypted bool) Doc {
	d := Doc{}
	d.SetString(KeyName, name)
	d.SetString(KeyImageFile, imageFile)
	d.SetBool(KeyEncrypted, encrypted)
	return d
}
