package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/xplat"
	"github.com/wippyai/xplat/errors"
)

// Format identifies a descriptor file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
	// FormatWIT is the JSON form of a resolved WIT package, as printed by
	// "wasm-tools component wit --json". It always yields a wasm stream.
	FormatWIT Format = "wit"
)

// FormatFromPath infers the encoding from a file extension.
func FormatFromPath(path string) (Format, bool) {
	if strings.HasSuffix(strings.ToLower(path), ".wit.json") {
		return FormatWIT, true
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, true
	case ".cbor":
		return FormatCBOR, true
	}
	return "", false
}

// LoadFile reads and validates a descriptor stream from disk.
func LoadFile(path string) (*Stream, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return nil, errors.Load(fmt.Sprintf("unknown descriptor format for %q", path), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(fmt.Sprintf("read %s", path), err)
	}
	return Decode(bytes.NewReader(data), format)
}

// Decode reads and validates a descriptor stream.
func Decode(r io.Reader, format Format) (*Stream, error) {
	var s Stream
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, errors.Load("decode json stream", err)
		}
	case FormatCBOR:
		if err := cbor.NewDecoder(r).Decode(&s); err != nil {
			return nil, errors.Load("decode cbor stream", err)
		}
	case FormatWIT:
		ws, err := decodeWIT(r)
		if err != nil {
			return nil, err
		}
		s = *ws
	default:
		return nil, errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("descriptor format %q", format))
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Encode writes a descriptor stream.
func Encode(w io.Writer, s *Stream, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatCBOR:
		return cbor.NewEncoder(w).Encode(s)
	}
	return errors.Unsupported(errors.PhaseLoad, fmt.Sprintf("descriptor format %q", format))
}

// Validate checks the structural contract of a stream.
func Validate(s *Stream) error {
	p, ok := xplat.ParsePlatform(string(s.Platform))
	if !ok {
		return errors.InvalidData(errors.PhaseLoad, nil, fmt.Sprintf("invalid platform %q", s.Platform))
	}
	s.Platform = p

	for i := range s.Types {
		td := &s.Types[i]
		if strings.TrimSpace(td.NativeName) == "" {
			return errors.InvalidData(errors.PhaseLoad, []string{fmt.Sprintf("types[%d]", i)}, "native_name is required")
		}
		for j := range td.Members {
			m := &td.Members[j]
			path := []string{td.NativeName, fmt.Sprintf("members[%d]", j)}
			if !m.Kind.Valid() {
				return errors.InvalidData(errors.PhaseLoad, path, fmt.Sprintf("invalid member kind %q", m.Kind))
			}
			if m.Name == "" && m.Kind != Constructor {
				return errors.InvalidData(errors.PhaseLoad, path, "member name is required")
			}
			if (m.Kind == Property || m.Kind == Event) && m.Type == nil {
				return errors.InvalidData(errors.PhaseLoad, path, fmt.Sprintf("%s %q has no type", m.Kind, m.Name))
			}
			if m.Kind == Property && !m.Get && !m.Set {
				m.Get = true
			}
			for k := range m.Params {
				if err := validateShape(&m.Params[k], path); err != nil {
					return err
				}
			}
			for _, sh := range []*Shape{m.Returns, m.Type} {
				if sh == nil {
					continue
				}
				if err := validateShape(sh, path); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func validateShape(s *Shape, path []string) error {
	switch s.Kind {
	case ShapeVoid:
		return nil
	case ShapePrimitive:
		if s.Name == "" {
			return errors.InvalidData(errors.PhaseLoad, path, "primitive shape without name")
		}
		s.Name = CanonicalPrimitive(s.Name)
		return nil
	case ShapeReference:
		if s.Name == "" {
			return errors.InvalidData(errors.PhaseLoad, path, "reference shape without target")
		}
		return nil
	case ShapeCollection:
		if s.Elem == nil {
			return errors.InvalidData(errors.PhaseLoad, path, "collection shape without element")
		}
		return validateShape(s.Elem, path)
	}
	return errors.InvalidData(errors.PhaseLoad, path, fmt.Sprintf("invalid shape kind %q", s.Kind))
}
