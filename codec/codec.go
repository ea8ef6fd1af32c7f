// Package codec turns raw request bytes into message.Request values and
// message.Response values back into bytes.
//
// Decoding may fail outward (MalformedRequest, TypeMismatch); encoding a
// response never does. When a result cannot be represented the codec encodes a
// fault instead, and when a fault cannot be represented it falls back to a
// generic one. Every request therefore terminates in well-formed output.
package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"mini-soap/contract"
	"mini-soap/message"
)

type CodecType byte

const (
	CodecTypeXML  CodecType = 0
	CodecTypeJSON CodecType = 1
)

type Codec interface {
	Type() CodecType
	// ContentType is the media type of encoded responses.
	ContentType() string

	// Server side.
	DecodeRequest(data []byte, c *contract.Contract) (*message.Request, error)
	Encode(resp *message.Response) []byte

	// Client side.
	EncodeRequest(req *message.Request) ([]byte, error)
	DecodeResponse(data []byte, returns message.Type) (*message.Response, error)
}

// GetCodec returns the codec for t. namespace qualifies operation elements in
// SOAP envelopes and is ignored by the JSON codec.
func GetCodec(codecType CodecType, namespace string) Codec {
	if codecType == CodecTypeJSON {
		return &JSONCodec{}
	}
	return &XMLCodec{Namespace: namespace}
}

// ForContentType picks the codec matching a request's Content-Type header.
// Anything that is not JSON is treated as a SOAP envelope.
func ForContentType(contentType string, namespace string) Codec {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return GetCodec(CodecTypeJSON, namespace)
	}
	return GetCodec(CodecTypeXML, namespace)
}

// declaredParams resolves the parameter each argument binds to. The zero
// descriptor stands for an unknown operation or a surplus argument.
func declaredParams(c *contract.Contract, operation string, names []string) []contract.ParameterDescriptor {
	out := make([]contract.ParameterDescriptor, len(names))
	if c == nil {
		return out
	}
	op, ok := c.Lookup(operation)
	if !ok {
		return out
	}
	for i, j := range op.Bind(names) {
		if j >= 0 {
			out[i] = op.Params[j]
		}
	}
	return out
}

// isRegistered reports whether c declares operation.
func isRegistered(c *contract.Contract, operation string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Lookup(operation)
	return ok
}

// label names an argument in error messages, preferring the declared name.
func label(p contract.ParameterDescriptor, wireName string, i int) string {
	if p.Name != "" {
		return p.Name
	}
	if wireName != "" {
		return wireName
	}
	return strconv.Itoa(i)
}

// parseScalar reads the lexical form of a scalar of kind k.
func parseScalar(k message.Kind, text, label string) (message.Value, error) {
	switch k {
	case message.KindString:
		return message.StringValue(text), nil
	case message.KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
		if err != nil {
			return message.Value{}, mismatch(label, "%q is not a valid int", text)
		}
		return message.IntValue(n), nil
	case message.KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return message.Value{}, mismatch(label, "%q is not a valid float", text)
		}
		return message.FloatValue(f), nil
	case message.KindBool:
		switch strings.TrimSpace(text) {
		case "true", "1":
			return message.BoolValue(true), nil
		case "false", "0":
			return message.BoolValue(false), nil
		}
		return message.Value{}, mismatch(label, "%q is not a valid bool", text)
	}
	return message.Value{}, mismatch(label, "unsupported type %s", k)
}

// formatScalar writes the XML Schema lexical form of a scalar.
func formatScalar(v message.Value) string {
	switch v.Kind() {
	case message.KindInt:
		return strconv.FormatInt(v.Int(), 10)
	case message.KindFloat:
		f := v.Float()
		switch {
		case math.IsInf(f, 1):
			return "INF"
		case math.IsInf(f, -1):
			return "-INF"
		case math.IsNaN(f):
			return "NaN"
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case message.KindBool:
		return strconv.FormatBool(v.Bool())
	default:
		return v.Str()
	}
}

func mismatch(label, format string, args ...any) error {
	return message.Errorf(message.TypeMismatch, "parameter %s: %s", label, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return message.Errorf(message.MalformedRequest, format, args...)
}

// xmlSafe reports whether s only holds characters allowed in XML 1.0 text.
func xmlSafe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !isXMLChar(r) {
			return false
		}
	}
	return true
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

// sanitizeXML drops whatever cannot appear in XML text.
func sanitizeXML(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if isXMLChar(r) {
			return r
		}
		return -1
	}, s)
}
