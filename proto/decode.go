package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StructuredMarker prefixes every JSON datagram sent by the hub.
const StructuredMarker = "*!"

var ErrMalformed = errors.New("malformed datagram")

// FramingError means a datagram matched neither framing the hub speaks.
type FramingError struct {
	Datagram []byte
}

func (e *FramingError) Error() string {
	sample := e.Datagram
	if len(sample) > 64 {
		sample = sample[:64]
	}
	return fmt.Sprintf("unrecognised datagram framing: %q", sample)
}

type Decoder interface {
	CanProcess(datagram []byte) bool
	Process(datagram []byte) (Response, error)
}

// StructuredDecoder handles `*!{json}` datagrams.
type StructuredDecoder struct{}

func (StructuredDecoder) CanProcess(datagram []byte) bool {
	return bytes.HasPrefix(datagram, []byte(StructuredMarker))
}

func (StructuredDecoder) Process(datagram []byte) (Response, error) {
	body := bytes.TrimPrefix(datagram, []byte(StructuredMarker))

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Response{}, fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	r := Response{Fields: fields}
	if id, ok := intValue(fields["trans"]); ok {
		r.ID, r.HasID = int(id), true
	}
	r.Error = stringValue(fields["error"])
	r.Fn = stringValue(fields["fn"])
	r.Serial = stringValue(fields["serial"])
	r.Mac = stringValue(fields["mac"])
	r.Model = stringValue(fields["prod"])
	r.Firmware = stringValue(fields["fw"])
	r.Type = stringValue(fields["type"])
	r.Msg = stringValue(fields["msg"])
	r.PairType = stringValue(fields["pairType"])

	if v, ok := intValue(fields["room"]); ok {
		r.Room = int(v)
	}
	if v, ok := intValue(fields["dev"]); ok {
		r.Device = int(v)
	}
	if v, ok := intValue(fields["param"]); ok {
		r.Param = int(v)
	}
	if v, ok := intValue(fields["uptime"]); ok {
		r.Uptime = v
	}
	return r, nil
}

// LineDecoder handles `{id},{body}\r\n` datagrams.
type LineDecoder struct{}

func (LineDecoder) CanProcess(datagram []byte) bool {
	return bytes.HasSuffix(datagram, []byte("\n")) || bytes.HasSuffix(datagram, []byte("\r"))
}

func (LineDecoder) Process(datagram []byte) (Response, error) {
	head, rest, _ := strings.Cut(string(datagram), ",")
	body := strings.NewReplacer("\r", "", "\n", "").Replace(rest)

	r := Response{Message: body}
	if id, ok := leadingInt(head); ok {
		r.ID, r.HasID = id, true
	}
	if strings.HasPrefix(body, "ERR") {
		r.Error = body
	}
	return r, nil
}

var (
	structured StructuredDecoder
	line       LineDecoder
)

// Decode picks the framing from the leading marker or the trailing
// terminator. Structured framing wins when both match.
func Decode(datagram []byte) (Response, error) {
	switch {
	case structured.CanProcess(datagram):
		return structured.Process(datagram)
	case line.CanProcess(datagram):
		return line.Process(datagram)
	}
	return Response{}, &FramingError{Datagram: datagram}
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i, true
		}
	case float64:
		return int64(t), true
	}
	return 0, false
}

// leadingInt parses an optionally signed run of digits, ignoring anything
// that follows it.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
