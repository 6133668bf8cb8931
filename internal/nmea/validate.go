package nmea

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Status classifies a raw line.
type Status int

const (
	StatusValid Status = iota
	StatusChecksumFail
	StatusMalformed
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusChecksumFail:
		return "checksum-fail"
	case StatusMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Reasons attached to non-valid results. They end up verbatim in the audit
// log as "INVALID:<reason>".
const (
	ReasonEmpty            = "empty"
	ReasonMissingDelimiter = "missing-delimiter"
	ReasonBadChecksumField = "bad-checksum-field"
	ReasonChecksumMismatch = "checksum-mismatch"
	ReasonBadAddress       = "bad-address"
)

// Payload is a validated sentence with framing and checksum removed.
type Payload struct {
	// Start is the start marker, '$' for ordinary sentences and '!' for
	// encapsulated ones.
	Start byte
	// Talker is the two-character source id, or "P" for proprietary sentences.
	Talker string
	// Type is the sentence formatter, e.g. "GGA".
	Type string
	// Fields holds the data fields following the address field.
	Fields []string
}

// Address returns the talker+type address field.
func (p Payload) Address() string {
	return p.Talker + p.Type
}

// Result is the outcome of Validate.
type Result struct {
	Status Status
	// Line is the trimmed input line.
	Line   string
	Reason string

	// Computed and Received are set for StatusChecksumFail.
	Computed byte
	Received byte

	// Payload is set for StatusValid.
	Payload Payload
}

func (r Result) Valid() bool {
	return r.Status == StatusValid
}

// Validate checks framing and checksum of a single line.
func Validate(line string) Result {
	line = strings.TrimSpace(line)
	res := Result{Line: line}
	if line == "" {
		return res.malformed(ReasonEmpty)
	}

	start := line[0]
	if start != '$' && start != '!' {
		return res.malformed(ReasonMissingDelimiter)
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return res.malformed(ReasonMissingDelimiter)
	}

	body := line[1:star]
	ck := line[star+1:]
	if len(ck) != 2 {
		return res.malformed(ReasonBadChecksumField)
	}
	want, err := hex.DecodeString(ck)
	if err != nil || len(want) != 1 {
		return res.malformed(ReasonBadChecksumField)
	}
	got := Checksum(body)
	if got != want[0] {
		res.Status = StatusChecksumFail
		res.Reason = ReasonChecksumMismatch
		res.Computed = got
		res.Received = want[0]
		return res
	}

	parts := strings.Split(body, ",")
	talker, typ, ok := splitAddress(parts[0])
	if !ok {
		return res.malformed(ReasonBadAddress)
	}

	res.Status = StatusValid
	res.Payload = Payload{Start: start, Talker: talker, Type: typ, Fields: parts[1:]}
	return res
}

func (r Result) malformed(reason string) Result {
	r.Status = StatusMalformed
	r.Reason = reason
	return r
}

// Checksum returns the XOR of every byte in payload, which must exclude the
// start marker and the '*' delimiter.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Format builds a well-formed sentence from an address ("GPGGA") and fields.
func Format(address string, fields ...string) string {
	payload := address
	if len(fields) > 0 {
		payload += "," + strings.Join(fields, ",")
	}
	return fmt.Sprintf("$%s*%02X", payload, Checksum(payload))
}

func splitAddress(addr string) (talker string, typ string, ok bool) {
	if len(addr) < 3 {
		return "", "", false
	}
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
			return "", "", false
		}
	}
	if addr[0] == 'P' {
		return "P", addr[1:], true
	}
	if len(addr) != 5 {
		return "", "", false
	}
	return addr[:2], addr[2:], true
}
