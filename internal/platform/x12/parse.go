package x12

import (
	"bytes"
	"fmt"
	"strings"
)

// isaLength is the fixed width of the ISA segment including its terminator.
const isaLength = 106

// Parse splits a raw interchange into segments. Delimiters are read from the
// fixed-width ISA segment, so any separator set is accepted.
func Parse(raw []byte) ([]Segment, Delimiters, error) {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return nil, Delimiters{}, fmt.Errorf("x12: interchange is empty")
	}
	if len(raw) < isaLength || !bytes.HasPrefix(raw, []byte("ISA")) {
		return nil, Delimiters{}, fmt.Errorf("x12: interchange must start with a %d-character ISA segment", isaLength)
	}

	d := Delimiters{
		Element:    raw[3],
		Repetition: raw[82],
		Component:  raw[104],
		Segment:    raw[105],
	}

	var segments []Segment
	for _, part := range strings.Split(string(raw), string(d.Segment)) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, string(d.Element))
		segments = append(segments, Segment{ID: fields[0], Elements: fields[1:]})
	}
	return segments, d, nil
}

// ClaimStatus is one STC status reported for a claim in a 277 response.
type ClaimStatus struct {
	TraceNumber    string // TRN02 of the claim loop
	CategoryCode   string // STC01-1
	StatusCode     string // STC01-2
	EffectiveDate  string // STC02
	FreeFormText   string // STC12
	RawStatusValue string // STC01 as received
}

// ParseClaimStatusResponse extracts claim statuses from a 277 interchange.
// Each STC is attributed to the most recent claim-level trace number.
func ParseClaimStatusResponse(raw []byte) ([]ClaimStatus, error) {
	segments, d, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	var (
		statuses []ClaimStatus
		trace    string
		seen277  bool
	)
	for _, seg := range segments {
		switch seg.ID {
		case "ST":
			if seg.Element(1) != TransactionSet277 {
				return nil, fmt.Errorf("x12: expected transaction set %s, got %q", TransactionSet277, seg.Element(1))
			}
			seen277 = true
		case "HL":
			trace = ""
		case "TRN":
			if seg.Element(1) == TraceTypeReferenced {
				trace = seg.Element(2)
			}
		case "STC":
			if trace == "" {
				continue
			}
			comps := seg.Components(1, d)
			st := ClaimStatus{
				TraceNumber:    trace,
				EffectiveDate:  seg.Element(2),
				FreeFormText:   seg.Element(12),
				RawStatusValue: seg.Element(1),
			}
			if len(comps) > 0 {
				st.CategoryCode = comps[0]
			}
			if len(comps) > 1 {
				st.StatusCode = comps[1]
			}
			statuses = append(statuses, st)
		}
	}
	if !seen277 {
		return nil, fmt.Errorf("x12: no %s transaction set found", TransactionSet277)
	}
	return statuses, nil
}
