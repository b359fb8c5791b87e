// Package x12 builds and parses ANSI X12 005010 documents: the 276 health
// care claim status request and the 277 claim status response.
package x12

import (
	"fmt"
	"strings"
)

// Implementation and code list values used by the 276/277 transaction sets.
const (
	Version5010             = "00501"
	ImplementationRef276    = "005010X212"
	TransactionSet276       = "276"
	TransactionSet277       = "277"
	FunctionalIDClaimStatus = "HR"
	ResponsibleAgencyX12    = "X"

	HierarchicalStructure = "0010"
	PurposeOriginal       = "13"

	LevelInformationSource   = "20"
	LevelInformationReceiver = "21"
	LevelServiceProvider     = "19"
	LevelSubscriber          = "22"
	LevelDependent           = "23"

	EntityPayer             = "PR"
	EntitySubmitter         = "41"
	EntityProvider          = "1P"
	EntityInsuredSubscriber = "IL"
	EntityPatient           = "QC"

	EntityTypePerson     = "1"
	EntityTypeNonPerson  = "2"
	QualifierPayerID     = "PI"
	QualifierETIN        = "46"
	QualifierNPI         = "XX"
	QualifierMemberID    = "MI"
	QualifierMutuallyDef = "ZZ"
	DateFormatCCYYMMDD   = "D8"
	DateFormatRange      = "RD8"
	DateQualifierService = "472"
	AmountClaimSubmitted = "T3"
	TraceTypeCurrent     = "1"
	TraceTypeReferenced  = "2"
	AuthorizationNone    = "00"
	AcknowledgementNone  = "0"
	UsageIndicatorTest   = "T"
	UsageIndicatorProd   = "P"
)

// Segment is one X12 segment: its identifier followed by element values.
// Composite elements carry their components already joined.
type Segment struct {
	ID       string
	Elements []string
}

// Delimiters are the separator characters announced by the ISA segment.
type Delimiters struct {
	Element    byte
	Component  byte
	Repetition byte
	Segment    byte
}

var DefaultDelimiters = Delimiters{Element: '*', Component: ':', Repetition: '^', Segment: '~'}

// Element returns the 1-based element n, or "" when absent.
func (s Segment) Element(n int) string {
	if n < 1 || n > len(s.Elements) {
		return ""
	}
	return s.Elements[n-1]
}

// Components splits element n on the component separator.
func (s Segment) Components(n int, d Delimiters) []string {
	v := s.Element(n)
	if v == "" {
		return nil
	}
	return strings.Split(v, string(d.Component))
}

// Encode renders the segment without its terminator. Trailing empty
// elements are dropped.
func (s Segment) Encode(d Delimiters) string {
	last := len(s.Elements)
	for last > 0 && s.Elements[last-1] == "" {
		last--
	}
	var b strings.Builder
	b.WriteString(s.ID)
	for _, e := range s.Elements[:last] {
		b.WriteByte(d.Element)
		b.WriteString(e)
	}
	return b.String()
}

// Serialize writes segments one per line, each followed by the segment
// terminator.
func Serialize(segments []Segment, d Delimiters) []byte {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Encode(d))
		b.WriteByte(d.Segment)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// fixed pads or truncates s to exactly n characters.
func fixed(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func zeroPadded(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}

func newSegment(id string, elements ...string) Segment {
	return Segment{ID: id, Elements: elements}
}
