package x12

import (
	"strconv"
	"time"
)

// InterchangeHeader is the ISA segment. Identifiers are stored unpadded and
// padded to their fixed widths on encoding.
type InterchangeHeader struct {
	AuthorizationQualifier string `json:"authorization_information_qualifier"`
	SecurityQualifier      string `json:"security_information_qualifier"`
	SenderQualifier        string `json:"interchange_id_qualifier_sender"`
	SenderID               string `json:"interchange_sender_id"`
	ReceiverQualifier      string `json:"interchange_id_qualifier_receiver"`
	ReceiverID             string `json:"interchange_receiver_id"`
	Date                   string `json:"interchange_date"`
	Time                   string `json:"interchange_time"`
	VersionNumber          string `json:"interchange_control_version_number"`
	ControlNumber          int    `json:"interchange_control_number"`
	AcknowledgmentRequired string `json:"acknowledgment_requested"`
	UsageIndicator         string `json:"interchange_usage_indicator"`
}

func (h InterchangeHeader) segment(d Delimiters) Segment {
	return newSegment("ISA",
		h.AuthorizationQualifier, fixed("", 10),
		h.SecurityQualifier, fixed("", 10),
		h.SenderQualifier, fixed(h.SenderID, 15),
		h.ReceiverQualifier, fixed(h.ReceiverID, 15),
		h.Date, h.Time,
		string(d.Repetition),
		h.VersionNumber,
		zeroPadded(h.ControlNumber, 9),
		h.AcknowledgmentRequired,
		h.UsageIndicator,
		string(d.Component),
	)
}

type FunctionalGroupHeader struct {
	FunctionalIDCode string `json:"functional_identifier_code"`
	SenderCode       string `json:"application_senders_code"`
	ReceiverCode     string `json:"application_receivers_code"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	ControlNumber    int    `json:"group_control_number"`
	AgencyCode       string `json:"responsible_agency_code"`
	Version          string `json:"version_release_industry_identifier_code"`
}

func (g FunctionalGroupHeader) segment() Segment {
	return newSegment("GS", g.FunctionalIDCode, g.SenderCode, g.ReceiverCode,
		g.Date, g.Time, strconv.Itoa(g.ControlNumber), g.AgencyCode, g.Version)
}

type TransactionSetHeader struct {
	TransactionSetID        string `json:"transaction_set_identifier_code"`
	ControlNumber           string `json:"transaction_set_control_number"`
	ImplementationReference string `json:"implementation_convention_reference"`
}

func (s TransactionSetHeader) segment() Segment {
	return newSegment("ST", s.TransactionSetID, s.ControlNumber, s.ImplementationReference)
}

type BeginningOfHierarchicalTransaction struct {
	StructureCode string `json:"hierarchical_structure_code"`
	PurposeCode   string `json:"transaction_set_purpose_code"`
	ReferenceID   string `json:"reference_identification"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

func (b BeginningOfHierarchicalTransaction) segment() Segment {
	return newSegment("BHT", b.StructureCode, b.PurposeCode, b.ReferenceID, b.Date, b.Time)
}

type HierarchicalLevel struct {
	IDNumber       string `json:"hierarchical_id_number"`
	ParentIDNumber string `json:"hierarchical_parent_id_number,omitempty"`
	LevelCode      string `json:"hierarchical_level_code"`
	ChildCode      string `json:"hierarchical_child_code"`
}

func (h HierarchicalLevel) segment() Segment {
	return newSegment("HL", h.IDNumber, h.ParentIDNumber, h.LevelCode, h.ChildCode)
}

type EntityName struct {
	EntityIDCode            string `json:"entity_identifier_code"`
	EntityTypeQualifier     string `json:"entity_type_qualifier"`
	LastOrOrganizationName  string `json:"name_last_or_organization_name"`
	FirstName               string `json:"name_first,omitempty"`
	IdentificationQualifier string `json:"identification_code_qualifier"`
	IdentificationCode      string `json:"identification_code"`
}

func (n EntityName) segment() Segment {
	return newSegment("NM1", n.EntityIDCode, n.EntityTypeQualifier, n.LastOrOrganizationName,
		n.FirstName, "", "", "", n.IdentificationQualifier, n.IdentificationCode)
}

type Demographic struct {
	DateFormat  string `json:"date_time_period_format_qualifier"`
	DateOfBirth string `json:"date_time_period"`
	Gender      string `json:"gender_code,omitempty"`
}

func (m Demographic) segment() Segment {
	return newSegment("DMG", m.DateFormat, m.DateOfBirth, m.Gender)
}

type Trace struct {
	TraceTypeCode string `json:"trace_type_code"`
	TraceNumber   string `json:"reference_identification"`
}

func (t Trace) segment() Segment {
	return newSegment("TRN", t.TraceTypeCode, t.TraceNumber)
}

type MonetaryAmount struct {
	Qualifier string `json:"amount_qualifier_code"`
	Amount    string `json:"monetary_amount"`
}

func (a MonetaryAmount) segment() Segment {
	return newSegment("AMT", a.Qualifier, a.Amount)
}

type DatePeriod struct {
	Qualifier string `json:"date_time_qualifier"`
	Format    string `json:"date_time_period_format_qualifier"`
	Period    string `json:"date_time_period"`
}

func (p DatePeriod) segment() Segment {
	return newSegment("DTP", p.Qualifier, p.Format, p.Period)
}

type Loop2100A struct {
	PayerName EntityName `json:"payer_name"`
}

type Loop2000A struct {
	HierarchicalLevel HierarchicalLevel `json:"hierarchical_level"`
	Loop2100A         Loop2100A         `json:"loop_2100A"`
}

type Loop2100B struct {
	InformationReceiverName EntityName `json:"information_receiver_name"`
}

type Loop2000B struct {
	HierarchicalLevel HierarchicalLevel `json:"hierarchical_level"`
	Loop2100B         Loop2100B         `json:"loop_2100B"`
}

type Loop2100C struct {
	ProviderName EntityName `json:"provider_name"`
}

type Loop2000C struct {
	HierarchicalLevel HierarchicalLevel `json:"hierarchical_level"`
	Loop2100C         Loop2100C         `json:"loop_2100C"`
}

// ClaimStatusTracking is the 2200D/2200E claim loop.
type ClaimStatusTracking struct {
	Trace             Trace           `json:"claim_status_tracking_number"`
	ClaimChargeAmount *MonetaryAmount `json:"claim_submitted_charges,omitempty"`
	ServiceDate       DatePeriod      `json:"claim_service_date"`
}

func (c ClaimStatusTracking) segments() []Segment {
	segs := []Segment{c.Trace.segment()}
	if c.ClaimChargeAmount != nil {
		segs = append(segs, c.ClaimChargeAmount.segment())
	}
	return append(segs, c.ServiceDate.segment())
}

type Loop2100D struct {
	SubscriberName EntityName `json:"subscriber_name"`
}

type Loop2100E struct {
	PatientName EntityName `json:"patient_name"`
}

// Loop2000E is the dependent level, present when the patient is not the
// subscriber.
type Loop2000E struct {
	HierarchicalLevel HierarchicalLevel   `json:"hierarchical_level"`
	Demographic       Demographic         `json:"dependent_demographic_information"`
	Loop2100E         Loop2100E           `json:"loop_2100E"`
	Loop2200E         ClaimStatusTracking `json:"loop_2200E"`
}

// Loop2000D is the subscriber level. The claim loop lives here when the
// subscriber is the patient and under Loop2000E otherwise.
type Loop2000D struct {
	HierarchicalLevel HierarchicalLevel    `json:"hierarchical_level"`
	Demographic       *Demographic         `json:"subscriber_demographic_information,omitempty"`
	Loop2100D         Loop2100D            `json:"loop_2100D"`
	Loop2200D         *ClaimStatusTracking `json:"loop_2200D,omitempty"`
	Loop2000E         *Loop2000E           `json:"loop_2000E,omitempty"`
}

type TransactionSetTrailer struct {
	SegmentCount  int    `json:"transaction_segment_count"`
	ControlNumber string `json:"transaction_set_control_number"`
}

type FunctionalGroupTrailer struct {
	NumberOfTransactionSets int `json:"number_of_transaction_sets_included"`
	ControlNumber           int `json:"group_control_number"`
}

type InterchangeTrailer struct {
	NumberOfFunctionalGroups int `json:"number_of_included_functional_groups"`
	ControlNumber            int `json:"interchange_control_number"`
}

// ClaimStatusRequest is a complete 276 interchange holding one transaction set.
type ClaimStatusRequest struct {
	InterchangeHeader     InterchangeHeader                  `json:"interchange_control_header"`
	FunctionalGroupHeader FunctionalGroupHeader              `json:"functional_group_header"`
	TransactionSetHeader  TransactionSetHeader               `json:"transaction_set_header"`
	BeginningOfTxn        BeginningOfHierarchicalTransaction `json:"beginning_of_hierarchical_transaction"`
	Loop2000A             Loop2000A                          `json:"loop_2000A"`
	Loop2000B             Loop2000B                          `json:"loop_2000B"`
	Loop2000C             Loop2000C                          `json:"loop_2000C"`
	Loop2000D             []Loop2000D                        `json:"loop_2000D"`
	TransactionSetTrailer TransactionSetTrailer              `json:"transaction_set_trailer"`
	GroupTrailer          FunctionalGroupTrailer             `json:"functional_group_trailer"`
	InterchangeTrailer    InterchangeTrailer                 `json:"interchange_control_trailer"`
}

// transactionSegments returns ST through the last detail segment, without SE.
func (r *ClaimStatusRequest) transactionSegments() []Segment {
	segs := []Segment{
		r.TransactionSetHeader.segment(),
		r.BeginningOfTxn.segment(),
		r.Loop2000A.HierarchicalLevel.segment(),
		r.Loop2000A.Loop2100A.PayerName.segment(),
		r.Loop2000B.HierarchicalLevel.segment(),
		r.Loop2000B.Loop2100B.InformationReceiverName.segment(),
		r.Loop2000C.HierarchicalLevel.segment(),
		r.Loop2000C.Loop2100C.ProviderName.segment(),
	}
	for _, d := range r.Loop2000D {
		segs = append(segs, d.HierarchicalLevel.segment())
		if d.Demographic != nil {
			segs = append(segs, d.Demographic.segment())
		}
		segs = append(segs, d.Loop2100D.SubscriberName.segment())
		if d.Loop2200D != nil {
			segs = append(segs, d.Loop2200D.segments()...)
		}
		if e := d.Loop2000E; e != nil {
			segs = append(segs, e.HierarchicalLevel.segment(), e.Demographic.segment(), e.Loop2100E.PatientName.segment())
			segs = append(segs, e.Loop2200E.segments()...)
		}
	}
	return segs
}

// FindNumberOfSegments counts the transaction set segments from ST up to,
// but not including, the SE trailer.
func FindNumberOfSegments(r *ClaimStatusRequest) int {
	return len(r.transactionSegments())
}

// Segments returns the full interchange in wire order.
func (r *ClaimStatusRequest) Segments(d Delimiters) []Segment {
	segs := []Segment{r.InterchangeHeader.segment(d), r.FunctionalGroupHeader.segment()}
	segs = append(segs, r.transactionSegments()...)
	return append(segs,
		newSegment("SE", strconv.Itoa(r.TransactionSetTrailer.SegmentCount), r.TransactionSetTrailer.ControlNumber),
		newSegment("GE", strconv.Itoa(r.GroupTrailer.NumberOfTransactionSets), strconv.Itoa(r.GroupTrailer.ControlNumber)),
		newSegment("IEA", strconv.Itoa(r.InterchangeTrailer.NumberOfFunctionalGroups), zeroPadded(r.InterchangeTrailer.ControlNumber, 9)),
	)
}

// Party identifies the payer, submitter or provider of a request.
type Party struct {
	Name string
	ID   string
}

type Person struct {
	FirstName   string
	LastName    string
	MemberID    string
	DateOfBirth time.Time
	Gender      string
}

// ClaimInquiry is one claim whose status is requested.
type ClaimInquiry struct {
	Subscriber   Person
	Patient      *Person // nil when the subscriber is the patient
	TraceNumber  string
	ChargeAmount string
	ServiceFrom  time.Time
	ServiceTo    time.Time
}

// Envelope carries the interchange identity and timing of a request.
type Envelope struct {
	SenderID       string
	ReceiverID     string
	ControlNumber  int
	UsageIndicator string
	CreatedAt      time.Time
	ReferenceID    string
}

// firstClaimHL is the hierarchical id of the first subscriber loop; ids 1-3
// belong to the payer, receiver and provider levels.
const firstClaimHL = 4

// NewClaimStatusRequest assembles a 276 document. Hierarchical ids are
// assigned in loop order and the SE segment count is computed last.
func NewClaimStatusRequest(env Envelope, payer, submitter, provider Party, claims []ClaimInquiry) *ClaimStatusRequest {
	ts := env.CreatedAt.UTC()
	const stControl = "0001"

	r := &ClaimStatusRequest{
		InterchangeHeader: InterchangeHeader{
			AuthorizationQualifier: AuthorizationNone,
			SecurityQualifier:      AuthorizationNone,
			SenderQualifier:        QualifierMutuallyDef,
			SenderID:               env.SenderID,
			ReceiverQualifier:      QualifierMutuallyDef,
			ReceiverID:             env.ReceiverID,
			Date:                   ts.Format("060102"),
			Time:                   ts.Format("1504"),
			VersionNumber:          Version5010,
			ControlNumber:          env.ControlNumber,
			AcknowledgmentRequired: AcknowledgementNone,
			UsageIndicator:         env.UsageIndicator,
		},
		FunctionalGroupHeader: FunctionalGroupHeader{
			FunctionalIDCode: FunctionalIDClaimStatus,
			SenderCode:       env.SenderID,
			ReceiverCode:     env.ReceiverID,
			Date:             ts.Format("20060102"),
			Time:             ts.Format("1504"),
			ControlNumber:    env.ControlNumber,
			AgencyCode:       ResponsibleAgencyX12,
			Version:          ImplementationRef276,
		},
		TransactionSetHeader: TransactionSetHeader{
			TransactionSetID:        TransactionSet276,
			ControlNumber:           stControl,
			ImplementationReference: ImplementationRef276,
		},
		BeginningOfTxn: BeginningOfHierarchicalTransaction{
			StructureCode: HierarchicalStructure,
			PurposeCode:   PurposeOriginal,
			ReferenceID:   env.ReferenceID,
			Date:          ts.Format("20060102"),
			Time:          ts.Format("1504"),
		},
		Loop2000A: Loop2000A{
			HierarchicalLevel: HierarchicalLevel{IDNumber: "1", LevelCode: LevelInformationSource, ChildCode: "1"},
			Loop2100A: Loop2100A{PayerName: EntityName{
				EntityIDCode: EntityPayer, EntityTypeQualifier: EntityTypeNonPerson,
				LastOrOrganizationName: payer.Name, IdentificationQualifier: QualifierPayerID, IdentificationCode: payer.ID,
			}},
		},
		Loop2000B: Loop2000B{
			HierarchicalLevel: HierarchicalLevel{IDNumber: "2", ParentIDNumber: "1", LevelCode: LevelInformationReceiver, ChildCode: "1"},
			Loop2100B: Loop2100B{InformationReceiverName: EntityName{
				EntityIDCode: EntitySubmitter, EntityTypeQualifier: EntityTypeNonPerson,
				LastOrOrganizationName: submitter.Name, IdentificationQualifier: QualifierETIN, IdentificationCode: submitter.ID,
			}},
		},
		Loop2000C: Loop2000C{
			HierarchicalLevel: HierarchicalLevel{IDNumber: "3", ParentIDNumber: "2", LevelCode: LevelServiceProvider, ChildCode: "1"},
			Loop2100C: Loop2100C{ProviderName: EntityName{
				EntityIDCode: EntityProvider, EntityTypeQualifier: EntityTypeNonPerson,
				LastOrOrganizationName: provider.Name, IdentificationQualifier: QualifierNPI, IdentificationCode: provider.ID,
			}},
		},
		Loop2000D: make([]Loop2000D, 0, len(claims)),
	}

	hl := firstClaimHL
	for _, c := range claims {
		subscriberHL := strconv.Itoa(hl)
		hl++
		d := Loop2000D{
			HierarchicalLevel: HierarchicalLevel{IDNumber: subscriberHL, ParentIDNumber: "3", LevelCode: LevelSubscriber, ChildCode: "0"},
			Loop2100D:         Loop2100D{SubscriberName: personName(EntityInsuredSubscriber, c.Subscriber)},
		}
		tracking := claimTracking(c)
		if c.Patient == nil {
			d.Demographic = demographic(c.Subscriber)
			d.Loop2200D = &tracking
		} else {
			d.HierarchicalLevel.ChildCode = "1"
			d.Loop2000E = &Loop2000E{
				HierarchicalLevel: HierarchicalLevel{IDNumber: strconv.Itoa(hl), ParentIDNumber: subscriberHL, LevelCode: LevelDependent, ChildCode: "0"},
				Demographic:       *demographic(*c.Patient),
				Loop2100E:         Loop2100E{PatientName: personName(EntityPatient, *c.Patient)},
				Loop2200E:         tracking,
			}
			hl++
		}
		r.Loop2000D = append(r.Loop2000D, d)
	}

	r.TransactionSetTrailer = TransactionSetTrailer{
		SegmentCount:  FindNumberOfSegments(r) + 1,
		ControlNumber: stControl,
	}
	r.GroupTrailer = FunctionalGroupTrailer{NumberOfTransactionSets: 1, ControlNumber: env.ControlNumber}
	r.InterchangeTrailer = InterchangeTrailer{NumberOfFunctionalGroups: 1, ControlNumber: env.ControlNumber}
	return r
}

func personName(entity string, p Person) EntityName {
	n := EntityName{
		EntityIDCode:           entity,
		EntityTypeQualifier:    EntityTypePerson,
		LastOrOrganizationName: p.LastName,
		FirstName:              p.FirstName,
	}
	// 2100E carries no identifier; the patient is located through the subscriber.
	if entity == EntityInsuredSubscriber {
		n.IdentificationQualifier = QualifierMemberID
		n.IdentificationCode = p.MemberID
	}
	return n
}

func demographic(p Person) *Demographic {
	return &Demographic{DateFormat: DateFormatCCYYMMDD, DateOfBirth: p.DateOfBirth.Format("20060102"), Gender: p.Gender}
}

func claimTracking(c ClaimInquiry) ClaimStatusTracking {
	t := ClaimStatusTracking{
		Trace: Trace{TraceTypeCode: TraceTypeCurrent, TraceNumber: c.TraceNumber},
		ServiceDate: DatePeriod{
			Qualifier: DateQualifierService,
			Format:    DateFormatRange,
			Period:    c.ServiceFrom.Format("20060102") + "-" + serviceTo(c).Format("20060102"),
		},
	}
	if c.ChargeAmount != "" {
		t.ClaimChargeAmount = &MonetaryAmount{Qualifier: AmountClaimSubmitted, Amount: c.ChargeAmount}
	}
	return t
}

func serviceTo(c ClaimInquiry) time.Time {
	if c.ServiceTo.IsZero() {
		return c.ServiceFrom
	}
	return c.ServiceTo
}
