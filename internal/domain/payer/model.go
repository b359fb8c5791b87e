package payer

import (
	"strings"
	"time"
)

// PayerName is the closed set of payers that receive accumulation reports.
type PayerName string

const (
	Aetna    PayerName = "AETNA"
	Anthem   PayerName = "ANTHEM"
	BCBSMA   PayerName = "BCBS_MA"
	Cigna    PayerName = "CIGNA"
	Credence PayerName = "CREDENCE"
	ESI      PayerName = "ESI"
	Luminare PayerName = "LUMINARE"
	Premera  PayerName = "PREMERA"
	Surest   PayerName = "SUREST"
	UHC      PayerName = "UHC"
)

var knownPayers = map[PayerName]bool{
	Aetna: true, Anthem: true, BCBSMA: true, Cigna: true, Credence: true,
	ESI: true, Luminare: true, Premera: true, Surest: true, UHC: true,
}

// CarveOutPharmacyPayer administers pharmacy benefits for plans that are not
// RX integrated.
const CarveOutPharmacyPayer = ESI

// ParsePayerName matches s case-insensitively against the known payers.
func ParsePayerName(s string) (PayerName, bool) {
	n := PayerName(strings.ToUpper(strings.TrimSpace(s)))
	return n, knownPayers[n]
}

// ReportFormat is the outbound file dialect a payer accepts.
type ReportFormat string

const (
	ReportFormatCSV        ReportFormat = "csv"
	ReportFormatFixedWidth ReportFormat = "fixed_width"
)

var reportFormats = map[PayerName]ReportFormat{
	BCBSMA: ReportFormatCSV,
	ESI:    ReportFormatFixedWidth,
}

// ReportFormatFor returns the accumulation file format generated for name.
func ReportFormatFor(name PayerName) (ReportFormat, bool) {
	f, ok := reportFormats[name]
	return f, ok
}

// Payer maps to the payer_list table. Immutable reference data.
type Payer struct {
	ID        int64     `db:"id" json:"id"`
	PayerName string    `db:"payer_name" json:"payer_name"`
	PayerCode string    `db:"payer_code" json:"payer_code"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Name returns the payer's enum value and whether it is a known payer.
func (p *Payer) Name() (PayerName, bool) {
	return ParsePayerName(p.PayerName)
}

// IsAccumulationEnabled reports whether accumulation reports are produced
// for this payer.
func (p *Payer) IsAccumulationEnabled() bool {
	_, ok := p.Name()
	return ok
}
