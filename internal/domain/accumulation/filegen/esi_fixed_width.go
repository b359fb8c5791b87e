package filegen

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/maven/accumulator/internal/domain/accumulation"
	"github.com/maven/accumulator/internal/domain/payer"
	"github.com/maven/accumulator/internal/platform/blobstore"
)

// ESIRecordLength is the width of every ESI accumulation record.
const ESIRecordLength = 200

// ESIGenerator renders the Express Scripts medical accumulation file: one
// HD header, one DT detail per row and one TR trailer, newline terminated.
type ESIGenerator struct {
	collector
	cfg      Config
	fileName string
	now      time.Time
}

func NewESIGenerator(p *payer.Payer, src Sources, scope Scope, cfg Config, now time.Time, logger zerolog.Logger) *ESIGenerator {
	now = now.UTC()
	return &ESIGenerator{
		collector: newCollector(src, p, scope, accumulation.StatusPaid, true, logger, "esi_fixed_width"),
		cfg:       cfg,
		fileName:  fmt.Sprintf("MAVN_MED_ACCUM_%s.txt", now.Format("20060102_150405")),
		now:       now,
	}
}

func (g *ESIGenerator) FileName() string    { return g.fileName }
func (g *ESIGenerator) ContentType() string { return blobstore.ContentTypeText }

func (g *ESIGenerator) Generate(ctx context.Context) (*Result, error) {
	rows, skipped, err := g.collect(ctx)
	if err != nil {
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: err}
	}

	res := &Result{
		PayerID:     g.payer.ID,
		FileName:    g.fileName,
		ContentType: g.ContentType(),
		Content:     &bytes.Buffer{},
		Rows:        rows,
		Skipped:     skipped,
		GeneratedAt: g.now,
	}
	if len(rows) == 0 {
		return res, nil
	}

	lines := []string{g.buildHeader()}
	var totalDeductible, totalOOP int64
	for i := range rows {
		line, err := g.buildDetail(&rows[i])
		if err != nil {
			return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName,
				Err: fmt.Errorf("row %s: %w", rows[i].UniqueID, err)}
		}
		lines = append(lines, line)
		totalDeductible += sum(rows[i].Deductible)
		totalOOP += sum(rows[i].OOPApplied)
	}
	trailer, err := g.buildTrailer(len(rows), totalDeductible, totalOOP)
	if err != nil {
		return nil, &GenerationError{PayerName: g.payer.PayerName, FileName: g.fileName, Err: fmt.Errorf("trailer: %w", err)}
	}
	lines = append(lines, trailer)

	for _, l := range lines {
		res.Content.WriteString(l)
		res.Content.WriteByte('\n')
	}

	g.logger.Info().
		Str("file_name", g.fileName).
		Int("rows", len(rows)).
		Int("skipped", len(skipped)).
		Msg("accumulation file generated")
	return res, nil
}

// HD, positions 1-200.
func (g *ESIGenerator) buildHeader() string {
	b := newBuf(ESIRecordLength)
	b.put(1, 2, "HD")
	b.put(3, 17, upper(g.cfg.SubmitterID))
	b.put(18, 32, upper(g.payer.PayerCode))
	b.put(33, 40, g.now.Format("20060102"))
	b.put(41, 46, g.now.Format("150405"))
	b.put(47, 76, strings.TrimSuffix(g.fileName, ".txt"))
	b.put(77, 77, usage(g.cfg.UsageIndicator))
	return b.String()
}

// DT, positions 1-200.
func (g *ESIGenerator) buildDetail(r *Row) (string, error) {
	first, last := r.Member.PatientName()
	txType := "N"
	if r.Reversal {
		txType = "R"
	}
	b := newBuf(ESIRecordLength)
	b.put(1, 2, "DT")
	b.put(3, 22, upper(r.Member.SubscriberInsuranceID))
	b.put(23, 47, upper(last))
	b.put(48, 62, upper(first))
	b.put(63, 70, dateOrEmpty(r.Member.PatientDateOfBirth, "20060102"))
	b.put(71, 71, genderCode(r.Member.PatientSex))
	b.put(72, 79, r.ServiceStart.Format("20060102"))
	b.put(80, 111, r.UniqueID)
	b.put(112, 112, txType)
	b.putAmount(113, 123, r.Deductible)
	b.putAmount(124, 134, r.OOPApplied)
	b.putDigits(135, 144, r.Member.EmployerHealthPlanID)
	return b.String(), b.err
}

// TR, positions 1-200.
func (g *ESIGenerator) buildTrailer(count int, totalDeductible, totalOOP int64) (string, error) {
	b := newBuf(ESIRecordLength)
	b.put(1, 2, "TR")
	b.putDigits(3, 11, int64(count))
	b.putAmount(12, 24, &totalDeductible)
	b.putAmount(25, 37, &totalOOP)
	return b.String(), b.err
}

// fixedBuf is an ASCII record. The first numeric field that does not fit
// is kept in err and later writes still happen.
type fixedBuf struct {
	data []byte
	err  error
}

func newBuf(size int) *fixedBuf {
	d := make([]byte, size)
	for i := range d {
		d[i] = ' '
	}
	return &fixedBuf{data: d}
}

// put places s at 1-based positions [start, end] inclusive, left-aligned
// and truncated to the field width. s is folded to ASCII first so every
// position is one byte.
func (f *fixedBuf) put(start, end int, s string) {
	s = toASCII(s)
	width := end - start + 1
	if len(s) > width {
		s = s[:width]
	}
	copy(f.data[start-1:end], s)
}

func (f *fixedBuf) putAmount(start, end int, cents *int64) {
	s, err := signedAmount(cents, end-start+1)
	f.keep(start, err)
	f.put(start, end, s)
}

func (f *fixedBuf) putDigits(start, end int, v int64) {
	s, err := zeroPad(v, end-start+1)
	f.keep(start, err)
	f.put(start, end, s)
}

func (f *fixedBuf) keep(start int, err error) {
	if err != nil && f.err == nil {
		f.err = fmt.Errorf("position %d: %w", start, err)
	}
}

func (f *fixedBuf) String() string { return string(f.data) }

func upper(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// toASCII strips combining marks after canonical decomposition, so "Ë"
// becomes "E". Control characters become spaces and anything else outside
// ASCII becomes '?'.
func toASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < ' ' || r == unicode.MaxASCII:
			return ' '
		case r > unicode.MaxASCII:
			return '?'
		}
		return r
	}, s)
}

// signedAmount renders cents as a sign followed by width-1 zero-padded
// digits. Nil renders as blanks.
func signedAmount(cents *int64, width int) (string, error) {
	if cents == nil {
		return strings.Repeat(" ", width), nil
	}
	sign, v := "+", *cents
	if v < 0 {
		sign, v = "-", -v
	}
	digits, err := zeroPad(v, width-1)
	if err != nil {
		return "", fmt.Errorf("amount %d: %w", *cents, err)
	}
	return sign + digits, nil
}

func zeroPad(v int64, width int) (string, error) {
	s := strconv.FormatInt(v, 10)
	if v < 0 || len(s) > width {
		return "", fmt.Errorf("%s does not fit in %d digits", s, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}

func usage(indicator string) string {
	if indicator == "" {
		return "T"
	}
	return strings.ToUpper(indicator[:1])
}
