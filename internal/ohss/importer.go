package ohss

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/fetcher"
	"github.com/sells-group/ohss-collector/internal/model"
	"github.com/sells-group/ohss-collector/internal/normalize"
)

// Reasons a row is skipped.
const (
	SkipBlankRow      = "blank row"
	SkipNegativeCount = "negative count"
	SkipRowPanic      = "row conversion panicked"
)

// RowOutcome is the result of converting one data row: a record, or the
// reason the row was skipped.
type RowOutcome struct {
	Line   int // 1-based position among the table's data rows
	Record model.ActivityRecord
	Skip   string
}

// Batch collects the row outcomes for one file.
type Batch struct {
	Kind     model.EntityKind
	Ref      model.DataFileReference
	Fields   model.CanonicalFieldMap
	Outcomes []RowOutcome
}

// Records returns the successfully built records in row order.
func (b *Batch) Records() []model.ActivityRecord {
	out := make([]model.ActivityRecord, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Record != nil {
			out = append(out, o.Record)
		}
	}
	return out
}

// Skipped counts rows that produced no record.
func (b *Batch) Skipped() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Record == nil {
			n++
		}
	}
	return n
}

// Importer converts parsed tables into typed activity records.
type Importer struct {
	schema   Schema
	source   string
	now      func() time.Time
	builders map[model.EntityKind]rowBuilder
}

type rowBuilder func(rc rowContext, ref model.DataFileReference) (model.ActivityRecord, string)

// NewImporter creates an Importer. source tags every record (default
// "OHSS"); now supplies the fallback timestamp and defaults to time.Now.
func NewImporter(schema Schema, source string, now func() time.Time) *Importer {
	if schema == nil {
		schema = DefaultSchema()
	}
	if source == "" {
		source = model.DefaultDataSource
	}
	if now == nil {
		now = time.Now
	}
	im := &Importer{schema: schema, source: source, now: now}
	im.builders = map[model.EntityKind]rowBuilder{
		model.KindArrests:    im.arrest,
		model.KindDetentions: im.detention,
		model.KindRemovals:   im.removal,
	}
	return im
}

// Import maps the table's headers for kind and converts every row. A row
// that cannot be built is recorded as skipped and never stops the file.
func (im *Importer) Import(kind model.EntityKind, table *fetcher.Table, ref model.DataFileReference) (*Batch, error) {
	if !kind.Importable() {
		return nil, eris.Errorf("ohss: cannot import %s file %s", kind, ref.URL)
	}
	aliases, ok := im.schema[kind]
	if !ok {
		return nil, eris.Errorf("ohss: no alias table for %s", kind)
	}

	log := zap.L().With(
		zap.String("component", "ohss.importer"),
		zap.String("kind", string(kind)),
		zap.String("url", ref.URL),
	)

	fields := MapColumns(table.Headers, aliases)
	if len(fields) == 0 {
		log.Warn("no columns matched the alias table", zap.Strings("headers", table.Headers))
	}

	fallback := im.fallbackPeriod(ref)
	b := &Batch{Kind: kind, Ref: ref, Fields: fields, Outcomes: make([]RowOutcome, 0, len(table.Rows))}
	for i, row := range table.Rows {
		out := RowOutcome{Line: i + 1}
		if row.Blank() {
			out.Skip = SkipBlankRow
		} else {
			rc := rowContext{row: row, fields: fields, fallback: fallback}
			out.Record, out.Skip = im.build(kind, rc, ref, log)
		}
		if out.Skip != "" {
			log.Warn("row skipped", zap.Int("line", out.Line), zap.String("reason", out.Skip))
		}
		b.Outcomes = append(b.Outcomes, out)
	}
	return b, nil
}

// fallbackPeriod is the reference's inferred period, or the importer's
// clock when the reference has none or it does not parse.
func (im *Importer) fallbackPeriod(ref model.DataFileReference) time.Time {
	now := im.now().UTC()
	if ref.InferredPeriod == "" {
		return now
	}
	// URL tokens such as "2026_01" use an underscore separator.
	return normalize.Timestamp(model.String(strings.ReplaceAll(ref.InferredPeriod, "_", "-")), now)
}

// build converts one row. A panic is confined to the row it came from.
func (im *Importer) build(kind model.EntityKind, rc rowContext, ref model.DataFileReference, log *zap.Logger) (rec model.ActivityRecord, skip string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("row conversion panicked", zap.Any("panic", r))
			rec, skip = nil, SkipRowPanic
		}
	}()
	return im.builders[kind](rc, ref)
}

func (im *Importer) arrest(rc rowContext, ref model.DataFileReference) (model.ActivityRecord, string) {
	a := &model.Arrest{
		Timestamp:          rc.timestamp(),
		State:              normalize.StateCode(rc.get(FieldState)),
		County:             normalize.Text(rc.get(FieldCounty)),
		City:               normalize.Text(rc.get(FieldCity)),
		ArrestCount:        rc.count(FieldArrests),
		CriminalArrests:    rc.count(FieldCriminal),
		NonCriminalArrests: rc.count(FieldNonCriminal),
		DataSource:         im.source,
		SourceURL:          ref.URL,
	}
	if rc.negative {
		return nil, SkipNegativeCount
	}
	a.Key = normalize.DedupKey(a.DataSource, a.Timestamp, a.Where())
	return a, ""
}

func (im *Importer) detention(rc rowContext, ref model.DataFileReference) (model.ActivityRecord, string) {
	d := &model.Detention{
		Timestamp:     rc.timestamp(),
		FacilityName:  normalize.Text(rc.get(FieldFacility)),
		FacilityID:    normalize.Text(rc.get(FieldFacilityID)),
		FacilityType:  normalize.Text(rc.get(FieldFacilityType)),
		State:         normalize.StateCode(rc.get(FieldState)),
		City:          normalize.Text(rc.get(FieldCity)),
		DetainedCount: rc.count(FieldDetained),
		Capacity:      rc.count(FieldCapacity),
		Latitude:      normalize.Latitude(rc.get(FieldLatitude)),
		Longitude:     normalize.Longitude(rc.get(FieldLongitude)),
		DataSource:    im.source,
		SourceURL:     ref.URL,
	}
	if v, ok := rc.lookup(FieldAvgDailyPopulation); ok && !v.IsAbsent() {
		adp := normalize.CleanFloat(v, 0)
		if adp < 0 {
			rc.negative = true
		}
		d.AvgDailyPopulation = &adp
	}
	if rc.negative {
		return nil, SkipNegativeCount
	}
	d.Key = normalize.DedupKey(d.DataSource, d.Timestamp, d.Where())
	return d, ""
}

func (im *Importer) removal(rc rowContext, ref model.DataFileReference) (model.ActivityRecord, string) {
	r := &model.Removal{
		Timestamp:            rc.timestamp(),
		State:                normalize.StateCode(rc.get(FieldState)),
		RemovalCount:         rc.count(FieldRemovals),
		CountryOfCitizenship: normalize.Text(rc.get(FieldCountry)),
		RemovalType:          model.DefaultRemovalType,
		DataSource:           im.source,
		SourceURL:            ref.URL,
	}
	if t := normalize.Text(rc.get(FieldType)); t != nil {
		r.RemovalType = *t
	}
	if rc.negative {
		return nil, SkipNegativeCount
	}
	r.Key = normalize.DedupKey(r.DataSource, r.Timestamp, r.Where())
	return r, ""
}

// rowContext resolves canonical fields for one row and remembers whether any
// count came out negative.
type rowContext struct {
	row      model.Row
	fields   model.CanonicalFieldMap
	fallback time.Time
	negative bool
}

func (rc *rowContext) lookup(field string) (model.Value, bool) {
	return rc.fields.Lookup(rc.row, field)
}

func (rc *rowContext) get(field string) model.Value {
	v, _ := rc.lookup(field)
	return v
}

// timestamp prefers the row's own date cell over the file-level period.
func (rc *rowContext) timestamp() time.Time {
	v, ok := rc.lookup(FieldDate)
	if !ok || v.IsAbsent() {
		return rc.fallback
	}
	return normalize.Timestamp(v, rc.fallback)
}

// count is nil for an unmapped field and CleanNumeric(v, 0) otherwise.
func (rc *rowContext) count(field string) *int {
	v, ok := rc.lookup(field)
	if !ok {
		return nil
	}
	n := normalize.CleanNumeric(v, 0)
	if n < 0 {
		rc.negative = true
	}
	return &n
}
