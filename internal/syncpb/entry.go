package syncpb

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/timex"
	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/types/known/structpb"
)

// Entry is the document exchanged with the remote store. Only submitted
// entries travel, so SubmittedAt is always set.
type Entry struct {
	ID          string     `validate:"required,uuid"`
	UserID      string     `validate:"required,max=128"`
	Day         timex.Date `validate:"required"`
	Content     string     `validate:"max=10000"`
	CreatedAt   time.Time  `validate:"required"`
	SubmittedAt time.Time  `validate:"required"`
	UpdatedAt   time.Time  `validate:"required"`
	SyncVersion int64      `validate:"gte=0"`

	// Revision is assigned by the remote store; zero on push.
	Revision int64 `validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and wraps failures in common.ErrValidation.
func (e Entry) Validate() error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %q", common.ErrValidation, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

const (
	fieldID          = "id"
	fieldUserID      = "user_id"
	fieldDay         = "day"
	fieldContent     = "content"
	fieldCreatedAt   = "created_at"
	fieldSubmittedAt = "submitted_at"
	fieldUpdatedAt   = "updated_at"
	fieldSyncVersion = "sync_version"
	fieldRevision    = "revision"
)

// ToStruct encodes e. Integers travel as decimal strings and instants as
// RFC 3339 cut to timex.Precision, so nothing is lost to float64 and both
// ends compare the same instants the database keeps.
func (e Entry) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:          structpb.NewStringValue(e.ID),
		fieldUserID:      structpb.NewStringValue(e.UserID),
		fieldDay:         structpb.NewStringValue(e.Day.String()),
		fieldContent:     structpb.NewStringValue(e.Content),
		fieldCreatedAt:   timeValue(e.CreatedAt),
		fieldSubmittedAt: timeValue(e.SubmittedAt),
		fieldUpdatedAt:   timeValue(e.UpdatedAt),
		fieldSyncVersion: int64Value(e.SyncVersion),
		fieldRevision:    int64Value(e.Revision),
	}}
}

// EntryFromStruct decodes and validates an entry document.
func EntryFromStruct(s *structpb.Struct) (Entry, error) {
	var (
		e   Entry
		err error
	)
	r := reader{s: s}
	e.ID = r.str(fieldID)
	e.UserID = r.str(fieldUserID)
	e.Content = r.str(fieldContent)
	if day := r.str(fieldDay); day != "" {
		if e.Day, err = timex.ParseDate(day); err != nil {
			r.fail(fieldDay, err)
		}
	}
	e.CreatedAt = r.time(fieldCreatedAt)
	e.SubmittedAt = r.time(fieldSubmittedAt)
	e.UpdatedAt = r.time(fieldUpdatedAt)
	e.SyncVersion = r.int64(fieldSyncVersion)
	e.Revision = r.int64(fieldRevision)
	if r.err != nil {
		return Entry{}, r.err
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

func timeValue(t time.Time) *structpb.Value {
	if t.IsZero() {
		return structpb.NewStringValue("")
	}
	return structpb.NewStringValue(timex.Instant(t).Format(time.RFC3339Nano))
}

func int64Value(n int64) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatInt(n, 10))
}

// reader pulls typed fields out of a Struct and keeps the first error.
type reader struct {
	s   *structpb.Struct
	err error
}

func (r *reader) fail(field string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %s: %v", common.ErrValidation, field, err)
	}
}

func (r *reader) str(field string) string {
	if r.s == nil {
		return ""
	}
	v, ok := r.s.GetFields()[field]
	if !ok {
		return ""
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(field, errors.New("not a string"))
		return ""
	}
	return sv.StringValue
}

func (r *reader) time(field string) time.Time {
	raw := r.str(field)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		r.fail(field, err)
		return time.Time{}
	}
	return timex.Instant(t)
}

func (r *reader) int64(field string) int64 {
	raw := r.str(field)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		r.fail(field, err)
		return 0
	}
	return n
}

// UpsertRequest wraps the pushed entry.
func UpsertRequest(e Entry) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entry": structpb.NewStructValue(e.ToStruct()),
	}}
}

func ParseUpsertRequest(s *structpb.Struct) (Entry, error) {
	v := s.GetFields()["entry"].GetStructValue()
	if v == nil {
		return Entry{}, fmt.Errorf("%w: missing entry", common.ErrValidation)
	}
	return EntryFromStruct(v)
}

// UpsertResponse carries the stored document and its new revision.
func UpsertResponse(stored Entry) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entry":    structpb.NewStructValue(stored.ToStruct()),
		"revision": int64Value(stored.Revision),
	}}
}

func ParseUpsertResponse(s *structpb.Struct) (Entry, error) {
	return ParseUpsertRequest(s)
}

func ListRequest(since int64, limit int) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"since": int64Value(since),
		"limit": int64Value(int64(limit)),
	}}
}

func ParseListRequest(s *structpb.Struct) (since int64, limit int, err error) {
	r := reader{s: s}
	since = r.int64("since")
	limit = int(r.int64("limit"))
	return since, limit, r.err
}

func ListResponse(entries []Entry, cursor int64) *structpb.Struct {
	vals := make([]*structpb.Value, len(entries))
	for i, e := range entries {
		vals[i] = structpb.NewStructValue(e.ToStruct())
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"entries": structpb.NewListValue(&structpb.ListValue{Values: vals}),
		"cursor":  int64Value(cursor),
	}}
}

func ParseListResponse(s *structpb.Struct) ([]Entry, int64, error) {
	r := reader{s: s}
	cursor := r.int64("cursor")
	if r.err != nil {
		return nil, 0, r.err
	}
	list := s.GetFields()["entries"].GetListValue()
	out := make([]Entry, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		e, err := EntryFromStruct(v.GetStructValue())
		if err != nil {
			return nil, 0, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, cursor, nil
}

// ExportRequest asks for the submitted journal between from and to. Zero
// dates leave that side open.
func ExportRequest(from, to timex.Date) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	if !from.IsZero() {
		fields["from"] = structpb.NewStringValue(from.String())
	}
	if !to.IsZero() {
		fields["to"] = structpb.NewStringValue(to.String())
	}
	return &structpb.Struct{Fields: fields}
}

func ParseExportRequest(s *structpb.Struct) (from, to timex.Date, err error) {
	r := reader{s: s}
	for field, dst := range map[string]*timex.Date{"from": &from, "to": &to} {
		if raw := r.str(field); raw != "" {
			d, perr := timex.ParseDate(raw)
			if perr != nil {
				r.fail(field, perr)
				continue
			}
			*dst = d
		}
	}
	return from, to, r.err
}

// ExportResult points at an uploaded journal export.
type ExportResult struct {
	Key       string
	URL       string
	ExpiresAt time.Time
	Entries   int
}

func ExportResponse(res ExportResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"key":        structpb.NewStringValue(res.Key),
		"url":        structpb.NewStringValue(res.URL),
		"expires_at": timeValue(res.ExpiresAt),
		"entries":    int64Value(int64(res.Entries)),
	}}
}

func ParseExportResponse(s *structpb.Struct) (ExportResult, error) {
	r := reader{s: s}
	res := ExportResult{
		Key:       r.str("key"),
		URL:       r.str("url"),
		ExpiresAt: r.time("expires_at"),
		Entries:   int(r.int64("entries")),
	}
	return res, r.err
}

// Empty is the Ping request and response.
func Empty() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}
}

// Compare orders two versions of the same document by last-write-wins:
// later UpdatedAt first, then higher SyncVersion. Versions that tie on both
// but differ in content are ordered by content, so every replica settles on
// the same copy. It returns -1, 0 or +1, and 0 means the same document.
func Compare(a, b Entry) int {
	au, bu := timex.Instant(a.UpdatedAt), timex.Instant(b.UpdatedAt)
	switch {
	case au.After(bu):
		return 1
	case au.Before(bu):
		return -1
	case a.SyncVersion > b.SyncVersion:
		return 1
	case a.SyncVersion < b.SyncVersion:
		return -1
	}
	return strings.Compare(a.Content, b.Content)
}
