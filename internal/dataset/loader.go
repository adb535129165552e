package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"unicode/utf8"

	"github.com/buger/jsonparser"
	"github.com/viant/afs"
	afsurl "github.com/viant/afs/url"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Dataset is the validated content of one corpus file.
type Dataset struct {
	Path    string
	Entries []Entry
	// Transcoded is set when the file was not UTF-8 and was decoded as GB18030.
	Transcoded bool
}

// Entry is the validation outcome of one top-level array element.
// Exactly one of Record and Rejection is set.
type Entry struct {
	Index     int
	Record    *Object
	Rejection *Rejection
}

// Valid reports whether the element survived validation.
func (e Entry) Valid() bool {
	return e.Record != nil
}

// Records returns the surviving records in file order.
func (d *Dataset) Records() []*Object {
	records := make([]*Object, 0, len(d.Entries))
	for _, e := range d.Entries {
		if e.Valid() {
			records = append(records, e.Record)
		}
	}
	return records
}

// Rejected returns the discarded elements.
func (d *Dataset) Rejected() []Rejection {
	var out []Rejection
	for _, e := range d.Entries {
		if e.Rejection != nil {
			out = append(out, *e.Rejection)
		}
	}
	return out
}

// Loader reads datasets through afs so local paths and storage URLs share one code path.
type Loader struct {
	fs     afs.Service
	logger *zap.Logger
}

// NewLoader returns a Loader. A nil fs falls back to afs.New().
func NewLoader(fs afs.Service, logger *zap.Logger) *Loader {
	if fs == nil {
		fs = afs.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{fs: fs, logger: logger.Named("dataset")}
}

// Load downloads and validates the dataset at path.
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	data, err := l.fs.DownloadWithURL(ctx, toURL(path))
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	ds, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	if ds.Transcoded {
		l.logger.Warn("dataset is not valid UTF-8, decoded as GB18030", zap.String("path", path))
	}
	rejected := ds.Rejected()
	if len(rejected) > 0 {
		l.logger.Info("discarded non-object dataset entries",
			zap.String("path", path),
			zap.Int("discarded", len(rejected)),
		)
	}
	l.logger.Debug("dataset loaded", zap.String("path", path), zap.Int("entries", len(ds.Entries)))
	return ds, nil
}

// Parse validates raw dataset bytes. path is only used in errors.
func Parse(path string, data []byte) (*Dataset, error) {
	ds := &Dataset{Path: path}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
		if err != nil {
			return nil, &FormatError{Path: path, Reason: "undecodable text encoding", Err: err}
		}
		data = decoded
		ds.Transcoded = true
	}

	// jsonparser stops at the first complete value and keeps number
	// literals unchecked, so the whole document is validated first.
	if !json.Valid(data) {
		return nil, &FormatError{Path: path, Reason: "invalid json"}
	}

	raw, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "invalid json", Err: err}
	}
	if dataType != jsonparser.Array {
		return nil, &FormatError{Path: path, Reason: fmt.Sprintf("top-level value is %s, expected array", dataType)}
	}

	items, err := decodeArray(raw)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: "invalid json", Err: err}
	}

	ds.Entries = make([]Entry, 0, len(items))
	for i, item := range items {
		ds.Entries = append(ds.Entries, validate(i, item))
	}
	return ds, nil
}

func validate(index int, item any) Entry {
	if obj, ok := item.(*Object); ok {
		return Entry{Index: index, Record: obj}
	}
	return Entry{Index: index, Rejection: &Rejection{Index: index, Kind: kindOf(item)}}
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case *Object:
		return "object"
	default:
		return "number"
	}
}

func toURL(path string) string {
	if afsurl.Scheme(path, "") != "" {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file://" + filepath.ToSlash(path)
}
