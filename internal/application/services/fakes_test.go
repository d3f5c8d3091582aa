package services_test

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// fakeCityDB serves city records from a map keyed by IP string.
type fakeCityDB struct {
	records map[string]*entities.CityRecord
	err     error
}

func (f *fakeCityDB) LookupCity(ctx context.Context, ip net.IP) (*entities.CityRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[ip.String()]
	if !ok {
		return nil, apperrors.NewNotFoundError("address not in database")
	}
	return rec, nil
}

// fakeASNDB serves ASN records from a map keyed by IP string.
type fakeASNDB struct {
	records map[string]*entities.ASNRecord
	err     error
}

func (f *fakeASNDB) LookupASN(ctx context.Context, ip net.IP) (*entities.ASNRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.records[ip.String()]
	if !ok {
		return nil, apperrors.NewNotFoundError("address not in database")
	}
	return rec, nil
}

// fakeUAParser returns a desktop Chrome result for any agent containing
// "Mozilla" and the parser's unknown markers otherwise.
type fakeUAParser struct{}

func (fakeUAParser) Parse(agent string) entities.ParsedUserAgent {
	var p entities.ParsedUserAgent
	p.Device.Family = "Other"
	p.OS.Family = "Other"
	p.UserAgent.Family = "Other"
	if len(agent) >= 7 && agent[:7] == "Mozilla" {
		p.Device.Family = "Mac"
		p.Device.Brand = "Apple"
		p.Device.Model = "Mac"
		p.OS.Family = "Mac OS X"
		p.OS.Major = "10"
		p.OS.Minor = "15"
		p.OS.Patch = "7"
		p.UserAgent.Family = "Chrome"
		p.UserAgent.Major = "120"
		p.UserAgent.Minor = "0"
		p.UserAgent.Patch = "0"
	}
	return p
}

// fakeCountries knows a handful of alpha-2 codes.
type fakeCountries struct {
	err error
}

func (f fakeCountries) NameByAlpha2(code string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	names := map[string]string{
		"US": "United States",
		"DE": "Germany",
		"NG": "Nigeria",
	}
	name, ok := names[code]
	if !ok {
		return "", apperrors.NewNotFoundError("unknown code " + code)
	}
	return name, nil
}

// MockIndexWriter is a testify mock of providers.IndexWriter.
type MockIndexWriter struct {
	mock.Mock
}

func (m *MockIndexWriter) Index(ctx context.Context, partition string, doc entities.Document, id string) error {
	args := m.Called(ctx, partition, doc, id)
	return args.Error(0)
}

// recordingWriter keeps every indexed document.
type recordingWriter struct {
	mu   sync.Mutex
	docs []indexedDoc
	err  error
}

type indexedDoc struct {
	partition string
	id        string
	doc       entities.Document
}

func (w *recordingWriter) Index(ctx context.Context, partition string, doc entities.Document, id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.docs = append(w.docs, indexedDoc{partition: partition, id: id, doc: doc})
	return nil
}

// cancellingWriter cancels its context on the first Index call and then
// reports success for that document.
type cancellingWriter struct {
	cancel context.CancelFunc
	calls  int
}

func (w *cancellingWriter) Index(ctx context.Context, partition string, doc entities.Document, id string) error {
	w.calls++
	if w.calls == 1 {
		w.cancel()
	}
	return nil
}

// fakeSource returns canned bodies per window start.
type fakeSource struct {
	bodies  map[time.Time][]byte
	errs    map[time.Time]error
	fetched []entities.ExtractionWindow
	onFetch func()
}

func (s *fakeSource) FetchWindow(ctx context.Context, window entities.ExtractionWindow) ([]byte, error) {
	s.fetched = append(s.fetched, window)
	if s.onFetch != nil {
		s.onFetch()
	}
	if err, ok := s.errs[window.Start]; ok {
		return nil, err
	}
	if body, ok := s.bodies[window.Start]; ok {
		return body, nil
	}
	return []byte(`{"data":{"viewer":{"zones":[{"series":[]}]}},"errors":null}`), nil
}

type fakeCheckpoints struct {
	saved  map[string]entities.ExtractionWindow
	err    error
	loaded int
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{saved: make(map[string]entities.ExtractionWindow)}
}

func (c *fakeCheckpoints) LoadCheckpoint(ctx context.Context, key string) (entities.ExtractionWindow, error) {
	c.loaded++
	if c.err != nil {
		return entities.ExtractionWindow{}, c.err
	}
	w, ok := c.saved[key]
	if !ok {
		return entities.ExtractionWindow{}, apperrors.NewNotFoundError("no checkpoint")
	}
	return w, nil
}

func (c *fakeCheckpoints) SaveCheckpoint(ctx context.Context, key string, window entities.ExtractionWindow) error {
	c.saved[key] = window
	return nil
}

type fakeRuns struct {
	runs   []*entities.WindowRun
	listed int
}

func (r *fakeRuns) Record(ctx context.Context, run *entities.WindowRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRuns) ListByBatchName(ctx context.Context, batchName string) ([]*entities.WindowRun, error) {
	r.listed++
	var out []*entities.WindowRun
	for _, run := range r.runs {
		if run.BatchName == batchName {
			out = append(out, run)
		}
	}
	return out, nil
}

type fakeArchive struct {
	pages [][]byte
}

func (a *fakeArchive) StorePage(ctx context.Context, meta entities.BatchMetadata, body []byte) error {
	a.pages = append(a.pages, body)
	return nil
}

// testGeoResolver resolves 8.8.8.8 fully, 1.1.1.1 to country level only.
func testGeoResolver() *services.GeoResolver {
	city := &fakeCityDB{records: map[string]*entities.CityRecord{
		"8.8.8.8": {
			City:           "Mountain View",
			Country:        "United States",
			CountryIsoCode: "US",
			Continent:      "North America",
			Province:       "California",
			PostalCode:     "94043",
			Latitude:       37.4223,
			Longitude:      -122.085,
		},
		"1.1.1.1": {
			Country:        "Australia",
			CountryIsoCode: "AU",
			Continent:      "Oceania",
			Latitude:       -33.494,
			Longitude:      143.2104,
		},
	}}
	asn := &fakeASNDB{records: map[string]*entities.ASNRecord{
		"8.8.8.8": {Number: 15169, Organization: "GOOGLE"},
		"1.1.1.1": {Number: 13335, Organization: "CLOUDFLARENET"},
	}}
	return services.NewGeoResolver(city, asn)
}

func testEnricher() *services.RecordEnricher {
	return services.NewRecordEnricher(
		services.NewUserAgentClassifier(fakeUAParser{}),
		testGeoResolver(),
		services.NewCountryNormalizer(fakeCountries{}),
		zerolog.Nop(),
	)
}
