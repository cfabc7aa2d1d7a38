package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"

	"github.com/relabs-tech/track_logger/internal/gps"
)

type memStorage struct {
	dir    string
	files  map[string]string
	writes int
	err    error
}

func newMemStorage() *memStorage {
	return &memStorage{dir: "/cache", files: map[string]string{}}
}

func (s *memStorage) CacheDir() string { return s.dir }

func (s *memStorage) WriteText(path, content string) error {
	s.writes++
	if s.err != nil {
		return s.err
	}
	s.files[path] = content
	return nil
}

type fakeComposer struct {
	paths   []string
	outcome Outcome
	err     error
}

func (c *fakeComposer) ComposeWithAttachment(ctx context.Context, path string) (Outcome, error) {
	c.paths = append(c.paths, path)
	return c.outcome, c.err
}

var threeFixes = gps.NewLog(
	gps.Fix{Latitude: 10, Longitude: 20},
	gps.Fix{Latitude: 10.001, Longitude: 20.001},
	gps.Fix{Latitude: 10.002, Longitude: 20.002},
)

func TestExportNoOpWhileLogging(t *testing.T) {
	storage, composer := newMemStorage(), &fakeComposer{outcome: OutcomeSent}
	e := NewEncoder(storage, composer)

	for _, l := range []gps.Log{{}, gps.NewLog(gps.Fix{}), threeFixes} {
		outcome, err := e.Export(context.Background(), l, gps.Logging)
		if err != nil || outcome != OutcomeNone {
			t.Errorf("len %d: Export = %v, %v; want none, nil", l.Len(), outcome, err)
		}
	}
	if storage.writes != 0 || len(composer.paths) != 0 {
		t.Errorf("side effects while logging: writes %d, composes %d", storage.writes, len(composer.paths))
	}
}

func TestExportNoOpWithTooFewFixes(t *testing.T) {
	storage, composer := newMemStorage(), &fakeComposer{outcome: OutcomeSent}
	e := NewEncoder(storage, composer)

	for _, l := range []gps.Log{{}, gps.NewLog(gps.Fix{Latitude: 1, Longitude: 2})} {
		outcome, err := e.Export(context.Background(), l, gps.Stopped)
		if err != nil || outcome != OutcomeNone {
			t.Errorf("len %d: Export = %v, %v; want none, nil", l.Len(), outcome, err)
		}
	}
	if storage.writes != 0 || len(composer.paths) != 0 {
		t.Errorf("side effects with short log: writes %d, composes %d", storage.writes, len(composer.paths))
	}
}

func TestExportWritesLineString(t *testing.T) {
	storage, composer := newMemStorage(), &fakeComposer{outcome: OutcomeSent}
	e := NewEncoder(storage, composer)

	outcome, err := e.Export(context.Background(), threeFixes, gps.Stopped)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSent {
		t.Errorf("outcome = %v, want sent", outcome)
	}

	wantPath := filepath.Join("/cache", "gpslog.geojson")
	if len(composer.paths) != 1 || composer.paths[0] != wantPath {
		t.Fatalf("composed with %v, want [%s]", composer.paths, wantPath)
	}

	text := storage.files[wantPath]
	if got := gjson.Get(text, "type").String(); got != "Feature" {
		t.Errorf("type = %q, want Feature", got)
	}
	if got := gjson.Get(text, "geometry.type").String(); got != "LineString" {
		t.Errorf("geometry.type = %q, want LineString", got)
	}

	want := [][2]float64{{20, 10}, {20.001, 10.001}, {20.002, 10.002}}
	coords := gjson.Get(text, "geometry.coordinates").Array()
	if len(coords) != len(want) {
		t.Fatalf("got %d coordinates, want %d", len(coords), len(want))
	}
	for i, c := range coords {
		pair := c.Array()
		if len(pair) != 2 || pair[0].Float() != want[i][0] || pair[1].Float() != want[i][1] {
			t.Errorf("coordinate %d = %s, want %v", i, c.Raw, want[i])
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, err := Encode(threeFixes, geojson.Properties{"session": "abc"})
	if err != nil {
		t.Fatal(err)
	}

	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != threeFixes.Len() {
		t.Fatalf("decoded %d fixes, want %d", back.Len(), threeFixes.Len())
	}
	for i := 0; i < back.Len(); i++ {
		if back.At(i) != threeFixes.At(i) {
			t.Errorf("fix %d = %+v, want %+v", i, back.At(i), threeFixes.At(i))
		}
	}
	if got := gjson.GetBytes(data, "properties.session").String(); got != "abc" {
		t.Errorf("session property = %q", got)
	}
}

func TestDecodeRejectsOtherGeometries(t *testing.T) {
	point := []byte(`{"type":"Feature","geometry":{"type":"Point","coordinates":[1,2]},"properties":{}}`)
	if _, err := Decode(point); err == nil {
		t.Error("expected error for Point geometry")
	}
	if _, err := Decode([]byte("{")); err == nil {
		t.Error("expected error for broken JSON")
	}
}

func TestExportPropagatesStorageError(t *testing.T) {
	storage, composer := newMemStorage(), &fakeComposer{outcome: OutcomeSent}
	storage.err = errors.New("disk full")

	_, err := NewEncoder(storage, composer).Export(context.Background(), threeFixes, gps.Stopped)
	if !errors.Is(err, storage.err) {
		t.Fatalf("err = %v, want disk full", err)
	}
	if len(composer.paths) != 0 {
		t.Error("composer called after a failed write")
	}
}

func TestExportPropagatesComposeError(t *testing.T) {
	boom := errors.New("no mail account")
	composer := &fakeComposer{err: boom}

	_, err := NewEncoder(newMemStorage(), composer).Export(context.Background(), threeFixes, gps.Stopped)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(composer.paths) != 1 {
		t.Errorf("compose attempts = %d, want exactly 1", len(composer.paths))
	}
}

func TestExportPassesThroughOutcome(t *testing.T) {
	for _, want := range []Outcome{OutcomeSent, OutcomeSaved, OutcomeCancelled} {
		got, err := NewEncoder(newMemStorage(), &fakeComposer{outcome: want}).
			Export(context.Background(), threeFixes, gps.Stopped)
		if err != nil || got != want {
			t.Errorf("Export = %v, %v; want %v", got, err, want)
		}
	}
}

func TestDirStorageOverwrites(t *testing.T) {
	s, err := NewCacheStorage(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(s.CacheDir(), FileName)

	if err := s.WriteText(path, "first, and longer"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteText(path, "second"); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("file = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(s.CacheDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("cache dir has %d entries, want only the export", len(entries))
	}
}

func TestExportEndToEndWithOutbox(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewCacheStorage(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	outbox := &OutboxComposer{Dir: filepath.Join(dir, "outbox"), Message: Message{
		From: "logger@example.com", To: []string{"me@example.com"}, Subject: "GPS log",
	}}

	outcome, err := NewEncoder(storage, outbox).Export(context.Background(), threeFixes, gps.Stopped)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSaved {
		t.Errorf("outcome = %v, want saved", outcome)
	}

	data, err := os.ReadFile(filepath.Join(storage.CacheDir(), FileName))
	if err != nil {
		t.Fatal(err)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Len() != threeFixes.Len() {
		t.Errorf("exported %d fixes, want %d", back.Len(), threeFixes.Len())
	}

	msgs, err := os.ReadDir(outbox.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || filepath.Ext(msgs[0].Name()) != ".eml" {
		t.Errorf("outbox = %v, want one .eml", msgs)
	}
}
