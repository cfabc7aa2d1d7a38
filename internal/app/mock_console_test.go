package app

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/relabs-tech/track_logger/internal/export"
	"github.com/relabs-tech/track_logger/internal/gps"
	"github.com/relabs-tech/track_logger/internal/position"
	"github.com/relabs-tech/track_logger/internal/session"
)

func TestRunConsole(t *testing.T) {
	svc := readyService()
	svc.burst = []gps.Sample{
		{Latitude: 37.3300, Longitude: -122.0300, Accuracy: 5},
		{Latitude: 37.3310, Longitude: -122.0310, Accuracy: 0}, // no accuracy, dropped
		{Latitude: 37.3320, Longitude: -122.0320, Accuracy: 5},
	}
	ctrl := session.NewController(svc, position.WatchOptions{})
	defer ctrl.Stop()

	storage, err := export.NewCacheStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewCacheStorage: %v", err)
	}
	enc := export.NewEncoder(storage, &export.OutboxComposer{Dir: t.TempDir()})

	in := strings.NewReader("status\nexport\nstart\nexport\nstop\nexport\nfly\nquit\nstatus\n")
	var out bytes.Buffer
	if err := runConsole(context.Background(), in, &out, ctrl, enc); err != nil {
		t.Fatalf("runConsole: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"status=stopped fixes=0 export_ready=false",
		"export: none",
		"[FIX   1] lat=37.330000 lon=-122.030000",
		"[FIX   2] lat=37.332000 lon=-122.032000",
		"stopped with 2 fixes",
		"export: saved",
		`unknown command "fly"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "[FIX   3]") {
		t.Errorf("sample without accuracy was logged:\n%s", got)
	}
	if strings.Count(got, "status=") != 1 {
		t.Errorf("commands after quit were run:\n%s", got)
	}
}
