package position

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/relabs-tech/track_logger/internal/gps"
)

func TestHaversineDistance(t *testing.T) {
	// One thousandth of a degree of latitude is about 111 m.
	d := HaversineDistance(gps.Fix{Latitude: 10, Longitude: 20}, gps.Fix{Latitude: 10.001, Longitude: 20})
	if math.Abs(d-111.3) > 1 {
		t.Errorf("distance = %.2f m, want ~111.3 m", d)
	}
	if d := HaversineDistance(gps.Fix{Latitude: 1, Longitude: 1}, gps.Fix{Latitude: 1, Longitude: 1}); d != 0 {
		t.Errorf("distance to self = %v", d)
	}
}

func TestHaversineDistanceSymmetric(t *testing.T) {
	a := gps.Fix{Latitude: 37.33182, Longitude: -122.03118}
	b := gps.Fix{Latitude: 37.33500, Longitude: -122.02500}
	ab, ba := HaversineDistance(a, b), HaversineDistance(b, a)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("distance not symmetric: %v vs %v", ab, ba)
	}
	// Swapping lat and lon would put b thousands of km away.
	if ab < 500 || ab > 700 {
		t.Errorf("distance = %.1f m, want ~650 m", ab)
	}
}

func TestDistanceFilter(t *testing.T) {
	f := DistanceFilter{MinDistance: 5}

	steps := []struct {
		lat  float64
		want bool
	}{
		{10, true},         // first sample always passes
		{10.00002, false},  // ~2 m
		{10.00004, false},  // ~4.5 m from the last passed sample
		{10.00005, true},   // ~5.6 m
		{10.000051, false}, // measured from the new anchor
	}
	for i, st := range steps {
		if got := f.Allow(gps.Sample{Latitude: st.lat, Longitude: 20}); got != st.want {
			t.Errorf("step %d (lat %v): Allow = %v, want %v", i, st.lat, got, st.want)
		}
	}
}

func TestDistanceFilterZeroPassesAll(t *testing.T) {
	var f DistanceFilter
	for i := 0; i < 3; i++ {
		if !f.Allow(gps.Sample{Latitude: 1, Longitude: 1}) {
			t.Fatalf("sample %d dropped with MinDistance 0", i)
		}
	}
}

func TestSimulatedServiceDisabled(t *testing.T) {
	s := NewSimulatedService(gps.Fix{Latitude: 35.68, Longitude: 139.76}, 10*time.Millisecond)
	s.Enabled = false

	if err := s.Supported(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Supported = %v, want ErrUnsupported", err)
	}
	if _, err := s.Watch(context.Background(), WatchOptions{}, func(gps.Sample) {}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Watch err = %v, want ErrUnsupported", err)
	}
}

func TestSimulatedServiceWatch(t *testing.T) {
	center := gps.Fix{Latitude: 35.68, Longitude: 139.76}
	s := NewSimulatedService(center, 5*time.Millisecond)
	s.Speed = 2000 // ~10 m per tick, clears the distance filter every time

	samples := make(chan gps.Sample, 16)
	sub, err := s.Watch(context.Background(), WatchOptions{MinDistance: DefaultMinDistance, HighAccuracy: true},
		func(sample gps.Sample) {
			select {
			case samples <- sample:
			default:
			}
		})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		select {
		case sample := <-samples:
			if !sample.HasAccuracy() {
				t.Errorf("simulated sample without accuracy: %+v", sample)
			}
			if d := HaversineDistance(center, sample.Fix()); math.Abs(d-s.Radius) > 1 {
				t.Errorf("sample %.1f m from center, want %.1f", d, s.Radius)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for sample %d", i+1)
		}
	}

	if err := sub.Cancel(); err != nil {
		t.Fatal(err)
	}
	// Drain anything produced before Cancel returned; nothing may follow.
	for len(samples) > 0 {
		<-samples
	}
	select {
	case sample := <-samples:
		t.Errorf("sample after cancel: %+v", sample)
	case <-time.After(30 * time.Millisecond):
	}
}
