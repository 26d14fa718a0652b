package alert_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/geo"
	"github.com/safenet/safenet/internal/monitor"
	"github.com/safenet/safenet/internal/zone"
)

type recordingDispatcher struct {
	name string
	err  error

	mu     sync.Mutex
	alerts []alert.Alert
}

func (d *recordingDispatcher) Name() string { return d.name }

func (d *recordingDispatcher) Dispatch(_ context.Context, a alert.Alert) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, a)
	return nil
}

func (d *recordingDispatcher) delivered() []alert.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]alert.Alert{}, d.alerts...)
}

func TestService_Trigger(t *testing.T) {
	primary := &recordingDispatcher{name: "primary"}
	svc := alert.NewService(alert.ServiceConfig{
		Dispatchers: []alert.Dispatcher{primary},
		Logger:      zerolog.Nop(),
	})

	a, err := svc.Trigger(context.Background(), "sub_1", geo.Point{Lat: 52.37, Lon: 4.89}, "help")
	require.NoError(t, err)

	assert.Contains(t, a.ID, "alr_")
	assert.Equal(t, alert.KindEmergency, a.Kind)
	require.Len(t, primary.delivered(), 1)
	assert.Equal(t, "help", primary.delivered()[0].Message)
}

func TestService_TriggerInvalidLocation(t *testing.T) {
	svc := alert.NewService(alert.ServiceConfig{Logger: zerolog.Nop()})

	_, err := svc.Trigger(context.Background(), "sub_1", geo.Point{Lat: 0, Lon: 200}, "")
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestService_FailingChannelDoesNotBlockOthers(t *testing.T) {
	broken := &recordingDispatcher{name: "broken", err: assert.AnError}
	backup := &recordingDispatcher{name: "backup"}
	svc := alert.NewService(alert.ServiceConfig{
		Dispatchers: []alert.Dispatcher{broken, backup},
		Logger:      zerolog.Nop(),
	})

	_, err := svc.Trigger(context.Background(), "sub_1", geo.Point{Lat: 52.37, Lon: 4.89}, "help")
	require.NoError(t, err)
	assert.Len(t, backup.delivered(), 1)
}

func TestService_NotifyRouteRisk(t *testing.T) {
	primary := &recordingDispatcher{name: "primary"}
	svc := alert.NewService(alert.ServiceConfig{
		Dispatchers: []alert.Dispatcher{primary},
		Logger:      zerolog.Nop(),
	})

	start := geo.Point{Lat: 52.37, Lon: 4.89}
	a := svc.NotifyRouteRisk(context.Background(), "sub_1", start, 1.8)

	assert.Contains(t, a.ID, "alr_")
	assert.Equal(t, alert.KindRouteRisk, a.Kind)
	require.Len(t, primary.delivered(), 1)
	got := primary.delivered()[0]
	assert.Equal(t, "sub_1", got.SubjectID)
	assert.Equal(t, start, got.Location)
	assert.Equal(t, 1.8, got.RouteScore)
}

func TestService_HandleTransition(t *testing.T) {
	tests := []struct {
		name      string
		direction monitor.Direction
		class     zone.Classification
		wantKind  alert.Kind
		wantAlert bool
	}{
		{"enter danger", monitor.DirectionEnter, zone.ClassDanger, alert.KindZoneEntry, true},
		{"enter caution", monitor.DirectionEnter, zone.ClassCaution, alert.KindZoneEntry, true},
		{"enter safe", monitor.DirectionEnter, zone.ClassSafe, "", false},
		{"exit safe", monitor.DirectionExit, zone.ClassSafe, alert.KindZoneExit, true},
		{"exit danger", monitor.DirectionExit, zone.ClassDanger, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := &recordingDispatcher{name: "primary"}
			svc := alert.NewService(alert.ServiceConfig{
				Dispatchers: []alert.Dispatcher{primary},
				Logger:      zerolog.Nop(),
			})

			svc.HandleTransition(context.Background(), monitor.Event{
				SubjectID:      "sub_1",
				ZoneID:         "zn_1",
				ZoneName:       "Test Zone",
				Classification: tt.class,
				Direction:      tt.direction,
				Fix:            monitor.Fix{Point: geo.Point{Lat: 52.37, Lon: 4.89}},
				Confidence:     0.9,
			})

			if !tt.wantAlert {
				assert.Empty(t, primary.delivered())
				return
			}
			require.Len(t, primary.delivered(), 1)
			got := primary.delivered()[0]
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, "zn_1", got.ZoneID)
			assert.Equal(t, 0.9, got.Confidence)
		})
	}
}
