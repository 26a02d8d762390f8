package baseline

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tractorcare/tractorcare-go/internal/blobstore"
	"github.com/tractorcare/tractorcare-go/internal/conf"
	"github.com/tractorcare/tractorcare-go/internal/datastore"
	"github.com/tractorcare/tractorcare-go/internal/errors"
)

func testWAV(t *testing.T, freq float64, seconds float64) []byte {
	t.Helper()

	sampleRate := 16000
	n := int(seconds * float64(sampleRate))
	dataSize := n * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < n; i++ {
		sample := 0.4 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.Write(&buf, binary.LittleEndian, int16(sample*32767))
	}
	return buf.Bytes()
}

func newTestBuilder(t *testing.T) (*Builder, datastore.Interface) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Audio = conf.AudioSettings{
		SampleRate:     16000,
		Duration:       10.0,
		NumCoeffs:      40,
		NumFrames:      100,
		MinDuration:    0.5,
		MaxFileSizeMB:  50,
		HighPassHz:     100.0,
		HighPassPasses: 5,
	}
	settings.Baseline = conf.BaselineSettings{
		TargetSamples:   5,
		MinSamples:      3,
		ConfidenceScale: 10.0,
	}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	blobs, err := blobstore.New(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	require.NoError(t, ds.SaveMachine(&datastore.Machine{
		MachineID:      "TR-TEST",
		Model:          "MF_240",
		PurchaseDate:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EngineHours:    500,
		UsageIntensity: datastore.UsageModerate,
		BaselineStatus: datastore.BaselinePending,
	}))

	return NewBuilder(settings, ds, blobs), ds
}

func TestCollectionLifecycle(t *testing.T) {
	t.Parallel()

	builder, ds := newTestBuilder(t)

	session, err := builder.StartCollection("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, 5, session.TargetSamples)

	machine, err := ds.GetMachine("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, datastore.BaselineCollecting, machine.BaselineStatus)

	// Starting again while collecting is rejected.
	_, err = builder.StartCollection("TR-TEST")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAlreadyCollecting))

	for _, freq := range []float64{100, 105, 110} {
		session, err = builder.AddSample("TR-TEST", testWAV(t, freq, 1.0))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, session.CollectedSamples)

	result, err := builder.Finalize("TR-TEST", "idle")
	require.NoError(t, err)
	assert.Equal(t, 3, result.SampleCount)
	assert.GreaterOrEqual(t, result.Confidence, 0.5)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.InDelta(t, 500.0, result.EngineHours, 0.001)
	assert.Equal(t, "idle", result.LoadCondition)
	assert.Len(t, []float64(result.Mean), 4000)

	machine, err = ds.GetMachine("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, datastore.BaselineCompleted, machine.BaselineStatus)

	active, err := ds.ActiveBaseline("TR-TEST")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, result.ID, active.ID)

	// Session is closed; a new sample needs a new collection.
	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveCollection))
}

func TestFinalizeRequiresMinimumSamples(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	_, err := builder.StartCollection("TR-TEST")
	require.NoError(t, err)

	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
	require.NoError(t, err)
	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
	require.NoError(t, err)

	_, err = builder.Finalize("TR-TEST", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientSamples))
}

func TestAddSampleRejectsShortAudio(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	_, err := builder.StartCollection("TR-TEST")
	require.NoError(t, err)

	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 0.1))
	require.Error(t, err)

	session, err := builder.DS.CollectingSession("TR-TEST")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Zero(t, session.CollectedSamples, "rejected samples must not count")
}

func TestFinalizeWithoutSession(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	_, err := builder.Finalize("TR-TEST", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoActiveCollection))
}

func TestDeleteAndReactivate(t *testing.T) {
	t.Parallel()

	builder, ds := newTestBuilder(t)

	_, err := builder.StartCollection("TR-TEST")
	require.NoError(t, err)
	for range 3 {
		_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
		require.NoError(t, err)
	}
	created, err := builder.Finalize("TR-TEST", "")
	require.NoError(t, err)
	assert.Equal(t, LoadConditionNormal, created.LoadCondition)

	deleted, err := builder.Delete("TR-TEST")
	require.NoError(t, err)
	assert.True(t, deleted)

	machine, err := ds.GetMachine("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, datastore.BaselinePending, machine.BaselineStatus)

	status, err := builder.Status("TR-TEST")
	require.NoError(t, err)
	assert.False(t, status.HasActive)

	require.NoError(t, builder.Reactivate("TR-TEST", created.ID))

	status, err = builder.Status("TR-TEST")
	require.NoError(t, err)
	assert.True(t, status.HasActive)
	assert.Equal(t, created.ID, status.ActiveBaselineID)

	machine, err = ds.GetMachine("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, datastore.BaselineCompleted, machine.BaselineStatus)
}

func TestDeleteAbandonsCollectingSession(t *testing.T) {
	t.Parallel()

	builder, ds := newTestBuilder(t)

	_, err := builder.StartCollection("TR-TEST")
	require.NoError(t, err)
	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
	require.NoError(t, err)

	// No active baseline yet; delete still tears down the collection.
	deleted, err := builder.Delete("TR-TEST")
	require.NoError(t, err)
	assert.False(t, deleted)

	session, err := ds.CollectingSession("TR-TEST")
	require.NoError(t, err)
	assert.Nil(t, session, "abandoned session must not be collecting")

	machine, err := ds.GetMachine("TR-TEST")
	require.NoError(t, err)
	assert.Equal(t, datastore.BaselinePending, machine.BaselineStatus)

	// A fresh collection can start right away.
	_, err = builder.StartCollection("TR-TEST")
	require.NoError(t, err)
}

func TestStatusReportsCollection(t *testing.T) {
	t.Parallel()

	builder, _ := newTestBuilder(t)

	status, err := builder.Status("TR-TEST")
	require.NoError(t, err)
	assert.False(t, status.HasActive)
	assert.False(t, status.Collecting)

	_, err = builder.StartCollection("TR-TEST")
	require.NoError(t, err)
	_, err = builder.AddSample("TR-TEST", testWAV(t, 100, 1.0))
	require.NoError(t, err)

	status, err = builder.Status("TR-TEST")
	require.NoError(t, err)
	assert.True(t, status.Collecting)
	assert.Equal(t, 1, status.CollectedSamples)
	assert.Equal(t, 5, status.TargetSamples)
}
