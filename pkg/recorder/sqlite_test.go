package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-teleop/codelets/pkg/config"
	customlog "github.com/open-teleop/codelets/pkg/log"
	"github.com/open-teleop/codelets/pkg/sight"
)

func openRecorder(t *testing.T, batch int) (*Recorder, *sight.Store) {
	t.Helper()
	store := sight.NewStore()
	r, err := Open(config.RecorderConfig{
		Path:      filepath.Join(t.TempDir(), "sight.sqlite3"),
		BatchSize: batch,
	}, store, customlog.Discard())
	require.NoError(t, err)
	return r, store
}

func TestRecorderBatches(t *testing.T) {
	r, _ := openRecorder(t, 2)
	defer r.Stop()

	now := time.Now()
	require.NoError(t, r.Write(sight.Sample{Node: "controller", Name: "control", Value: 1.0, Timestamp: now}))
	assert.Equal(t, int64(0), r.Written())

	require.NoError(t, r.Write(sight.Sample{Node: "controller", Name: "control", Value: 0.5, Timestamp: now}))
	assert.Equal(t, int64(2), r.Written())

	require.NoError(t, r.Write(sight.Sample{Node: "ping", Name: "message", Value: "Hello World!", Timestamp: now}))
	require.NoError(t, r.Flush())
	assert.Equal(t, int64(3), r.Written())

	samples, err := r.Samples("controller")
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 1.0, samples[0].Value)
	assert.Equal(t, 0.5, samples[1].Value)
	assert.WithinDuration(t, now, samples[0].Timestamp, time.Millisecond)

	samples, err = r.Samples("ping")
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "Hello World!", samples[0].Value)
}

func TestRecorderSubscribesToStore(t *testing.T) {
	r, store := openRecorder(t, 100)
	require.NotEmpty(t, r.RunID())

	require.NoError(t, r.Start(context.Background()))
	store.Show("controller", "gain", 1.0)
	store.Show("controller", "reference (m)", 1.0)

	assert.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.pending)+int(r.written) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Flush())
	samples, err := r.Samples("controller")
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	require.NoError(t, r.Stop())
}
