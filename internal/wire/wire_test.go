package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Myriad-Dreamin/tinymist-core/internal/fileid"
	"github.com/Myriad-Dreamin/tinymist-core/internal/project"
)

func TestDecodeCompileInterrupt(t *testing.T) {
	i, err := DecodeInterrupt([]byte(`{"type":"compile","id":"primary"}`))
	require.NoError(t, err)
	compile, ok := i.(project.InterruptCompile)
	require.True(t, ok)
	assert.Equal(t, project.PrimaryId, compile.Id)
}

func TestDecodeChangeTask(t *testing.T) {
	i, err := DecodeInterrupt([]byte(`{
		"type": "changeTask",
		"id": "export-1",
		"entry": {"path": "/main.typ", "inactive": false},
		"inputs": {"theme": "dark"}
	}`))
	require.NoError(t, err)
	ct, ok := i.(project.InterruptChangeTask)
	require.True(t, ok)
	require.NotNil(t, ct.Change.Entry)
	assert.Equal(t, fileid.New("/main.typ"), ct.Change.Entry.Entry)
	assert.Equal(t, "dark", ct.Change.Inputs["theme"])
}

func TestDecodeMemoryUpdate(t *testing.T) {
	i, err := DecodeInterrupt([]byte(`{
		"type": "memory",
		"kind": "update",
		"changes": {"inserts": [{"path": "/ws/a.typ", "content": "= A"}], "removes": ["/ws/b.typ"]}
	}`))
	require.NoError(t, err)
	mem, ok := i.(project.InterruptMemory)
	require.True(t, ok)
	assert.Equal(t, project.MemoryUpdate, mem.Event.Kind)
	require.Len(t, mem.Event.Changes.Inserts, 1)
	assert.Equal(t, "/ws/a.typ", mem.Event.Changes.Inserts[0].Path)
	assert.True(t, mem.Event.Changes.Inserts[0].Snap.IsOk())
	assert.Equal(t, "= A", string(mem.Event.Changes.Inserts[0].Snap.Bytes.Data()))
	assert.Equal(t, []string{"/ws/b.typ"}, mem.Event.Changes.Removes)
}

func TestDecodeFsWithUpstreamTick(t *testing.T) {
	i, err := DecodeInterrupt([]byte(`{"type":"fs","changes":{},"upstreamTick":42}`))
	require.NoError(t, err)
	fs, ok := i.(project.InterruptFs)
	require.True(t, ok)
	require.NotNil(t, fs.Event.Upstream)
	assert.Equal(t, uint64(42), fs.Event.Upstream.Tick)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := DecodeInterrupt([]byte(`{"type":"reboot"}`))
	assert.Error(t, err)

	_, err = DecodeInterrupt([]byte(`{"id":"missing-type"}`))
	assert.Error(t, err)

	_, err = DecodeInterrupt([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeReportRoundTripsThroughSchemaShape(t *testing.T) {
	data, err := EncodeReport(7, project.PrimaryId, project.CompileReport{
		Kind:      project.ReportCompileSuccess,
		File:      fileid.New("/main.typ"),
		NWarnings: 2,
		Duration:  1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "compileSuccess", decoded["kind"])
	assert.Equal(t, float64(7), decoded["revision"])
	assert.Equal(t, "/main.typ", decoded["file"])
	assert.Equal(t, float64(2), decoded["nWarnings"])
	assert.Equal(t, float64(1500), decoded["durationMs"])

	resolved, err := CompileReportSchema().Resolve(nil)
	require.NoError(t, err)
	var instance any
	require.NoError(t, json.Unmarshal(data, &instance))
	assert.NoError(t, resolved.Validate(instance))
}
