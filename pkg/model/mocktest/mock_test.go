package mocktest

import (
	"context"
	"errors"
	"testing"

	"github.com/lowlat/streamcribe/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestModelReplaysScriptInOrder(t *testing.T) {
	m := New(
		Response{Segment: model.DecodedSegment{Text: "hello"}},
		Response{Segment: model.DecodedSegment{Text: "world"}},
	)

	seg, err := m.Transcribe(context.Background(), []float32{0, 0}, 16000, "")
	require.NoError(t, err)
	require.Equal(t, "hello", seg.Text)

	seg, err = m.Transcribe(context.Background(), []float32{0, 0}, 16000, "hello")
	require.NoError(t, err)
	require.Equal(t, "world", seg.Text)
}

func TestModelErrorsPastEndOfScript(t *testing.T) {
	m := New(Response{Segment: model.DecodedSegment{Text: "only"}})

	_, err := m.Transcribe(context.Background(), []float32{0}, 16000, "")
	require.NoError(t, err)

	_, err = m.Transcribe(context.Background(), []float32{0}, 16000, "")
	require.Error(t, err)
}

func TestModelRecordsCalls(t *testing.T) {
	m := New(Response{Segment: model.DecodedSegment{Text: "x"}})
	_, err := m.Transcribe(context.Background(), make([]float32, 480), 16000, "prior context")
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, 480, calls[0].NumSamples)
	require.Equal(t, 16000, calls[0].SampleRate)
	require.Equal(t, "prior context", calls[0].PromptText)
}

func TestModelCloseTracksStateAndError(t *testing.T) {
	m := New()
	require.False(t, m.Closed())

	wantErr := errors.New("boom")
	m.SetCloseErr(wantErr)

	require.ErrorIs(t, m.Close(), wantErr)
	require.True(t, m.Closed())
}

func TestModelRespectsContextCancellation(t *testing.T) {
	m := New(Response{Segment: model.DecodedSegment{Text: "x"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Transcribe(ctx, []float32{0}, 16000, "")
	require.Error(t, err)
}
