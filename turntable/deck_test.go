package turntable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() Catalog {
	return Catalog{
		{DisplayName: "ahh", MainClip: "ahh.wav", ForwardClip: "ahh_fwd.wav", BackwardClip: "ahh_back.wav"},
		{DisplayName: "fresh", MainClip: "fresh.wav", ForwardClip: "fresh_fwd.wav", BackwardClip: "fresh_back.wav"},
	}
}

type testDeck struct {
	*Deck
	player   *recordingPlayer
	renderer *recordingRenderer
	sched    *manualScheduler
}

func newTestDeck(t *testing.T, catalog Catalog) testDeck {
	t.Helper()
	td := testDeck{
		player:   &recordingPlayer{},
		renderer: &recordingRenderer{},
		sched:    &manualScheduler{},
	}
	d, err := NewDeck(DefaultDeckConfig(MustUnitConverter(1)), catalog, td.player, td.renderer, td.sched, nil)
	require.NoError(t, err)
	td.Deck = d
	return td
}

func TestDeck_LoadsFirstSample(t *testing.T) {
	td := newTestDeck(t, testCatalog())

	require.Len(t, td.player.loads, 1)
	assert.Equal(t, "ahh", td.player.loads[0].DisplayName)

	s, ok := td.ActiveSample()
	require.True(t, ok)
	assert.Equal(t, "ahh", s.DisplayName)
}

func TestDeck_SelectSample(t *testing.T) {
	td := newTestDeck(t, testCatalog())

	_, err := td.SelectSample("ahh")
	require.NoError(t, err)
	assert.Len(t, td.player.loads, 1, "reselecting the active sample must not reload it")

	s, err := td.SelectSample("fresh")
	require.NoError(t, err)
	assert.Equal(t, "fresh", s.DisplayName)
	require.Len(t, td.player.loads, 2)
	assert.Equal(t, "fresh", td.player.loads[1].DisplayName)

	_, err = td.SelectSample("nope")
	assert.ErrorIs(t, err, ErrUnknownSample)
	active, _ := td.ActiveSample()
	assert.Equal(t, "fresh", active.DisplayName)
}

func TestDeck_ScratchPlaysPitchedClip(t *testing.T) {
	td := newTestDeck(t, testCatalog())
	td.SetLayout(CenteredLayout(400, 400, 400, 400))

	td.ContactBegin(sample(100, 100, 0))
	pb, ok := td.ContactMove(sample(100, 160, 100))
	require.True(t, ok)

	assert.Equal(t, PlayBackward, pb.Command.Kind)
	assert.Equal(t, ClipRef("ahh_back.wav"), pb.Clip)
	assert.InDelta(t, 0.5+0.5*500.0/700.0, pb.Pitch, 1e-12)

	require.Len(t, td.player.plays, 1)
	assert.Equal(t, pb.Clip, td.player.plays[0].clip)
	assert.Equal(t, pb.Pitch, td.player.plays[0].pitch)
}

func TestDeck_OneShotPlaysMainAtMidPitch(t *testing.T) {
	td := newTestDeck(t, testCatalog())

	td.ContactBegin(sample(0, 0, 0))
	pb, ok := td.ContactMove(sample(90, 0, 5))
	require.True(t, ok)

	assert.Equal(t, ClipRef("ahh.wav"), pb.Clip)
	assert.Equal(t, 1.0, pb.Pitch)
}

func TestDeck_EmptyCatalogDropsPlayback(t *testing.T) {
	td := newTestDeck(t, nil)
	assert.Empty(t, td.player.loads)

	td.ContactBegin(sample(0, 0, 0))
	_, ok := td.ContactMove(sample(0, 100, 10))
	assert.False(t, ok)
	assert.Empty(t, td.player.plays)
}

func TestDeck_ContactStopsAndRestartsPlatter(t *testing.T) {
	td := newTestDeck(t, testCatalog())
	td.SetLayout(CenteredLayout(400, 400, 400, 400))
	td.Resume()
	assert.Equal(t, ModeIdle, td.Platter().Mode())

	td.ContactBegin(sample(300, 200, 0))
	assert.Equal(t, ModeActive, td.Platter().Mode())
	assert.Equal(t, 0, td.sched.pending())

	// Resuming while the finger is down must not restart the spin.
	td.Resume()
	assert.Equal(t, 0, td.sched.pending())

	td.ContactMove(sample(300, 300, 10))
	assert.InDelta(t, 45.0, td.Platter().Angle(), 1e-9)

	td.ContactEnd()
	assert.Equal(t, ModeIdle, td.Platter().Mode())
	assert.Equal(t, 1, td.sched.pending())
}

func TestDeck_PauseStopsAnimation(t *testing.T) {
	td := newTestDeck(t, testCatalog())
	td.SetLayout(CenteredLayout(400, 400, 400, 400))
	td.Resume()

	td.Pause()
	td.sched.advance(DefaultTickInterval * 5)
	assert.Equal(t, 0.0, td.Platter().Angle())
}

func TestDeck_Snapshot(t *testing.T) {
	td := newTestDeck(t, testCatalog())

	snap := td.Snapshot()
	assert.Equal(t, "ahh", snap.Sample)
	assert.Equal(t, []string{"ahh", "fresh"}, snap.Samples)
	assert.False(t, snap.HasPivot)
	assert.False(t, snap.InContact)

	td.SetLayout(CenteredLayout(480, 800, 400, 400))
	td.ContactBegin(sample(0, 0, 0))
	snap = td.Snapshot()
	assert.True(t, snap.HasPivot)
	assert.True(t, snap.InContact)
	assert.Equal(t, 240.0, snap.Transform.PivotX)
}

func TestDeckConfig_Validate(t *testing.T) {
	cfg := DefaultDeckConfig(MustUnitConverter(1))
	assert.NoError(t, cfg.Validate())

	cfg.Pitch.PitchMin = 0
	_, err := NewDeck(cfg, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestDeck_InitialSample(t *testing.T) {
	cfg := DefaultDeckConfig(MustUnitConverter(1))
	cfg.InitialSample = "fresh"
	player := &recordingPlayer{}

	d, err := NewDeck(cfg, testCatalog(), player, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, player.loads, 1)
	assert.Equal(t, "fresh", player.loads[0].DisplayName)

	cfg.InitialSample = "missing"
	d, err = NewDeck(cfg, testCatalog(), nil, nil, nil, nil)
	require.NoError(t, err)
	s, _ := d.ActiveSample()
	assert.Equal(t, "ahh", s.DisplayName, "unknown names fall back to the first sample")
}
