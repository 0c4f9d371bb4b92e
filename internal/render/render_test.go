package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weiawesome/live-cursors/internal/cursor"
	"github.com/weiawesome/live-cursors/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestColorForCyclesPalette(t *testing.T) {
	require.Equal(t, "#DC2626", ColorFor(0))
	require.Equal(t, "#DB2777", ColorFor(4))
	require.Equal(t, "#DC2626", ColorFor(5))
	require.Equal(t, "#D97706", ColorFor(11))
}

func TestWhoIsHere(t *testing.T) {
	require.Equal(t, "There are no other users online.", WhoIsHere(0))
	require.Equal(t, "There are 3 other users online.", WhoIsHere(3))
}

func TestProjectNoCursorNoOverlay(t *testing.T) {
	f := Project(Input{State: cursor.Chat{}})
	require.Nil(t, f.Overlay)
	require.False(t, f.HidePointer)
}

func TestProjectChatOverlay(t *testing.T) {
	at := &domain.Point{X: 10, Y: 20}

	f := Project(Input{State: cursor.Chat{}, Cursor: at})
	require.True(t, f.HidePointer)
	require.Equal(t, ChatPlaceholder, f.Overlay.Placeholder)
	require.Empty(t, f.Overlay.PreviousLine)

	f = Project(Input{State: cursor.Chat{Message: "there", PreviousMessage: strPtr("hi")}, Cursor: at})
	require.Equal(t, "hi", f.Overlay.PreviousLine)
	require.Equal(t, "there", f.Overlay.Line)
	require.Empty(t, f.Overlay.Placeholder)
	require.Equal(t, *at, f.Overlay.At)
}

func TestProjectSelectorAndReaction(t *testing.T) {
	at := &domain.Point{X: 1, Y: 1}

	f := Project(Input{State: cursor.ReactionSelector{}, Cursor: at})
	require.Equal(t, domain.Reactions, f.Overlay.Choices)
	require.False(t, f.HidePointer)

	f = Project(Input{State: cursor.Reaction{Reaction: "🔥"}, Cursor: at})
	require.Equal(t, "🔥", f.Overlay.Glyph)

	f = Project(Input{State: cursor.Hidden{}, Cursor: at})
	require.Nil(t, f.Overlay)
}

func TestProjectPeersAndParticles(t *testing.T) {
	peers := []domain.Peer{
		{ConnectionID: 7, Presence: domain.Presence{Cursor: &domain.Point{X: 3, Y: 4}, Message: "yo"}},
		{ConnectionID: 8, Presence: domain.Presence{Message: "away"}},
	}
	particles := []domain.Particle{
		{ID: "a", Value: "🔥", Point: domain.Point{X: 9, Y: 9}, Timestamp: time.Now()},
	}

	f := Project(Input{State: cursor.Hidden{}, Peers: peers, Particles: particles})

	require.Equal(t, "There are 2 other users online.", f.WhoIsHere)
	require.Equal(t, []PeerCursor{{ConnectionID: 7, Color: "#059669", At: domain.Point{X: 3, Y: 4}, Message: "yo"}}, f.Peers)
	require.Equal(t, []Sprite{{Key: "a", Value: "🔥", At: domain.Point{X: 9, Y: 9}}}, f.Sprites)
}

func TestWriteText(t *testing.T) {
	f := Project(Input{
		State:  cursor.Chat{Message: "there", PreviousMessage: strPtr("hi")},
		Cursor: &domain.Point{X: 1, Y: 2},
		Peers: []domain.Peer{
			{ConnectionID: 1, Presence: domain.Presence{Cursor: &domain.Point{X: 5, Y: 6}, Message: "hey"}},
		},
		Particles: []domain.Particle{{ID: "p1", Value: "🎉", Point: domain.Point{X: 7, Y: 8}}},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, f))
	require.Equal(t, "who: There are 1 other users online.\n"+
		"self: chat at (1,2)\n"+
		"  said: hi\n"+
		"  chat: there\n"+
		"peer 1 #D97706 at (5,6) says \"hey\"\n"+
		"particle p1 🎉 at (7,8)\n", buf.String())
}
