package domain

import "time"

// ReactionEvent is the broadcast payload for one emitted reaction.
type ReactionEvent struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Value string `json:"value"`
}

// Point returns the event position.
func (e ReactionEvent) Point() Point {
	return Point{X: e.X, Y: e.Y}
}

// Particle is one rendered reaction. Particles are immutable once created.
type Particle struct {
	ID        string    `json:"id"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Point     Point     `json:"point"`
}

// Reactions is the emoji set offered by the reaction selector.
var Reactions = []string{"🎉", "🔥", "😍", "👀", "😱", "🙏"}
