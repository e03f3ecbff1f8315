// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package sim is a small colony simulation that stands in for a real game.
// All of its state is owned by the main loop; nothing here is safe for
// concurrent use.
package sim

import (
	"math/rand/v2"
	"sort"

	"github.com/samber/oops"
)

// Event types the simulation publishes.
const (
	EventColonistAte = "colonist_ate"
	EventPawnKilled  = "pawn_killed"
	EventDateChanged = "date_changed"
	EventGameState   = "game_state"
)

// Events lists every event type the simulation publishes.
var Events = []string{EventColonistAte, EventPawnKilled, EventDateChanged, EventGameState}

// Simulation constants.
const (
	TicksPerDay = 60000
	MapSize     = 100
	MinSpeed    = 1
	MaxSpeed    = 4

	mealInterval = 2500
	hungerPerDay = 1.6
)

// CodeInvalidSpeed marks a speed outside MinSpeed..MaxSpeed.
const CodeInvalidSpeed = "INVALID_SPEED"

// Publisher receives simulation events.
type Publisher interface {
	Publish(eventType string, data any)
}

// Position is a map cell.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Colonist is one simulated pawn.
type Colonist struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Gender   string   `json:"gender"`
	Age      int      `json:"age"`
	Health   float64  `json:"health"`
	Mood     float64  `json:"mood"`
	Hunger   float64  `json:"hunger"`
	Position Position `json:"position"`
	Dead     bool     `json:"dead"`
}

// GameState summarizes the world.
type GameState struct {
	GameTick      uint64  `json:"game_tick"`
	Day           int     `json:"day"`
	ColonistCount int     `json:"colonist_count"`
	ColonyWealth  float64 `json:"colony_wealth"`
	Storyteller   string  `json:"storyteller"`
	IsPaused      bool    `json:"is_paused"`
	Speed         int     `json:"speed"`
}

// World is the simulation state.
type World struct {
	pub         Publisher
	rng         *rand.Rand
	tick        uint64
	paused      bool
	speed       int
	storyteller string
	wealth      float64
	colonists   []*Colonist
}

// Option configures a World.
type Option func(*World)

// WithSeed makes the world deterministic.
func WithSeed(seed uint64) Option {
	return func(w *World) {
		w.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithColonists replaces the starting colonists.
func WithColonists(cs ...Colonist) Option {
	return func(w *World) {
		w.colonists = w.colonists[:0]
		for i := range cs {
			c := cs[i]
			w.colonists = append(w.colonists, &c)
		}
	}
}

var startingColonists = []Colonist{
	{ID: 101, Name: "Ana", Gender: "female", Age: 31},
	{ID: 102, Name: "Bram", Gender: "male", Age: 44},
	{ID: 103, Name: "Cole", Gender: "male", Age: 23},
}

// NewWorld creates a world that publishes through pub. pub may be nil.
func NewWorld(pub Publisher, opts ...Option) *World {
	w := &World{
		pub:         pub,
		rng:         rand.New(rand.NewPCG(1, 2)),
		speed:       MinSpeed,
		storyteller: "Cassandra Classic",
		wealth:      12000,
	}
	for i := range startingColonists {
		c := startingColonists[i]
		w.colonists = append(w.colonists, &c)
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, c := range w.colonists {
		if c.Health == 0 && !c.Dead {
			c.Health = 1
		}
		if c.Mood == 0 {
			c.Mood = 0.5
		}
		if c.Hunger == 0 {
			c.Hunger = 1
		}
		if c.Position == (Position{}) {
			c.Position = Position{X: w.rng.IntN(MapSize), Z: w.rng.IntN(MapSize)}
		}
	}
	return w
}

func (w *World) publish(eventType string, data any) {
	if w.pub != nil {
		w.pub.Publish(eventType, data)
	}
}

// Step advances the world by its speed in game ticks, or not at all while paused.
func (w *World) Step() {
	if w.paused {
		return
	}
	for range w.speed {
		w.advance()
	}
}

func (w *World) advance() {
	w.tick++

	if w.tick%TicksPerDay == 0 {
		w.publish(EventDateChanged, map[string]any{"day": w.Day(), "ticks": w.tick})
	}

	for _, c := range w.colonists {
		if c.Dead {
			continue
		}
		w.wander(c)
		c.Hunger = max(0, c.Hunger-hungerPerDay/TicksPerDay)
		if c.Hunger <= 0 {
			c.Health -= 0.0005
		}
		if w.tick%mealInterval == uint64(c.ID)%mealInterval {
			w.eat(c)
		}
		if c.Health <= 0 {
			w.kill(c, "Starvation")
		}
	}
}

func (w *World) wander(c *Colonist) {
	if w.rng.IntN(30) != 0 {
		return
	}
	c.Position.X = clamp(c.Position.X+w.rng.IntN(3)-1, 0, MapSize-1)
	c.Position.Z = clamp(c.Position.Z+w.rng.IntN(3)-1, 0, MapSize-1)
}

func (w *World) eat(c *Colonist) {
	before := c.Hunger
	if w.rng.IntN(10) == 0 {
		c.Mood = max(0, c.Mood-0.05)
		return
	}
	c.Hunger = min(1, c.Hunger+0.4)
	c.Mood = min(1, c.Mood+0.02)
	w.wealth -= 5
	w.publish(EventColonistAte, map[string]any{
		"colonist": map[string]any{
			"id":           c.ID,
			"name":         c.Name,
			"hungerBefore": before,
			"hungerAfter":  c.Hunger,
		},
		"food":  map[string]any{"defName": "MealSimple", "label": "simple meal"},
		"ticks": w.tick,
	})
}

func (w *World) kill(c *Colonist, cause string) {
	c.Dead = true
	c.Health = 0
	w.publish(EventPawnKilled, map[string]any{
		"pawn": map[string]any{
			"id":         c.ID,
			"name":       c.Name,
			"isColonist": true,
		},
		"cause": cause,
		"ticks": w.tick,
	})
}

// Kill marks a colonist dead. Returns false if no living colonist has id.
func (w *World) Kill(id int, cause string) bool {
	for _, c := range w.colonists {
		if c.ID == id && !c.Dead {
			w.kill(c, cause)
			return true
		}
	}
	return false
}

// Tick returns the current game tick.
func (w *World) Tick() uint64 { return w.tick }

// Day returns the in-game day, starting at 1.
func (w *World) Day() int { return int(w.tick/TicksPerDay) + 1 }

// Paused reports whether the world is paused.
func (w *World) Paused() bool { return w.paused }

// Speed returns the game speed multiplier.
func (w *World) Speed() int { return w.speed }

// Pause stops the world from advancing.
func (w *World) Pause() {
	if w.paused {
		return
	}
	w.paused = true
	w.publish(EventGameState, w.State())
}

// Resume lets the world advance again.
func (w *World) Resume() {
	if !w.paused {
		return
	}
	w.paused = false
	w.publish(EventGameState, w.State())
}

// SetSpeed changes how many game ticks pass per Step.
func (w *World) SetSpeed(speed int) error {
	if speed < MinSpeed || speed > MaxSpeed {
		return oops.Code(CodeInvalidSpeed).With("speed", speed).
			Errorf("speed must be between %d and %d", MinSpeed, MaxSpeed)
	}
	w.speed = speed
	w.publish(EventGameState, w.State())
	return nil
}

// State returns a summary of the world.
func (w *World) State() GameState {
	alive := 0
	for _, c := range w.colonists {
		if !c.Dead {
			alive++
		}
	}
	return GameState{
		GameTick:      w.tick,
		Day:           w.Day(),
		ColonistCount: alive,
		ColonyWealth:  w.wealth,
		Storyteller:   w.storyteller,
		IsPaused:      w.paused,
		Speed:         w.speed,
	}
}

// Colonists returns copies of the living colonists, ordered by ID.
func (w *World) Colonists() []Colonist {
	out := make([]Colonist, 0, len(w.colonists))
	for _, c := range w.colonists {
		if !c.Dead {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Colonist returns a copy of the colonist with id, dead or alive.
func (w *World) Colonist(id int) (Colonist, bool) {
	for _, c := range w.colonists {
		if c.ID == id {
			return *c, true
		}
	}
	return Colonist{}, false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
