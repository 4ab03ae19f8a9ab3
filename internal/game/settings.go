// internal/game/settings.go
package game

import "time"

// Redundancy controls repeated delivery of a notification that clients must not miss.
// Sends is the size of the immediate burst, spaced Interval apart. Backup, when > 0,
// schedules one more send after that delay if the game is still in the same state.
type Redundancy struct {
	Sends    int           `yaml:"sends"`
	Interval time.Duration `yaml:"interval"`
	Backup   time.Duration `yaml:"backup"`
}

// Settings are the tunables of every game a Coordinator runs.
type Settings struct {
	DefaultBalance int `yaml:"default_balance"`
	InitialBid     int `yaml:"initial_bid"`
	DefaultRounds  int `yaml:"default_rounds"`
	// MaxRounds caps the round count a lobby may ask for.
	MaxRounds int `yaml:"max_rounds"`

	BiddingWindow time.Duration `yaml:"bidding_window"`
	BidExtension  time.Duration `yaml:"bid_extension"`
	SettleDelay   time.Duration `yaml:"settle_delay"`
	// RevealTimeout advances a revealed round when not every player confirms readiness. 0 disables it.
	RevealTimeout time.Duration `yaml:"reveal_timeout"`
	TeardownDelay time.Duration `yaml:"teardown_delay"`

	RoundStart Redundancy `yaml:"round_start"`
	GameEnd    Redundancy `yaml:"game_end"`

	PrefetchParallelism int           `yaml:"prefetch_parallelism"`
	ExternalTimeout     time.Duration `yaml:"external_timeout"`
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultBalance: 2000,
		InitialBid:     100,
		DefaultRounds:  3,
		MaxRounds:      20,

		BiddingWindow: 30 * time.Second,
		BidExtension:  15 * time.Second,
		SettleDelay:   1 * time.Second,
		RevealTimeout: 20 * time.Second,
		TeardownDelay: 5 * time.Second,

		RoundStart: Redundancy{Sends: 3, Interval: 200 * time.Millisecond, Backup: 2 * time.Second},
		GameEnd:    Redundancy{Sends: 3, Interval: 500 * time.Millisecond, Backup: 2 * time.Second},

		PrefetchParallelism: 4,
		ExternalTimeout:     5 * time.Second,
	}
}

// normalized fills zero values that would make a game unplayable.
func (s Settings) normalized() Settings {
	def := DefaultSettings()
	if s.DefaultBalance <= 0 {
		s.DefaultBalance = def.DefaultBalance
	}
	if s.InitialBid <= 0 {
		s.InitialBid = def.InitialBid
	}
	if s.DefaultRounds <= 0 {
		s.DefaultRounds = def.DefaultRounds
	}
	if s.MaxRounds <= 0 {
		s.MaxRounds = def.MaxRounds
	}
	if s.DefaultRounds > s.MaxRounds {
		s.DefaultRounds = s.MaxRounds
	}
	if s.BiddingWindow <= 0 {
		s.BiddingWindow = def.BiddingWindow
	}
	if s.BidExtension <= 0 {
		s.BidExtension = def.BidExtension
	}
	if s.SettleDelay < 0 {
		s.SettleDelay = 0
	}
	if s.RevealTimeout < 0 {
		s.RevealTimeout = 0
	}
	if s.TeardownDelay < 0 {
		s.TeardownDelay = 0
	}
	if s.RoundStart.Sends <= 0 {
		s.RoundStart.Sends = 1
	}
	if s.GameEnd.Sends <= 0 {
		s.GameEnd.Sends = 1
	}
	if s.PrefetchParallelism <= 0 {
		s.PrefetchParallelism = def.PrefetchParallelism
	}
	if s.ExternalTimeout <= 0 {
		s.ExternalTimeout = def.ExternalTimeout
	}
	return s
}
