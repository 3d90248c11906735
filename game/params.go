package game

import "errors"

// BpsDenominator is the basis-point scale of commission rates.
const BpsDenominator = 10_000

// Params are the protocol constants shared by the validator and assembler.
type Params struct {
	GracePeriod       int64  `mapstructure:"grace_period" json:"grace_period"`
	CooldownBlocks    int64  `mapstructure:"cooldown_blocks" json:"cooldown_blocks"`
	CooldownMargin    int64  `mapstructure:"cooldown_margin" json:"cooldown_margin"`
	DrainDivisor      uint64 `mapstructure:"drain_divisor" json:"drain_divisor"`
	AbandonmentWindow int64  `mapstructure:"abandonment_window" json:"abandonment_window"`
	MinFee            uint64 `mapstructure:"min_fee" json:"min_fee"`
}

// DefaultParams returns the live protocol constants. The abandonment window
// is 90 days at 720 blocks per day.
func DefaultParams() Params {
	return Params{
		GracePeriod:       720,
		CooldownBlocks:    30,
		CooldownMargin:    10,
		DrainDivisor:      5,
		AbandonmentWindow: 90 * 720,
		MinFee:            1_100_000,
	}
}

// Validate checks that p describes a usable protocol.
func (p Params) Validate() error {
	switch {
	case p.GracePeriod <= 0:
		return errors.New("grace_period must be positive")
	case p.CooldownBlocks <= 0:
		return errors.New("cooldown_blocks must be positive")
	case p.CooldownMargin < 1:
		return errors.New("cooldown_margin must be positive")
	case p.DrainDivisor < 2:
		return errors.New("drain_divisor must be at least 2")
	case p.AbandonmentWindow <= 0:
		return errors.New("abandonment_window must be positive")
	case p.MinFee == 0:
		return errors.New("min_fee must be positive")
	}
	return nil
}

// DrainClaim returns the portion of stake released by one drain step. When
// the floor share is zero the whole remainder is released so draining
// always terminates.
func (p Params) DrainClaim(stake uint64) uint64 {
	claim := stake / p.DrainDivisor
	if claim == 0 {
		return stake
	}
	return claim
}
