package rules

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tolelom/tolgame/game"
)

// Split is the distribution of a resolved game's participation pool.
type Split struct {
	Judge   uint64 // paid to each judge
	Winner  uint64
	Creator uint64
}

// share returns floor(pool * bps / 10000).
func share(pool uint64, bps int64) uint64 {
	x := new(uint256.Int).SetUint64(pool)
	x.Mul(x, uint256.NewInt(uint64(bps)))
	x.Div(x, uint256.NewInt(game.BpsDenominator))
	return x.Uint64()
}

// SplitPool divides pool between judges, the winner and the creator. Every
// share is truncated; whatever the truncation leaves over accrues to the
// creator, so the parts always sum to pool.
func SplitPool(pool uint64, terms game.Terms, judges int, withWinner bool) (Split, error) {
	if terms.CreatorBps < 0 || terms.PerJudgeBps < 0 {
		return Split{}, errors.New("negative commission")
	}
	if terms.CreatorBps > game.BpsDenominator || terms.PerJudgeBps > game.BpsDenominator || judges < 0 {
		return Split{}, fmt.Errorf("commission out of range: creator %d, per judge %d, judges %d", terms.CreatorBps, terms.PerJudgeBps, judges)
	}
	committed := terms.CreatorBps + int64(judges)*terms.PerJudgeBps
	if committed > game.BpsDenominator {
		return Split{}, fmt.Errorf("commissions total %d bps", committed)
	}
	s := Split{Judge: share(pool, terms.PerJudgeBps)}
	if withWinner {
		s.Winner = share(pool, game.BpsDenominator-committed)
	}
	s.Creator = pool - uint64(judges)*s.Judge - s.Winner
	return s, nil
}
