// Package uniswapv2 implements constant-product pool math over big.Int
// reserves. Functions taking dst/temporary arguments never allocate.
package uniswapv2

import "math/big"

// fee: 0.3% => multiplier 997/1000
var (
	feeMul = big.NewInt(997)
	feeDen = big.NewInt(1000)

	// counterpart margin: +0.5% => multiplier 1005/1000
	marginMul = big.NewInt(1005)
	marginDen = big.NewInt(1000)
)

// GetAmountOut returns the output of swapping amountIn against the pool,
// matching Router02.getAmountOut.
func GetAmountOut(dst, t1, t2 *big.Int, amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	// t1 = amountIn * 997
	t1.Mul(amountIn, feeMul)
	// t2 = reserveIn * 1000
	t2.Mul(reserveIn, feeDen)
	// t2 = t2 + t1  (denominator)
	t2.Add(t2, t1)
	// dst = t1 * reserveOut (numerator)
	dst.Mul(t1, reserveOut)
	// dst = dst / t2  (avoid aliasing z==y)
	return dst.Div(dst, t2)
}

// Quote returns the amount of the other asset equivalent to amountA at the
// current reserve ratio, matching Router02.quote. Zero reserves yield zero.
func Quote(dst *big.Int, amountA, reserveA, reserveB *big.Int) *big.Int {
	if amountA.Sign() <= 0 || reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		return dst.SetInt64(0)
	}
	dst.Mul(amountA, reserveB)
	return dst.Div(dst, reserveA)
}

// RequiredCounterpart returns how much of the paired asset must accompany a
// deposit of desired units of the target asset. The exact ratio amount is
// raised by 0.5% so reserve drift between read and inclusion does not starve
// the deposit.
func RequiredCounterpart(dst *big.Int, desired, reserveTarget, reserveCounterpart *big.Int) *big.Int {
	Quote(dst, desired, reserveTarget, reserveCounterpart)
	if dst.Sign() == 0 {
		return dst
	}
	dst.Mul(dst, marginMul)
	return dst.Div(dst, marginDen)
}

// LPShare estimates the liquidity tokens minted for depositing amountA when
// the deposit ratio matches the reserves. No margin is applied.
func LPShare(dst *big.Int, amountA, totalSupply, reserveA *big.Int) *big.Int {
	if amountA.Sign() <= 0 || reserveA.Sign() <= 0 || totalSupply == nil || totalSupply.Sign() <= 0 {
		return dst.SetInt64(0)
	}
	dst.Mul(amountA, totalSupply)
	return dst.Div(dst, reserveA)
}

// ApplyBps scales amount by (10000 - bps) / 10000. bps is clamped to
// [0, 10000].
func ApplyBps(dst *big.Int, amount *big.Int, bps int64) *big.Int {
	if bps < 0 {
		bps = 0
	}
	if bps > 10_000 {
		bps = 10_000
	}
	dst.Mul(amount, big.NewInt(10_000-bps))
	return dst.Div(dst, big.NewInt(10_000))
}
