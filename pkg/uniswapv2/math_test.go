package uniswapv2

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetAmountOut(t *testing.T) {
	// Example: reserves 1000000 : 1000000, amountIn 1000
	rIn := big.NewInt(1_000_000)
	rOut := big.NewInt(1_000_000)
	amountIn := big.NewInt(1_000)

	// dst/t1/t2 are re-used temporaries
	var dst, t1, t2 big.Int
	out := GetAmountOut(&dst, &t1, &t2, amountIn, rIn, rOut)

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, rOut)
	denominator := new(big.Int).Mul(rIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)
	expected := new(big.Int).Div(numerator, denominator)

	require.Zero(t, out.Cmp(expected), "got %s want %s", out, expected)
	require.Positive(t, out.Sign())
}

func TestRequiredCounterpart(t *testing.T) {
	cases := []struct {
		name                         string
		desired, target, counterpart int64
		want                         int64
	}{
		// 10*500/1000 = 5, 5*1005/1000 = 5 under floor division
		{"small_floor", 10, 1000, 500, 5},
		{"scaled", 10_000, 1000, 500, 5_025},
		{"zero_desired", 0, 1000, 500, 0},
		{"zero_target_reserve", 10, 0, 500, 0},
		{"zero_counterpart_reserve", 10, 1000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dst big.Int
			got := RequiredCounterpart(&dst, big.NewInt(tc.desired), big.NewInt(tc.target), big.NewInt(tc.counterpart))
			require.Equal(t, tc.want, got.Int64())
		})
	}
}

func TestRequiredCounterpart_WeiScale(t *testing.T) {
	ether := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	desired := new(big.Int).Mul(big.NewInt(10), ether)
	reserveTarget := new(big.Int).Mul(big.NewInt(1000), ether)
	reserveCounterpart := new(big.Int).Mul(big.NewInt(500), ether)

	var dst big.Int
	got := RequiredCounterpart(&dst, desired, reserveTarget, reserveCounterpart)

	// 5.025 ether
	want := new(big.Int).Mul(big.NewInt(5025), new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil))
	require.Zero(t, got.Cmp(want), "got %s want %s", got, want)
}

func TestLPShare_MatchesQuoteRoundTrip(t *testing.T) {
	reserveA := big.NewInt(1_000_000)
	reserveB := big.NewInt(250_000)
	supply := big.NewInt(400_000)
	desiredA := big.NewInt(12_345)

	var counterpart, share big.Int
	Quote(&counterpart, desiredA, reserveA, reserveB)
	require.Positive(t, counterpart.Sign())

	LPShare(&share, desiredA, supply, reserveA)
	want := new(big.Int).Div(new(big.Int).Mul(desiredA, supply), reserveA)
	require.Zero(t, share.Cmp(want))
}

func TestLPShare_ZeroInputs(t *testing.T) {
	var dst big.Int
	require.Zero(t, LPShare(&dst, big.NewInt(5), nil, big.NewInt(10)).Sign())
	require.Zero(t, LPShare(&dst, big.NewInt(5), big.NewInt(10), big.NewInt(0)).Sign())
}

func TestApplyBps(t *testing.T) {
	var dst big.Int
	require.Equal(t, int64(9_800), ApplyBps(&dst, big.NewInt(10_000), 200).Int64())
	require.Equal(t, int64(5_100), ApplyBps(&dst, big.NewInt(10_000), 4_900).Int64())
	require.Equal(t, int64(0), ApplyBps(&dst, big.NewInt(10_000), 20_000).Int64())
	require.Equal(t, int64(10_000), ApplyBps(&dst, big.NewInt(10_000), -5).Int64())
}
