package regressor

import (
	"context"
	"math"
	"math/rand"

	"zeitprognose/forest"
	"zeitprognose/models"
)

// Metrics are the hold-out scores, one value per output.
type Metrics struct {
	TrainSize int          `json:"train_size"`
	TestSize  int          `json:"test_size"`
	MAE       models.Times `json:"mae"`
	R2        models.Times `json:"r2"`
}

// Split shuffles 0..n-1 with seed and returns (train, test) index sets.
// The test set has round(n*fraction) entries, at least one and at most n-1.
func Split(n int, fraction float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	k := int(math.Round(float64(n) * fraction))
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}
	return perm[k:], perm[:k]
}

// Evaluate fits on a seeded split and scores the held-out part.
func Evaluate(ctx context.Context, x, y [][]float64, fraction float64, p forest.Params) (*Metrics, error) {
	trainIdx, testIdx := Split(len(x), fraction, p.Seed)

	pick := func(rows [][]float64, idx []int) [][]float64 {
		out := make([][]float64, len(idx))
		for i, j := range idx {
			out[i] = rows[j]
		}
		return out
	}

	f, err := forest.Fit(ctx, pick(x, trainIdx), pick(y, trainIdx), p)
	if err != nil {
		return nil, err
	}

	pred := make([]models.Times, len(testIdx))
	actual := make([]models.Times, len(testIdx))
	for i, j := range testIdx {
		out, err := f.Predict(x[j])
		if err != nil {
			return nil, err
		}
		pred[i] = models.Times{Drawing: out[0], BOM: out[1]}
		actual[i] = models.Times{Drawing: y[j][0], BOM: y[j][1]}
	}

	return &Metrics{
		TrainSize: len(trainIdx),
		TestSize:  len(testIdx),
		MAE:       MAE(pred, actual),
		R2:        R2(pred, actual),
	}, nil
}

// MAE is the mean absolute error per output.
func MAE(pred, actual []models.Times) models.Times {
	if len(pred) == 0 {
		return models.Times{}
	}
	var sum models.Times
	for i := range pred {
		sum.Drawing += math.Abs(pred[i].Drawing - actual[i].Drawing)
		sum.BOM += math.Abs(pred[i].BOM - actual[i].BOM)
	}
	return sum.Div(float64(len(pred)))
}

// R2 is the coefficient of determination per output. A constant target
// scores 1 when predicted exactly and 0 otherwise.
func R2(pred, actual []models.Times) models.Times {
	d := func(t models.Times) float64 { return t.Drawing }
	b := func(t models.Times) float64 { return t.BOM }
	return models.Times{Drawing: r2(pred, actual, d), BOM: r2(pred, actual, b)}
}

func r2(pred, actual []models.Times, get func(models.Times) float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var mean float64
	for _, a := range actual {
		mean += get(a)
	}
	mean /= float64(len(actual))

	var ssRes, ssTot float64
	for i := range actual {
		r := get(actual[i]) - get(pred[i])
		t := get(actual[i]) - mean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}
