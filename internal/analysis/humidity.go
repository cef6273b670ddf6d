package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/lox/housetemps/internal/models"
)

const (
	// HumidityClusters is the number of comfort regimes the humidity features are
	// split into.
	HumidityClusters = 3

	// ClusterSeed fixes k-means initialisation so a refresh over unchanged data draws
	// the same picture.
	ClusterSeed uint64 = 42
)

type ClusteredDay struct {
	models.HumidityFeature
	Cluster        int
	ScaledHumidity float64
	ScaledStdTemp  float64
}

// ClusterHumidity standardizes (avg_humidity, std_temp) per day and assigns each
// day to one of HumidityClusters clusters. Labels are ordered by ascending centroid
// humidity, so cluster 0 is always the driest regime. Needs at least
// HumidityClusters distinct days.
func ClusterHumidity(features []models.HumidityFeature) ([]ClusteredDay, error) {
	distinct := make(map[time.Time]struct{}, len(features))
	for _, f := range features {
		distinct[f.Day.UTC()] = struct{}{}
	}
	if len(distinct) < HumidityClusters {
		return nil, fmt.Errorf("cluster humidity: %d days, need %d: %w", len(distinct), HumidityClusters, ErrInsufficientData)
	}

	hum := make([]float64, len(features))
	std := make([]float64, len(features))
	for i, f := range features {
		hum[i] = f.AvgHumidity
		std[i] = f.StdTemp
	}
	hum = Standardize(hum)
	std = Standardize(std)

	points := make([]Point, len(features))
	for i := range features {
		points[i] = Point{hum[i], std[i]}
	}
	res, err := KMeans(points, HumidityClusters, ClusterSeed)
	if err != nil {
		return nil, fmt.Errorf("cluster humidity: %w", err)
	}
	relabel := orderByCentroid(res.Centroids)

	out := make([]ClusteredDay, len(features))
	for i, f := range features {
		out[i] = ClusteredDay{
			HumidityFeature: f,
			Cluster:         relabel[res.Labels[i]],
			ScaledHumidity:  hum[i],
			ScaledStdTemp:   std[i],
		}
	}
	return out, nil
}

// orderByCentroid maps raw k-means labels to ranks by centroid humidity, breaking
// ties on temperature spread and then on the raw label.
func orderByCentroid(centroids []Point) []int {
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := centroids[order[a]], centroids[order[b]]
		if ca[0] != cb[0] {
			return ca[0] < cb[0]
		}
		return ca[1] < cb[1]
	})
	relabel := make([]int, len(centroids))
	for rank, raw := range order {
		relabel[raw] = rank
	}
	return relabel
}

type HumiditySplit struct {
	Cut  float64
	Low  []models.HumidityFeature // avg_humidity <= Cut
	High []models.HumidityFeature
}

// SplitByHumidity divides days at the q-th quantile of average humidity, for
// comparing temperature spread on drier and more humid days.
func SplitByHumidity(features []models.HumidityFeature, q float64) (HumiditySplit, error) {
	if len(features) < 2 {
		return HumiditySplit{}, fmt.Errorf("split humidity: %d days: %w", len(features), ErrInsufficientData)
	}
	hum := make([]float64, len(features))
	for i, f := range features {
		hum[i] = f.AvgHumidity
	}
	split := HumiditySplit{Cut: Quantile(hum, q)}
	for _, f := range features {
		if f.AvgHumidity <= split.Cut {
			split.Low = append(split.Low, f)
		} else {
			split.High = append(split.High, f)
		}
	}
	if len(split.Low) == 0 || len(split.High) == 0 {
		return HumiditySplit{}, fmt.Errorf("split humidity: %d low, %d high at %.1f%%: %w",
			len(split.Low), len(split.High), split.Cut, ErrInsufficientData)
	}
	return split, nil
}
