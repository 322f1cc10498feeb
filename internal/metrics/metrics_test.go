// AddonRail - Real-Time Cart Add-On Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/addonrail

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/tomtom215/addonrail/internal/cache"
	"github.com/tomtom215/addonrail/internal/rank"
)

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	m, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatal("observer is not a metric")
	}
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return pb.GetHistogram().GetSampleCount()
}

func TestObserver_ObserveRank(t *testing.T) {
	obs := Observer{}

	beforeOK := testutil.ToFloat64(RankRequests.WithLabelValues("ok"))
	beforeDegraded := testutil.ToFloat64(RankRequests.WithLabelValues("degraded"))
	beforeLevel := testutil.ToFloat64(DegradedTotal.WithLabelValues(string(rank.DegradeSimilarityOnly)))
	beforeFallback := testutil.ToFloat64(HeadFallbacks.WithLabelValues(rank.HeadAOV))

	obs.ObserveRank(&rank.Response{
		Slots:    make([]rank.RankedSlot, 10),
		Metadata: rank.ResponseMetadata{PoolSize: 30, CatalogVersion: 7, HeadFallbacks: []string{rank.HeadAOV}},
	}, 12*time.Millisecond)
	obs.ObserveRank(&rank.Response{
		Degraded: true,
		Slots:    make([]rank.RankedSlot, 8),
		Metadata: rank.ResponseMetadata{DegradeLevel: rank.DegradeSimilarityOnly},
	}, 40*time.Millisecond)

	if got := testutil.ToFloat64(RankRequests.WithLabelValues("ok")) - beforeOK; got != 1 {
		t.Errorf("ok delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RankRequests.WithLabelValues("degraded")) - beforeDegraded; got != 1 {
		t.Errorf("degraded delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(DegradedTotal.WithLabelValues(string(rank.DegradeSimilarityOnly))) - beforeLevel; got != 1 {
		t.Errorf("degraded level delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(HeadFallbacks.WithLabelValues(rank.HeadAOV)) - beforeFallback; got != 1 {
		t.Errorf("fallback delta = %v, want 1", got)
	}
	if histogramCount(t, RankDuration) < 2 {
		t.Error("rank duration not observed")
	}
}

func TestObserver_StageAndFeedback(t *testing.T) {
	obs := Observer{}

	before := histogramCount(t, StageDuration.WithLabelValues("scoring"))
	obs.ObserveStage("scoring", 3*time.Millisecond)
	if got := histogramCount(t, StageDuration.WithLabelValues("scoring")) - before; got != 1 {
		t.Errorf("stage samples delta = %d, want 1", got)
	}

	events := testutil.ToFloat64(FeedbackEvents)
	accepted := testutil.ToFloat64(FeedbackAccepted)
	obs.ObserveFeedback(2)
	if testutil.ToFloat64(FeedbackEvents)-events != 1 || testutil.ToFloat64(FeedbackAccepted)-accepted != 2 {
		t.Error("feedback counters not updated")
	}
}

func TestBreakerStateChange(t *testing.T) {
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}
	for _, tt := range tests {
		BreakerStateChange(rank.HeadTiming, "", tt.to)
		if got := testutil.ToFloat64(HeadBreakerState.WithLabelValues(rank.HeadTiming)); got != tt.want {
			t.Errorf("state %s gauge = %v, want %v", tt.to, got, tt.want)
		}
	}
}

func TestUpdateTrajectoryCache(t *testing.T) {
	hits := testutil.ToFloat64(TrajectoryCacheHits)
	misses := testutil.ToFloat64(TrajectoryCacheMisses)

	base := trajectoryCache.hits
	UpdateTrajectoryCache(cache.Stats{Hits: base + 5, Misses: trajectoryCache.misses + 2})
	UpdateTrajectoryCache(cache.Stats{Hits: base + 7, Misses: trajectoryCache.misses})

	if got := testutil.ToFloat64(TrajectoryCacheHits) - hits; got != 7 {
		t.Errorf("hits delta = %v, want 7", got)
	}
	if got := testutil.ToFloat64(TrajectoryCacheMisses) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

func TestRecordHTTPRequestAndReload(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/v1/rank", "200"))
	RecordHTTPRequest("POST", "/api/v1/rank", 200, 5*time.Millisecond)
	if got := testutil.ToFloat64(HTTPRequests.WithLabelValues("POST", "/api/v1/rank", "200")) - before; got != 1 {
		t.Errorf("http delta = %v, want 1", got)
	}

	okBefore := testutil.ToFloat64(ArtifactReloads.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(ArtifactReloads.WithLabelValues("error"))
	RecordReload(nil)
	RecordReload(errors.New("bad artifact"))
	if testutil.ToFloat64(ArtifactReloads.WithLabelValues("ok"))-okBefore != 1 ||
		testutil.ToFloat64(ArtifactReloads.WithLabelValues("error"))-errBefore != 1 {
		t.Error("reload counters not updated")
	}
}
