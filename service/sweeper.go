package service

import (
	"context"
	"go-auth-api/logger"
	"go-auth-api/metrics"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically deletes expired refresh and ephemeral tokens. Lookups
// still check expiry themselves, so running it is optional.
type Sweeper struct {
	refresh   *RefreshTokenService
	ephemeral *EphemeralTokenService
	interval  time.Duration
}

func NewSweeper(refresh *RefreshTokenService, ephemeral *EphemeralTokenService, interval time.Duration) *Sweeper {
	return &Sweeper{refresh: refresh, ephemeral: ephemeral, interval: interval}
}

// Run sweeps every interval until ctx is cancelled. A non-positive interval
// returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Log.WithField("interval", s.interval.String()).Info("Token sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Token sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes expired tokens from both stores. Failures are logged and
// retried on the next tick.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	refreshed, err := s.refresh.Sweep(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to sweep expired refresh tokens")
	} else {
		metrics.TokensSweptTotal.WithLabelValues("refresh").Add(float64(refreshed))
	}

	ephemeral, err := s.ephemeral.Sweep(ctx)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to sweep expired tokens")
	} else {
		metrics.TokensSweptTotal.WithLabelValues("ephemeral").Add(float64(ephemeral))
	}

	if refreshed+ephemeral > 0 {
		logger.Log.WithFields(logrus.Fields{
			"refresh_tokens":   refreshed,
			"ephemeral_tokens": ephemeral,
		}).Info("Expired tokens swept")
	}
}
