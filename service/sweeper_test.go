package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
)

func TestSweeper_SweepOnce(t *testing.T) {
	ctx := context.Background()
	tokens := new(mockTokenRepo)
	ephemeral := new(mockEphemeralRepo)
	s := NewSweeper(NewRefreshTokenService(tokens, time.Hour), NewEphemeralTokenService(ephemeral, 8), time.Minute)

	tokens.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(3), nil).Once()
	ephemeral.On("DeleteExpired", ctx, mock.AnythingOfType("time.Time")).Return(int64(0), errors.New("db down")).Once()

	s.SweepOnce(ctx)
	tokens.AssertExpectations(t)
	ephemeral.AssertExpectations(t)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	tokens := new(mockTokenRepo)
	ephemeral := new(mockEphemeralRepo)
	swept := make(chan struct{}, 1)
	tokens.On("DeleteExpired", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		select {
		case swept <- struct{}{}:
		default:
		}
	}).Return(int64(0), nil)
	ephemeral.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), nil)
	s := NewSweeper(NewRefreshTokenService(tokens, time.Hour), NewEphemeralTokenService(ephemeral, 8), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_DisabledReturnsImmediately(t *testing.T) {
	s := NewSweeper(nil, nil, 0)
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper should return")
	}
}
