package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethpandaops/lossforecast/pkg/api/handlers"
	"github.com/ethpandaops/lossforecast/pkg/artifact"
	"github.com/ethpandaops/lossforecast/pkg/forecast"
	"github.com/ethpandaops/lossforecast/pkg/pipeline"
	"github.com/ethpandaops/lossforecast/pkg/scheduler"
	"github.com/ethpandaops/lossforecast/pkg/training"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyBackend has no entities and no models
type emptyBackend struct{}

func (emptyBackend) Entities(context.Context) ([]pipeline.Entity, error) { return nil, nil }

func (emptyBackend) Summary(context.Context) ([]artifact.SummaryRow, error) {
	return nil, errors.New("store unavailable")
}

func (emptyBackend) Runs(context.Context, int) ([]artifact.Run, error) { return nil, nil }

func (emptyBackend) Forecast(_ context.Context, id string, _ int, _ forecast.Scenario) (*pipeline.Result, error) {
	return nil, pipeline.ErrNoModel
}

func (emptyBackend) ParseScenario(name string) (forecast.Scenario, error) {
	return forecast.ParseScenario(name, 0.02)
}

func (emptyBackend) TrainEntity(context.Context, string) (training.Result, error) {
	return training.Result{}, pipeline.ErrUnknownEntity
}

type noopRetrainer struct{}

func (noopRetrainer) Retrain(context.Context, string) (*scheduler.Outcome, error) {
	return &scheduler.Outcome{}, nil
}

func TestNewApp_ErrorResponses(t *testing.T) {
	log := logrus.New()
	server := handlers.NewServer(log, emptyBackend{}, noopRetrainer{}, handlers.Limits{DefaultHorizon: 5, MaxHorizon: 10})
	app := NewApp(log, server)

	tests := []struct {
		target  string
		code    int
		message string
	}{
		{target: "/api/v1/entities/DE/forecast", code: 404, message: "no forecast available"},
		{target: "/api/v1/summary", code: 500, message: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			require.NoError(t, err)

			defer resp.Body.Close()

			var body struct {
				Error string `json:"error"`
				Code  int    `json:"code"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, (&Config{Enabled: true, Addr: ":8080", DefaultHorizon: 5, MaxHorizon: 10}).Validate())
	require.ErrorIs(t, (&Config{Enabled: true, DefaultHorizon: 5, MaxHorizon: 10}).Validate(), ErrAPIAddrRequired)
	require.ErrorIs(t, (&Config{Addr: ":8080", DefaultHorizon: 11, MaxHorizon: 10}).Validate(), ErrInvalidHorizonBounds)
	require.ErrorIs(t, (&Config{Addr: ":8080", DefaultHorizon: 0, MaxHorizon: 10}).Validate(), ErrInvalidHorizonBounds)
}

func TestService_Disabled(t *testing.T) {
	svc := NewService(logrus.New(), &Config{DefaultHorizon: 5, MaxHorizon: 10}, emptyBackend{}, noopRetrainer{})

	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
}
