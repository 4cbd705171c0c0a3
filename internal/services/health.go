package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sam-thetutor/herlock/internal/ledger"
)

// HealthStatus represents the health status of a dependency
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single dependency check result
type HealthCheck struct {
	Service      string        `json:"service"`
	Status       HealthStatus  `json:"status"`
	Message      string        `json:"message,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// HealthService checks the gateway's two upstream dependencies: the
// session store and the remote ledger
type HealthService struct {
	sessions *SessionService
	ledger   *ledger.Client
}

// NewHealthService creates a health service over the given dependencies
func NewHealthService(sessions *SessionService, ledgerClient *ledger.Client) *HealthService {
	return &HealthService{sessions: sessions, ledger: ledgerClient}
}

// CheckDatabase verifies session store connectivity and collection access
func (h *HealthService) CheckDatabase() *HealthCheck {
	start := time.Now()
	check := &HealthCheck{Service: "mongodb", Timestamp: start}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.sessions.client.Ping(ctx, nil); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("ping failed: %v", err)
		check.ResponseTime = time.Since(start)
		return check
	}

	if _, err := h.sessions.collection.CountDocuments(ctx, bson.M{}); err != nil {
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("collection access failed: %v", err)
		check.ResponseTime = time.Since(start)
		return check
	}

	check.Status = HealthStatusHealthy
	check.Message = "all checks passed"
	check.ResponseTime = time.Since(start)
	return check
}

// CheckLedger verifies the remote ledger answers an unauthenticated
// read within the timeout
func (h *HealthService) CheckLedger() *HealthCheck {
	start := time.Now()
	check := &HealthCheck{Service: "ledger", Timestamp: start}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// get_profile on an unauthenticated client answers absent; any
	// well-formed response proves the ledger is reachable
	if _, err := h.ledger.GetProfile(ctx); err != nil && !errors.Is(err, ledger.ErrNotAuthenticated) {
		if ledger.IsTimeout(err) {
			check.Status = HealthStatusDegraded
			check.Message = "ledger responding slowly"
		} else {
			check.Status = HealthStatusUnhealthy
			check.Message = fmt.Sprintf("ledger unreachable: %v", err)
		}
		check.ResponseTime = time.Since(start)
		return check
	}

	check.Status = HealthStatusHealthy
	check.Message = "ledger reachable"
	check.ResponseTime = time.Since(start)
	return check
}

// Overall aggregates dependency checks into one status
func (h *HealthService) Overall() (HealthStatus, []*HealthCheck) {
	checks := []*HealthCheck{h.CheckDatabase(), h.CheckLedger()}

	status := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy, checks
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status, checks
}
