package server

import (
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"harvest-engine/pkg/models"
)

// HealthSource is the orchestrator's self-assessment
type HealthSource interface {
	GetHealthCheck() models.HealthCheck
}

// servingStatus maps healthy and degraded to SERVING; only down takes the engine out of rotation
func servingStatus(check models.HealthCheck) healthpb.HealthCheckResponse_ServingStatus {
	if check.Status == models.HealthDown {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

func (s *Server) refresh() {
	if s.source == nil {
		s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
		return
	}
	check := s.source.GetHealthCheck()
	status := servingStatus(check)
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.logger.Debug("gRPC health refreshed", map[string]interface{}{
		"engine_status":  check.Status,
		"serving_status": status.String(),
	})
}
