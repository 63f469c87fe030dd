// Package discovery centralizes service address conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceTerrain is the terrain generation service identity.
	ServiceTerrain = "terrain"
	// ServicePersistence is the persistence service identity.
	ServicePersistence = "persistence"
)

var grpcPorts = map[string]int{
	ServiceTerrain:     50051,
	ServicePersistence: 50052,
}

var httpPorts = map[string]int{
	ServiceTerrain: 8080,
}

// DefaultGRPCPort returns the conventional gRPC port for a service, or 0.
func DefaultGRPCPort(service string) int {
	return grpcPorts[strings.TrimSpace(service)]
}

// DefaultHTTPPort returns the conventional HTTP port for a service, or 0.
func DefaultHTTPPort(service string) int {
	return httpPorts[strings.TrimSpace(service)]
}

// DefaultGRPCAddr returns the canonical in-network gRPC address for a service.
func DefaultGRPCAddr(service string) string {
	return defaultAddr(strings.TrimSpace(service), grpcPorts)
}

// OrDefaultGRPCAddr returns value when set, otherwise the service convention.
func OrDefaultGRPCAddr(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultGRPCAddr(service)
}

func defaultAddr(service string, ports map[string]int) string {
	port, ok := ports[service]
	if !ok || port <= 0 {
		return ""
	}
	return "localhost:" + strconv.Itoa(port)
}
