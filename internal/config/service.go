package config

import (
	"errors"
	"fmt"
)

var ErrInvalidServiceType = errors.New("invalid service type")

type ServiceType int

const (
	// ServiceTypeSingular runs the API and the delivery workers in one process.
	ServiceTypeSingular ServiceType = iota
	ServiceTypeAPI
	ServiceTypeDelivery
)

func (s ServiceType) String() string {
	switch s {
	case ServiceTypeSingular:
		return ""
	case ServiceTypeAPI:
		return "api"
	case ServiceTypeDelivery:
		return "delivery"
	}
	return "unknown"
}

func ServiceTypeFromString(s string) (ServiceType, error) {
	switch s {
	case "":
		return ServiceTypeSingular, nil
	case "api":
		return ServiceTypeAPI, nil
	case "delivery":
		return ServiceTypeDelivery, nil
	}
	return ServiceType(-1), fmt.Errorf("%w: %s", ErrInvalidServiceType, s)
}

// GetService resolves the configured service string.
func (c *Config) GetService() (ServiceType, error) {
	return ServiceTypeFromString(c.Service)
}

// MustGetService panics on an invalid service value. Call only after Validate.
func (c *Config) MustGetService() ServiceType {
	service, err := c.GetService()
	if err != nil {
		panic(err)
	}
	return service
}
