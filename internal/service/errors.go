package service

import (
	"fmt"

	"github.com/google/uuid"
)

type ErrResourceNotFound struct {
	error
}

func NewErrResourceNotFound(id uuid.UUID, resourceType string) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("%s %s not found", resourceType, id)}
}

func NewErrDatasetNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "dataset")
}

func NewErrJobNotFound(id uuid.UUID) *ErrResourceNotFound {
	return NewErrResourceNotFound(id, "job")
}

// NewErrSourceNotFound marks a figure source id that resolves to neither a
// dataset nor an analysis result.
func NewErrSourceNotFound(id uuid.UUID) *ErrResourceNotFound {
	return &ErrResourceNotFound{fmt.Errorf("figure source %s resolves to neither a dataset nor an analysis result", id)}
}

type ErrInvalidParameters struct {
	error
}

func NewErrInvalidParameters(cause error) *ErrInvalidParameters {
	return &ErrInvalidParameters{fmt.Errorf("parameter validation failed: %w", cause)}
}

func NewErrUnknownProcessor(name string) *ErrInvalidParameters {
	return &ErrInvalidParameters{fmt.Errorf("unknown processor %q", name)}
}

type ErrInvalidTransition struct {
	error
}

func NewErrInvalidTransition(id uuid.UUID, status, op string) *ErrInvalidTransition {
	return &ErrInvalidTransition{fmt.Errorf("job %s is %s and cannot be %s", id, status, op)}
}

type ErrUnsupportedFormat struct {
	error
}

func NewErrUnsupportedFormat(path string) *ErrUnsupportedFormat {
	return &ErrUnsupportedFormat{fmt.Errorf("no importer registered for %s", path)}
}

type ErrImportFailure struct {
	error
}

func NewErrImportFailure(path string, cause error) *ErrImportFailure {
	return &ErrImportFailure{fmt.Errorf("importing %s: %w", path, cause)}
}

type ErrDatasetInUse struct {
	error
}

func NewErrDatasetInUse(id uuid.UUID, liveJobs int) *ErrDatasetInUse {
	return &ErrDatasetInUse{fmt.Errorf("dataset %s has %d pending or running jobs", id, liveJobs)}
}

type ErrDuplicateDataset struct {
	error
}

func NewErrDuplicateDataset(name string) *ErrDuplicateDataset {
	return &ErrDuplicateDataset{fmt.Errorf("dataset %q already exists", name)}
}
