package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	appErrors "github.com/noah-isme/sma-appeals-api/pkg/errors"
)

// DefaultCaseIDAttempts bounds the random probes before falling back to the clock.
const DefaultCaseIDAttempts = 5

const (
	caseIDCodeMin  = 100000
	caseIDCodeSpan = 900000
)

type caseIDChecker interface {
	ExistsByCaseID(ctx context.Context, caseID string) (bool, error)
}

// CaseIDAllocation is the outcome of one allocation run.
type CaseIDAllocation struct {
	CaseID   string
	Attempts int
	// Fallback is set when every random probe collided and the id was derived from the clock.
	Fallback bool
}

// CaseIDAllocator produces APL-<year>-<6 digits> identifiers without a shared counter.
// Probes are read-only; uniqueness is finally claimed by the insert.
type CaseIDAllocator struct {
	store       caseIDChecker
	maxAttempts int
	now         func() time.Time
	randomCode  func() (int, error)
}

// CaseIDAllocatorOption configures the allocator.
type CaseIDAllocatorOption func(*CaseIDAllocator)

// WithCaseIDAttempts overrides the probe bound.
func WithCaseIDAttempts(n int) CaseIDAllocatorOption {
	return func(a *CaseIDAllocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithCaseIDClock overrides the clock used for the year and the fallback code.
func WithCaseIDClock(now func() time.Time) CaseIDAllocatorOption {
	return func(a *CaseIDAllocator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithCaseIDCodeSource overrides the random code generator.
func WithCaseIDCodeSource(src func() (int, error)) CaseIDAllocatorOption {
	return func(a *CaseIDAllocator) {
		if src != nil {
			a.randomCode = src
		}
	}
}

// NewCaseIDAllocator constructs an allocator probing the given store.
func NewCaseIDAllocator(store caseIDChecker, opts ...CaseIDAllocatorOption) *CaseIDAllocator {
	a := &CaseIDAllocator{
		store:       store,
		maxAttempts: DefaultCaseIDAttempts,
		now:         time.Now,
		randomCode:  cryptoCaseCode,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Allocate returns a candidate id not present in the store at probe time. A store error
// aborts the allocation so no case is persisted without an id.
func (a *CaseIDAllocator) Allocate(ctx context.Context) (CaseIDAllocation, error) {
	year := a.now().Year()
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return CaseIDAllocation{}, err
		}
		code, err := a.randomCode()
		if err != nil {
			return CaseIDAllocation{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate case id")
		}
		candidate := FormatCaseID(year, code)
		exists, err := a.store.ExistsByCaseID(ctx, candidate)
		if err != nil {
			return CaseIDAllocation{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check case id")
		}
		if !exists {
			return CaseIDAllocation{CaseID: candidate, Attempts: attempt}, nil
		}
	}
	code := int(a.now().UnixMilli() % 1000000)
	return CaseIDAllocation{
		CaseID:   FormatCaseID(year, code),
		Attempts: a.maxAttempts,
		Fallback: true,
	}, nil
}

// FormatCaseID renders the human-readable identifier.
func FormatCaseID(year, code int) string {
	return fmt.Sprintf("APL-%04d-%06d", year, code)
}

func cryptoCaseCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(caseIDCodeSpan))
	if err != nil {
		return 0, err
	}
	return caseIDCodeMin + int(n.Int64()), nil
}
