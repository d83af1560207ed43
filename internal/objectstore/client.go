// Medicare Portal - Multi-tenant CRM Backend
// Copyright 2026 The Medicare Portal Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pyrex41/medicare-portal

package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pyrex41/medicare-portal-sub009/internal/logging"
	"github.com/pyrex41/medicare-portal-sub009/internal/metrics"
)

// BreakerName labels the object store circuit breaker in metrics.
const BreakerName = "object-store"

// ErrUnavailable is returned when the circuit breaker is rejecting calls.
var ErrUnavailable = errors.New("objectstore: unavailable")

// Config describes where tenant replicas live.
type Config struct {
	Bucket string
	// Prefix is prepended to every tenant's key prefix, e.g. "tenants".
	Prefix         string
	Region         string
	Endpoint       string
	ForcePathStyle bool
	// Timeout bounds each listing call.
	// Default: 10s
	Timeout time.Duration
	// RequestsPerSecond caps listing calls against the bucket.
	// Zero means unlimited.
	RequestsPerSecond float64
}

// ListObjectsAPI is the subset of the S3 client used here.
type ListObjectsAPI interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object is one replica file in the store.
type Object struct {
	Key          string    `json:"key"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Client lists tenant replicas in an S3-compatible bucket.
type Client struct {
	api     ListObjectsAPI
	bucket  string
	prefix  string
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]Object]
}

// New creates a client using the default AWS credential chain.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return NewWithAPI(api, cfg), nil
}

// NewWithAPI creates a client over an existing S3 API implementation.
func NewWithAPI(api ListObjectsAPI, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]Object](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		// Opens when at least 60% of 10 or more calls fail.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().
					Str("breaker", BreakerName).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening circuit")
				return true
			}
			return false
		},

		// A caller giving up says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Client{
		api:     api,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: cfg.Timeout,
		limiter: limiter,
		cb:      cb,
	}
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.bucket }

// TenantPrefix returns the key prefix holding a tenant's replica, with a
// trailing slash so "acme" never matches "acme2".
func (c *Client) TenantPrefix(tenantID string) string {
	if c.prefix == "" {
		return tenantID + "/"
	}
	return path.Join(c.prefix, tenantID) + "/"
}

// List returns every object under the tenant's prefix, newest first.
func (c *Client) List(ctx context.Context, tenantID string) ([]Object, error) {
	return c.execute(func() ([]Object, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var objects []Object
		p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket),
			Prefix: aws.String(c.TenantPrefix(tenantID)),
		})
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("objectstore: list %s: %w", c.TenantPrefix(tenantID), err)
			}
			for _, obj := range page.Contents {
				objects = append(objects, Object{
					Key:          aws.ToString(obj.Key),
					ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
					LastModified: aws.ToTime(obj.LastModified),
				})
			}
		}

		sort.SliceStable(objects, func(i, j int) bool {
			return objects[i].LastModified.After(objects[j].LastModified)
		})
		return objects, nil
	})
}

// HasReplica reports whether anything has been replicated for the tenant.
func (c *Client) HasReplica(ctx context.Context, tenantID string) (bool, error) {
	objects, err := c.execute(func() ([]Object, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(c.bucket),
			Prefix:  aws.String(c.TenantPrefix(tenantID)),
			MaxKeys: 1,
		})
		if err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", c.TenantPrefix(tenantID), err)
		}
		objects := make([]Object, 0, len(out.Contents))
		for _, obj := range out.Contents {
			objects = append(objects, Object{Key: aws.ToString(obj.Key)})
		}
		return objects, nil
	})
	if err != nil {
		return false, err
	}
	return len(objects) > 0, nil
}

// Ping checks that the bucket can be listed.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.execute(func() ([]Object, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		_, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket),
			Prefix: aws.String(c.prefix),
		})
		return nil, err
	})
	return err
}

// BreakerState returns the circuit breaker state as a string.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

func (c *Client) execute(fn func() ([]Object, error)) ([]Object, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(BreakerName, "success").Inc()
	return result, nil
}
