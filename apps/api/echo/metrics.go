package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/recqa/core/evaluation"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recqa",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "recqa",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latencies by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	gradeSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recqa",
		Name:      "grade_submissions_total",
		Help:      "Grade submissions by channel and outcome.",
	}, []string{"channel", "outcome"})
)

func metricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)

		// errors are written by the HTTPErrorHandler later, read their code from the error
		code := strconv.Itoa(ctx.Response().Status)
		if he, ok := err.(*echo.HTTPError); ok {
			code = strconv.Itoa(he.Code)
		} else if err != nil {
			code = "error"
		}
		route := ctx.Path()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(ctx.Request().Method, route, code).Inc()
		httpDuration.WithLabelValues(ctx.Request().Method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

func observeGradeSubmission(ch evaluation.Channel, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gradeSubmissions.WithLabelValues(string(ch), outcome).Inc()
}
