package links

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_resolutions_total",
			Help: "Link resolutions by outcome",
		},
		[]string{"outcome"},
	)

	viewWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_view_writes_total",
			Help: "View counter writes by result",
		},
		[]string{"result"},
	)

	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_mutations_total",
			Help: "Link mutations by operation and result",
		},
		[]string{"op", "result"},
	)
)

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "redirect"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
