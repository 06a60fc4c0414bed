package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/IgorGrieder/link-redirector/internal/constants"
	"github.com/IgorGrieder/link-redirector/internal/infrastructure/logger"
	appvalidation "github.com/IgorGrieder/link-redirector/internal/infrastructure/validation"
	"github.com/IgorGrieder/link-redirector/internal/processing/links"
	"github.com/IgorGrieder/link-redirector/pkg/breaker"
	"github.com/IgorGrieder/link-redirector/pkg/httputils"
	"go.uber.org/zap"
)

type LinksHandler struct {
	svc            *links.Service
	redirectStatus int
	publicHost     string
}

type LinksHandlerOptions struct {
	RedirectStatus int
	// PublicHost replaces the request Host when checking for self-redirects.
	PublicHost string
}

func NewLinksHandler(svc *links.Service, opts LinksHandlerOptions) *LinksHandler {
	if opts.RedirectStatus != http.StatusMovedPermanently {
		opts.RedirectStatus = http.StatusFound
	}
	return &LinksHandler{
		svc:            svc,
		redirectStatus: opts.RedirectStatus,
		publicHost:     opts.PublicHost,
	}
}

type upsertLinkRequest struct {
	URL             string `json:"url" validate:"required,notblank,http_url"`
	ExpiryTimestamp *int64 `json:"expiry_timestamp" validate:"omitempty,min=0"`
	ExpireIn        string `json:"expire_in,omitempty" validate:"omitempty,duration"`
	MaxViews        *int64 `json:"max_views" validate:"omitempty,min=0"`
	Overwrite       bool   `json:"overwrite"`
	Disabled        bool   `json:"disabled"`
}

type linkResponse struct {
	ID              string  `json:"id"`
	URL             string  `json:"url"`
	ExpiryTimestamp *int64  `json:"expiry_timestamp"`
	MaxViews        *uint64 `json:"max_views"`
	Views           uint64  `json:"views"`
	Disabled        bool    `json:"disabled"`
	Status          string  `json:"status"`
	Revision        string  `json:"revision,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	ModifiedAt      int64   `json:"modified_at"`
	LastViewedAt    *int64  `json:"last_viewed_at,omitempty"`
}

func newLinkResponse(id string, rec links.Record, status links.Status) linkResponse {
	return linkResponse{
		ID:              id,
		URL:             rec.URL,
		ExpiryTimestamp: rec.ExpiryTimestamp,
		MaxViews:        rec.MaxViews,
		Views:           rec.Views,
		Disabled:        rec.Disabled,
		Status:          string(status),
		Revision:        rec.Revision,
		CreatedAt:       rec.CreatedAt,
		ModifiedAt:      rec.ModifiedAt,
		LastViewedAt:    rec.LastViewedAt,
	}
}

// Redirect answers GET with the destination and counts a view. HEAD reports
// the same outcome without spending the view budget.
func (h *LinksHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	resolve := h.svc.Resolve
	if r.Method == http.MethodHead {
		resolve = h.svc.Inspect
	}
	rec, err := resolve(r.Context(), id)
	if err != nil {
		h.writeError(w, r, id, err)
		return
	}

	// Views and expiry change the outcome, so intermediaries must not replay it.
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Location", rec.URL)
	w.WriteHeader(h.redirectStatus)
}

// Where returns the destination as plain text without counting a view.
func (h *LinksHandler) Where(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, err := h.svc.Inspect(r.Context(), id)
	if err != nil {
		h.writeError(w, r, id, err)
		return
	}
	httputils.WriteText(w, http.StatusOK, rec.URL)
}

func (h *LinksHandler) Exists(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.svc.Inspect(r.Context(), id); err != nil {
		h.writeError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *LinksHandler) Details(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d, err := h.svc.Details(r.Context(), id)
	if err != nil {
		h.writeError(w, r, id, err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinkFound, newLinkResponse(d.ID, d.Record, d.Status))
}

func (h *LinksHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req upsertLinkRequest
	if err := httputils.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, httputils.ErrBodyTooLarge) {
			httputils.WriteAPIError(w, r, constants.ErrPayloadTooLarge)
			return
		}
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage(constants.MsgInvalidRequestBody+": "+err.Error()))
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		apiErr := constants.ErrInvalidRequestBody
		if field, reason, ok := appvalidation.Describe(err); ok {
			if field == "url" {
				apiErr = constants.ErrInvalidURL
			}
			apiErr = apiErr.WithMessage(field + " " + reason)
		}
		httputils.WriteAPIError(w, r, apiErr)
		return
	}

	in := links.UpsertInput{
		URL:             req.URL,
		ExpiryTimestamp: req.ExpiryTimestamp,
		Overwrite:       req.Overwrite,
		Disabled:        req.Disabled,
		RequestHost:     h.requestHost(r),
	}
	if req.ExpireIn != "" {
		// Already checked by the duration tag.
		in.ExpireIn, _ = time.ParseDuration(strings.TrimSpace(req.ExpireIn))
	}
	if req.MaxViews != nil {
		maxViews := uint64(*req.MaxViews)
		in.MaxViews = &maxViews
	}

	res, err := h.svc.Upsert(r.Context(), id, in)
	if err != nil {
		h.writeError(w, r, id, err)
		return
	}

	success := constants.SuccessLinkUpdated
	if res.Created {
		success = constants.SuccessLinkCreated
	}
	httputils.WriteAPISuccess(w, r, success, newLinkResponse(id, res.Record, res.Record.Status(time.Now())))
}

func (h *LinksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, id, err)
		return
	}
	httputils.WriteAPISuccess(w, r, constants.SuccessLinkDeleted, map[string]string{"id": id})
}

func (h *LinksHandler) requestHost(r *http.Request) string {
	if h.publicHost != "" {
		return h.publicHost
	}
	return r.Host
}

// writeError is the single place where engine outcomes become HTTP
// responses. Disabled, expired and exhausted links render as not found.
func (h *LinksHandler) writeError(w http.ResponseWriter, r *http.Request, id string, err error) {
	var verr *links.ValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := constants.ErrInvalidRequestBody
		if verr.Field == "url" {
			apiErr = constants.ErrInvalidURL
		}
		httputils.WriteAPIError(w, r, apiErr.WithMessage(verr.Error()))
	case errors.Is(err, links.ErrConflict):
		httputils.WriteAPIError(w, r, constants.ErrLinkConflict)
	case errors.Is(err, links.ErrNotFound),
		errors.Is(err, links.ErrDisabled),
		errors.Is(err, links.ErrExpired),
		errors.Is(err, links.ErrExhausted):
		httputils.WriteAPIError(w, r, constants.ErrLinkNotFound)
	case errors.Is(err, breaker.ErrOpen):
		httputils.WriteAPIError(w, r, constants.ErrStoreUnavailable)
	default:
		logger.Error("link operation failed",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.Error(err),
		)
		httputils.WriteAPIError(w, r, constants.ErrInternalError)
	}
}
