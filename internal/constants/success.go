package constants

import "net/http"

// APISuccess is a rendered success: code and HTTP status.
type APISuccess struct {
	Code   string
	Status int
}

var (
	SuccessLinkCreated = APISuccess{
		Code:   CodeLinkCreated,
		Status: http.StatusCreated,
	}
	SuccessLinkUpdated = APISuccess{
		Code:   CodeLinkUpdated,
		Status: http.StatusOK,
	}
	SuccessLinkDeleted = APISuccess{
		Code:   CodeLinkDeleted,
		Status: http.StatusOK,
	}
	SuccessLinkFound = APISuccess{
		Code:   CodeLinkFound,
		Status: http.StatusOK,
	}
)
